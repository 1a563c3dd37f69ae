package preferences

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/metrics"
	"bookverse-notifications/internal/common/stream"
	"bookverse-notifications/internal/common/validation"
	"bookverse-notifications/internal/identity"
	"bookverse-notifications/internal/models"
)

// Result is returned by every mutating operation. Failures never panic and
// never partially apply.
type Result struct {
	Success     bool                            `json:"success"`
	Preferences *models.NotificationPreferences `json:"preferences,omitempty"`
	Error       error                           `json:"-"`
}

// ErrorMessage is the user-facing reason of a failed result.
func (r Result) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	if stdErr, ok := errors.AsStandard(r.Error); ok {
		if stdErr.Details != "" {
			return stdErr.Message + ": " + stdErr.Details
		}
		return stdErr.Message
	}
	return r.Error.Error()
}

func failed(err error) Result {
	return Result{Success: false, Error: err}
}

// Service is the only writer of preference documents.
type Service struct {
	repo     Repository
	identity identity.Provider
	logger   logger.Logger

	docSchema   *validation.Validator
	patchSchema *validation.Validator

	locks *keyedMutex
	users *stream.Hub[string, *models.NotificationPreferences]

	mu          sync.Mutex
	sessionUser string
	current     *stream.Broadcaster[*models.NotificationPreferences]
}

func NewService(repo Repository, ident identity.Provider, log logger.Logger) (*Service, error) {
	docSchema, err := validation.NewPreferencesValidator()
	if err != nil {
		return nil, err
	}
	patchSchema, err := validation.NewPreferencesPatchValidator()
	if err != nil {
		return nil, err
	}

	s := &Service{
		repo:        repo,
		identity:    ident,
		logger:      logger.Component(log, "preferences"),
		docSchema:   docSchema,
		patchSchema: patchSchema,
		locks:       newKeyedMutex(),
		users:       stream.NewHub[string, *models.NotificationPreferences](),
		current:     stream.NewBroadcaster[*models.NotificationPreferences](),
	}
	// anonymous until the identity provider says otherwise
	s.current.Publish(nil)
	return s, nil
}

// Run follows identity changes until ctx ends: logout publishes nil on the
// current stream, login publishes the user's (possibly new) document.
func (s *Service) Run(ctx context.Context) {
	changes, cancel := s.identity.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case userID, ok := <-changes:
			if !ok {
				return
			}
			s.switchIdentity(ctx, userID)
		}
	}
}

func (s *Service) switchIdentity(ctx context.Context, userID string) {
	s.mu.Lock()
	s.sessionUser = userID
	if userID == "" {
		s.current.Publish(nil)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.loadAndPublish(ctx, userID, func(doc *models.NotificationPreferences) {
		s.mu.Lock()
		defer s.mu.Unlock()
		// a logout or another login may have won the race
		if s.sessionUser == userID {
			s.current.Publish(doc.Clone())
		}
	})
	if err != nil {
		s.logger.Error("failed to load preferences on login", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
	}
}

// ==========================
// Reads
// ==========================

// GetCurrentPreferences returns the document of the current identity. It
// fails closed: without an identity there is no document, only an error.
func (s *Service) GetCurrentPreferences(ctx context.Context) Result {
	userID, ok := s.identity.CurrentIdentity(ctx)
	if !ok {
		return failed(errors.NewNoAuthenticatedUserError())
	}
	doc, err := s.Preferences(ctx, userID)
	if err != nil {
		return failed(err)
	}
	return Result{Success: true, Preferences: doc}
}

// Preferences loads the user's document, creating the defaults on first
// access.
func (s *Service) Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	doc, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// caller holds the user lock
func (s *Service) loadOrCreate(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	doc, err := s.repo.Get(ctx, userID)
	if err == nil {
		return doc, nil
	}
	if !errors.HasCode(err, errors.ErrCodePreferencesNotFound) {
		return nil, err
	}

	doc = Defaults()
	if err := s.repo.Save(ctx, userID, doc); err != nil {
		return nil, err
	}
	s.logger.Info("created default preferences", map[string]interface{}{"userId": userID})
	return doc, nil
}

// loadAndPublish hands the stored document to publish while the user lock is
// held. Commits also publish under that lock, so a stream never ends on a
// document older than the stored one.
func (s *Service) loadAndPublish(ctx context.Context, userID string, publish func(*models.NotificationPreferences)) error {
	unlock := s.locks.Lock(userID)
	defer unlock()
	doc, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	publish(doc)
	return nil
}

// Stream follows the current identity's document. The first value is the
// latest one; nil means no authenticated user.
func (s *Service) Stream() (<-chan *models.NotificationPreferences, func()) {
	return s.current.Subscribe()
}

// WatchUser follows one user's document regardless of the session identity.
func (s *Service) WatchUser(ctx context.Context, userID string) (<-chan *models.NotificationPreferences, func(), error) {
	b := s.users.For(userID)
	if _, ok := b.Last(); !ok {
		err := s.loadAndPublish(ctx, userID, func(doc *models.NotificationPreferences) {
			if _, ok := b.Last(); !ok {
				b.Publish(doc.Clone())
			}
		})
		if err != nil {
			return nil, nil, err
		}
	}
	ch, cancel := b.Subscribe()
	return ch, cancel, nil
}

// ==========================
// Writes
// ==========================

// UpdatePreferences deep-merges patch into the current identity's document.
func (s *Service) UpdatePreferences(ctx context.Context, patch PreferencesPatch) Result {
	return s.withIdentity(ctx, func(userID string) Result {
		return s.UpdateFor(ctx, userID, patch)
	})
}

// UpdateFor applies patch to userID's document. Used by trusted callers that
// act for a user explicitly.
func (s *Service) UpdateFor(ctx context.Context, userID string, patch PreferencesPatch) Result {
	return s.mutate(ctx, userID, func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
		return Apply(cur, patch), nil
	})
}

// ApplyJSONPatch validates raw wire input against the patch schema before
// decoding and merging it.
func (s *Service) ApplyJSONPatch(ctx context.Context, raw []byte) Result {
	if res := s.patchSchema.ValidateJSON(raw); !res.Valid {
		metrics.PreferenceUpdates.WithLabelValues("invalid").Inc()
		return failed(errors.NewValidationError(strings.Join(res.Messages(), "; ")))
	}
	var patch PreferencesPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return failed(errors.NewValidationError(err.Error()))
	}
	return s.UpdatePreferences(ctx, patch)
}

// ReplacePreferences swaps in a complete document supplied as JSON. The
// stored unsubscribe token survives when the input leaves it empty.
func (s *Service) ReplacePreferences(ctx context.Context, raw []byte) Result {
	if res := s.docSchema.ValidateJSON(raw); !res.Valid {
		metrics.PreferenceUpdates.WithLabelValues("invalid").Inc()
		return failed(errors.NewValidationError(strings.Join(res.Messages(), "; ")))
	}
	var doc models.NotificationPreferences
	if err := json.Unmarshal(raw, &doc); err != nil {
		return failed(errors.NewValidationError(err.Error()))
	}

	return s.withIdentity(ctx, func(userID string) Result {
		return s.mutate(ctx, userID, func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
			next := doc.Clone()
			if next.EmailSettings.UnsubscribeToken == "" {
				next.EmailSettings.UnsubscribeToken = cur.EmailSettings.UnsubscribeToken
			}
			return next, nil
		})
	})
}

func (s *Service) UpdateCategoryPreference(ctx context.Context, category models.Category, patch CategoryPatch) Result {
	if !category.Valid() {
		return failed(errors.NewUnknownCategoryError(string(category)))
	}
	return s.UpdatePreferences(ctx, PreferencesPatch{
		Categories: map[models.Category]CategoryPatch{category: patch},
	})
}

// UpdateDeliveryPreference flips channels of one category; untouched
// channels keep their stored value.
func (s *Service) UpdateDeliveryPreference(ctx context.Context, category models.Category, patch DeliveryPatch) Result {
	return s.mutateCurrent(ctx, func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
		cp, ok := cur.Categories[category]
		if !ok {
			return nil, errors.NewUnknownCategoryError(string(category))
		}
		delivery := patch.applyTo(cp.Delivery)
		return Apply(cur, PreferencesPatch{
			Categories: map[models.Category]CategoryPatch{category: {Delivery: &delivery}},
		}), nil
	})
}

// UpdateQuietHours overlays patch onto the stored quiet hours.
func (s *Service) UpdateQuietHours(ctx context.Context, patch TimeWindowPatch) Result {
	return s.UpdatePreferences(ctx, PreferencesPatch{QuietHours: &patch})
}

// UpdateEmailSettings overlays patch onto the stored email settings.
func (s *Service) UpdateEmailSettings(ctx context.Context, patch EmailSettingsPatch) Result {
	return s.UpdatePreferences(ctx, PreferencesPatch{EmailSettings: &patch})
}

func (s *Service) AddTimeWindow(ctx context.Context, category models.Category, window models.TimeWindow) Result {
	return s.mutateCurrent(ctx, func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
		cp, ok := cur.Categories[category]
		if !ok {
			return nil, errors.NewUnknownCategoryError(string(category))
		}
		windows := append(append([]models.TimeWindow{}, cp.TimeWindows...), window)
		return Apply(cur, PreferencesPatch{
			Categories: map[models.Category]CategoryPatch{category: {TimeWindows: &windows}},
		}), nil
	})
}

func (s *Service) RemoveTimeWindow(ctx context.Context, category models.Category, index int) Result {
	return s.mutateCurrent(ctx, func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
		cp, ok := cur.Categories[category]
		if !ok {
			return nil, errors.NewUnknownCategoryError(string(category))
		}
		if index < 0 || index >= len(cp.TimeWindows) {
			return nil, errors.NewValidationError(fmt.Sprintf("time window index %d out of range for %s", index, category))
		}
		windows := make([]models.TimeWindow, 0, len(cp.TimeWindows)-1)
		windows = append(windows, cp.TimeWindows[:index]...)
		windows = append(windows, cp.TimeWindows[index+1:]...)
		return Apply(cur, PreferencesPatch{
			Categories: map[models.Category]CategoryPatch{category: {TimeWindows: &windows}},
		}), nil
	})
}

// RegisterDeviceToken adds token once; a repeat is a successful no-op.
func (s *Service) RegisterDeviceToken(ctx context.Context, token string) Result {
	return s.mutateCurrent(ctx, addToken(token))
}

// RegisterDeviceTokenFor records a token the push transport refreshed.
func (s *Service) RegisterDeviceTokenFor(ctx context.Context, userID, token string) Result {
	return s.mutate(ctx, userID, addToken(token))
}

func addToken(token string) func(*models.NotificationPreferences) (*models.NotificationPreferences, error) {
	return func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
		if strings.TrimSpace(token) == "" {
			return nil, errors.NewValidationError("device token is empty")
		}
		if cur.HasDeviceToken(token) {
			return nil, nil
		}
		tokens := append(append([]string{}, cur.DeviceTokens...), token)
		return Apply(cur, PreferencesPatch{DeviceTokens: &tokens}), nil
	}
}

// UnregisterDeviceToken removes token; an unknown token is a no-op.
func (s *Service) UnregisterDeviceToken(ctx context.Context, token string) Result {
	return s.mutateCurrent(ctx, dropToken(token))
}

// RemoveDeviceTokenFor drops a token the push transport reported as dead.
func (s *Service) RemoveDeviceTokenFor(ctx context.Context, userID, token string) Result {
	return s.mutate(ctx, userID, dropToken(token))
}

func dropToken(token string) func(*models.NotificationPreferences) (*models.NotificationPreferences, error) {
	return func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
		if !cur.HasDeviceToken(token) {
			return nil, nil
		}
		tokens := make([]string, 0, len(cur.DeviceTokens))
		for _, t := range cur.DeviceTokens {
			if t != token {
				tokens = append(tokens, t)
			}
		}
		return Apply(cur, PreferencesPatch{DeviceTokens: &tokens}), nil
	}
}

// Unsubscribe handles the one-click link in email footers. It needs no
// session: the token proves the link came from one of our emails.
func (s *Service) Unsubscribe(ctx context.Context, userID, token string) Result {
	return s.mutate(ctx, userID, func(cur *models.NotificationPreferences) (*models.NotificationPreferences, error) {
		stored := cur.EmailSettings.UnsubscribeToken
		if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
			return nil, errors.NewInvalidUnsubscribeTokenError(userID)
		}

		never := models.DigestNever
		patch := PreferencesPatch{
			EmailSettings: &EmailSettingsPatch{DigestFrequency: &never},
			Categories:    make(map[models.Category]CategoryPatch, len(cur.Categories)),
		}
		for category, cp := range cur.Categories {
			delivery := cp.Delivery
			delivery.Email = false
			delivery.EmailDigest = false
			patch.Categories[category] = CategoryPatch{Delivery: &delivery}
		}
		return Apply(cur, patch), nil
	})
}

// ==========================
// Commit path
// ==========================

func (s *Service) withIdentity(ctx context.Context, fn func(userID string) Result) Result {
	userID, ok := s.identity.CurrentIdentity(ctx)
	if !ok {
		return failed(errors.NewNoAuthenticatedUserError())
	}
	return fn(userID)
}

func (s *Service) mutateCurrent(ctx context.Context, build func(*models.NotificationPreferences) (*models.NotificationPreferences, error)) Result {
	return s.withIdentity(ctx, func(userID string) Result {
		return s.mutate(ctx, userID, build)
	})
}

// mutate is compute-then-replace under the user lock. build receives a
// private copy; returning nil means "nothing to change".
func (s *Service) mutate(ctx context.Context, userID string, build func(*models.NotificationPreferences) (*models.NotificationPreferences, error)) Result {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cur, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		metrics.PreferenceUpdates.WithLabelValues("error").Inc()
		return failed(err)
	}

	next, err := build(cur.Clone())
	if err != nil {
		metrics.PreferenceUpdates.WithLabelValues("invalid").Inc()
		return failed(err)
	}
	if next == nil {
		return Result{Success: true, Preferences: cur.Clone()}
	}

	if err := Validate(next); err != nil {
		metrics.PreferenceUpdates.WithLabelValues("invalid").Inc()
		s.logger.Warn("rejected preference update", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
		return failed(err)
	}

	if err := s.repo.Save(ctx, userID, next); err != nil {
		metrics.PreferenceUpdates.WithLabelValues("error").Inc()
		return failed(err)
	}
	metrics.PreferenceUpdates.WithLabelValues("success").Inc()

	s.publishUser(userID, next)
	return Result{Success: true, Preferences: next.Clone()}
}

func (s *Service) publishUser(userID string, doc *models.NotificationPreferences) {
	s.users.Publish(userID, doc.Clone())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionUser == userID {
		s.current.Publish(doc.Clone())
	}
}

// Close ends every stream.
func (s *Service) Close() {
	s.users.Close()
	s.current.Close()
}
