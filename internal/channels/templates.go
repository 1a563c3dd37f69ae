package channels

import (
	"html"
	"regexp"
	"strings"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"
)

// Template is an email template with {{variable}} placeholders.
type Template struct {
	ID       string          `json:"id"`
	Category models.Category `json:"category"`
	Subject  string          `json:"subject"`
	Body     string          `json:"body"`
}

// Template ids.
const (
	TemplateWelcome            = "welcome"
	TemplateNewFollower        = "new-follower"
	TemplateBookClubInvite     = "book-club-invite"
	TemplateChallengeCompleted = "challenge-completed"
	TemplateReviewComment      = "review-comment"
	TemplateReadingGoal        = "reading-goal"
	TemplateDigest             = "digest"
	TemplateGeneric            = "generic"
)

var defaultTemplates = []Template{
	{
		ID:       TemplateWelcome,
		Category: models.CategorySystemAnnouncement,
		Subject:  "Welcome to BookVerse!",
		Body: `<h1>Welcome to BookVerse, {{userName}}!</h1>
<p>Track what you read, join book clubs and take on reading challenges with friends.</p>
<a href="{{actionUrl}}">Get started</a>`,
	},
	{
		ID:       TemplateNewFollower,
		Category: models.CategoryNewFollower,
		Subject:  "{{followerName}} started following you on BookVerse",
		Body: `<p>Hi {{userName}},</p>
<p><strong>{{followerName}}</strong> is now following you on BookVerse!</p>
<a href="{{profileUrl}}">View Profile</a>`,
	},
	{
		ID:       TemplateBookClubInvite,
		Category: models.CategoryClubInvite,
		Subject:  "You're invited to join {{clubName}}",
		Body: `<p>Hi {{userName}},</p>
<p>You've been invited to join the book club <strong>{{clubName}}</strong>!</p>
<p>{{inviterName}} thinks you'd be a great addition to the club.</p>
<blockquote>{{clubDescription}}</blockquote>
<a href="{{inviteUrl}}">Join Club</a>`,
	},
	{
		ID:       TemplateChallengeCompleted,
		Category: models.CategoryChallengeCompleted,
		Subject:  "Congratulations! You've completed {{challengeName}}",
		Body: `<p>Amazing work, {{userName}}! You've successfully completed the {{challengeName}} challenge.</p>
<ul>
<li>{{achievement}}</li>
<li>Earned {{points}} points</li>
<li>Unlocked: {{badgeName}}</li>
</ul>
<a href="{{challengeUrl}}">View Your Achievement</a>`,
	},
	{
		ID:       TemplateReviewComment,
		Category: models.CategoryReviewComment,
		Subject:  "{{commenterName}} commented on your review of {{bookTitle}}",
		Body: `<p>Hi {{userName}},</p>
<p><strong>{{commenterName}}</strong> commented on your review:</p>
<blockquote>{{comment}}</blockquote>
<p>Your review of {{bookTitle}}:</p>
<blockquote>{{reviewText}}</blockquote>
<a href="{{reviewUrl}}">View Comment</a>`,
	},
	{
		ID:       TemplateReadingGoal,
		Category: models.CategoryReadingGoalReminder,
		Subject:  "You're {{progress}}% towards your reading goal!",
		Body: `<p>Great progress, {{userName}}! You're {{progress}}% of the way to your reading goal.</p>
<ul>
<li>Books read: {{booksRead}}/{{goalBooks}}</li>
<li>Pages read: {{pagesRead}}</li>
<li>Reading streak: {{streakDays}} days</li>
</ul>
<a href="{{progressUrl}}">View Your Progress</a>`,
	},
	{
		ID:       TemplateDigest,
		Category: models.CategorySystemAnnouncement,
		Subject:  "Your BookVerse {{period}} Update",
		Body: `<p>Hi {{userName}}, here's what happened since your last update:</p>
{{sections}}
<a href="{{dashboardUrl}}">View Full Activity</a>
<p><small><a href="{{unsubscribeUrl}}">Unsubscribe</a></small></p>`,
	},
	{
		ID:      TemplateGeneric,
		Subject: "{{title}}",
		Body: `<p>{{body}}</p>
<a href="{{actionUrl}}">Open BookVerse</a>`,
	},
}

// Templates is the email template catalog.
type Templates struct {
	byID map[string]Template
}

// DefaultTemplates returns the built-in catalog.
func DefaultTemplates() *Templates {
	t := &Templates{byID: make(map[string]Template, len(defaultTemplates))}
	for _, tmpl := range defaultTemplates {
		t.byID[tmpl.ID] = tmpl
	}
	return t
}

func (t *Templates) Get(id string) (Template, error) {
	tmpl, ok := t.byID[id]
	if !ok {
		return Template{}, errors.NewTemplateNotFoundError(id)
	}
	return tmpl, nil
}

// Render fills the subject and body of template id. Body values are HTML
// escaped; raw values are inserted as-is and must already be safe HTML.
func (t *Templates) Render(id string, vars, raw map[string]string) (subject, body string, err error) {
	tmpl, err := t.Get(id)
	if err != nil {
		return "", "", err
	}
	subject = renderTemplate(tmpl.Subject, vars, nil, false)
	body = renderTemplate(tmpl.Body, vars, raw, true)
	return subject, body, nil
}

var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// renderTemplate replaces {{key}} placeholders in one pass. Missing values
// render as empty strings. Substituted text is never rescanned.
func renderTemplate(tmpl string, vars, raw map[string]string, escape bool) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := raw[key]; ok {
			return v
		}
		v := vars[key]
		if escape {
			return html.EscapeString(v)
		}
		return v
	})
}

var tags = regexp.MustCompile(`<[^>]*>`)

// StripTags produces the plain-text alternative of an HTML body.
func StripTags(s string) string {
	text := tags.ReplaceAllString(s, "")
	lines := strings.Split(html.UnescapeString(text), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
