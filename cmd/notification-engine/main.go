// cmd/notification-engine/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookverse-notifications/internal/api"
	"bookverse-notifications/internal/audit"
	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/auth"
	"bookverse-notifications/internal/common/aws"
	"bookverse-notifications/internal/common/camunda"
	"bookverse-notifications/internal/common/config"
	"bookverse-notifications/internal/common/database"
	"bookverse-notifications/internal/common/firebase"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/common/observability"
	"bookverse-notifications/internal/digest"
	"bookverse-notifications/internal/emaillog"
	"bookverse-notifications/internal/engine"
	"bookverse-notifications/internal/identity"
	"bookverse-notifications/internal/inbox"
	"bookverse-notifications/internal/preferences"
	"bookverse-notifications/internal/realtime"
	"bookverse-notifications/pkg/registry"

	dn "bookverse-notifications/internal/workers/notification/dispatch-notification"
	fed "bookverse-notifications/internal/workers/notification/flush-email-digest"
	res "bookverse-notifications/internal/workers/notification/record-email-status"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New("info", "console")
		bootstrap.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	log.Info("starting notification engine", nil)

	obs := observability.New(cfg.App.Name, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("postgres migration failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()

	checks := map[string]api.HealthCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	// --- Init Elasticsearch (audit only, optional) ---
	var auditor *audit.Indexer
	if len(cfg.Database.Elasticsearch.GetAddresses()) > 0 {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			log.Error("elasticsearch unavailable, audit disabled", map[string]interface{}{"error": err})
		} else {
			auditor = audit.NewIndexer(es, cfg.Notifications.AuditIndex, log)
			for index, mapping := range map[string]string{
				auditor.DecisionIndex(): audit.DecisionMapping,
				auditor.EmailIndex():    audit.EmailEventMapping,
			} {
				if err := es.EnsureIndex(ctx, index, mapping); err != nil {
					log.Warn("failed to ensure audit index", map[string]interface{}{"index": index, "error": err})
				}
			}
			checks["elasticsearch"] = es.Ping
		}
	}

	// --- Identity ---
	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)
	var directory identity.Directory = identity.NewPostgresDirectory(pg.DB)
	if cfg.Auth.Keycloak.URL != "" {
		directory = identity.NewKeycloakDirectory(keycloak)
	}

	reg := registry.Builtin()
	if path := cfg.Notifications.RegistryPath; path != "" {
		reg, err = registry.LoadRegistry(path)
		if err != nil {
			zapLog.Fatal("category registry load failed", zap.String("path", path), zap.Error(err))
		}
	}

	// --- Transports ---
	var emailTransport channels.EmailTransport = channels.DisabledEmail{}
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailTransport = channels.NewSESTransport(sesClient, cfg.Notifications.FromEmail,
			cfg.Integrations.AWS.SES.ConfigurationSet, log)
	} else {
		log.Warn("ses disabled, emails will be logged as failed", nil)
	}

	var push channels.PushTransport
	switch cfg.Notifications.PushProvider {
	case "sns":
		if cfg.Integrations.AWS.SNS.Enabled {
			snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
			push = channels.NewSNSTransport(snsClient, cfg.Integrations.AWS.SNS.PlatformApplicationARN, log)
		}
	default:
		if cfg.Integrations.Firebase.Enabled {
			fcm, err := firebase.NewMessagingClient(ctx, cfg.Integrations.Firebase.CredentialsFile,
				cfg.Integrations.Firebase.ProjectID, log)
			if err != nil {
				zapLog.Fatal("firebase messaging failed", zap.Error(err))
			}
			push = channels.NewFCMTransport(fcm, log)
		}
	}
	if push == nil {
		log.Warn("no push transport configured", map[string]interface{}{"provider": cfg.Notifications.PushProvider})
	}

	// --- Services ---
	repo := preferences.NewCachedRepository(
		preferences.NewPostgresRepository(pg.DB),
		rdb.Client,
		config.GetDuration(cfg.Notifications.PreferenceCacheTTL),
		log,
	)
	prefs, err := preferences.NewService(repo, identity.RequestScoped{}, log)
	if err != nil {
		zapLog.Fatal("preference service failed", zap.Error(err))
	}
	defer prefs.Close()

	hub := realtime.NewHub(cfg.HTTP.AllowedOrigins, log)
	notifications := inbox.NewService(inbox.NewPostgresStore(pg.DB), hub, hub, log)
	defer notifications.Close()

	emails := emaillog.NewLog(emaillog.NewPostgresStore(pg.DB), emailTransport,
		cfg.Notifications.EmailRetryCap, auditor, log)

	templates := channels.DefaultTemplates()
	scheduler := digest.NewScheduler(
		digest.NewRedisQueue(rdb.Client),
		prefs,
		directory,
		templates,
		reg,
		emailTransport,
		emails,
		digest.Options{
			Location:     cfg.Notifications.Location(),
			RetryCap:     cfg.Notifications.EmailRetryCap,
			DashboardURL: cfg.Notifications.DashboardURL,
			PublicURL:    cfg.Notifications.PublicURL,
		},
		log,
	)

	eng := engine.New(engine.Deps{
		Preferences: prefs,
		Identity:    identity.RequestScoped{},
		Inbox:       notifications,
		Surface:     hub,
		Push:        push,
		Emails:      emails,
		Digest:      scheduler,
		Directory:   directory,
		Templates:   templates,
		Registry:    reg,
		Audit:       auditor,
		Metrics:     obs,
		Location:    cfg.Notifications.Location(),
	}, log)

	tick := config.GetDuration(cfg.Notifications.DigestTick)
	go hub.Run(ctx)
	go prefs.Run(ctx)
	go notifications.Run(ctx)
	go scheduler.Run(ctx, tick)
	go emails.RunRetries(ctx, tick)
	if push != nil {
		go eng.SyncTokens(ctx)
	}

	// --- Workers ---
	var workers []*camunda.JobWorker
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck

		handlers := map[string]worker.JobHandler{
			dn.TaskType:  dn.NewHandler(dn.LoadConfig(config.GetWorkerConfig(cfg, dn.TaskType)), eng, obs, log).Handle,
			fed.TaskType: fed.NewHandler(fed.LoadConfig(config.GetWorkerConfig(cfg, fed.TaskType)), scheduler, obs, log).Handle,
			res.TaskType: res.NewHandler(res.LoadConfig(config.GetWorkerConfig(cfg, res.TaskType)), emails, obs, log).Handle,
		}
		for taskType, handle := range handlers {
			if !config.IsWorkerEnabled(cfg, taskType) {
				log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
				continue
			}
			workers = append(workers, camunda.StartWorker(zeebe.GetClient(), taskType,
				config.GetWorkerConfig(cfg, taskType), handle, log))
		}
		log.Info("workers started", map[string]interface{}{"count": len(workers)})
	}

	// --- HTTP API, health & metrics ---
	router := api.NewRouter(api.Options{
		Preferences:    prefs,
		Inbox:          notifications,
		Emails:         emails,
		Hub:            hub,
		Tokens:         keycloak,
		Checks:         checks,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, log)
	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.HTTP.Address})
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", map[string]interface{}{"error": err})
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability shutdown failed", map[string]interface{}{"error": err})
	}

	log.Info("notification engine stopped gracefully", nil)
}
