package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadmarket_backend/internal/assignment"
	"leadmarket_backend/internal/email"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/fallback"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/http/router"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/notification"
	"leadmarket_backend/internal/payments"
	"leadmarket_backend/internal/proposals"
	"leadmarket_backend/internal/requests"
	"leadmarket_backend/internal/routing"
	"leadmarket_backend/internal/subscriptions"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/db"
	"leadmarket_backend/platform/geo"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	sender := newEmailSender(cfg, log)

	taskClient, closeTaskClient := initTaskClient(cfg, log)
	if closeTaskClient != nil {
		defer closeTaskClient()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	requestsModule := requests.NewModule(pool, val, log)
	leadsModule := leads.NewModule(pool, val, log)
	subscriptionsModule := subscriptions.NewModule(pool, cfg, log)
	proposalsModule := proposals.NewModule(pool, cfg, log)

	var scheduler assignment.FallbackScheduler
	var geocodeEnqueuer routing.GeocodeEnqueuer
	if taskClient != nil {
		scheduler = taskClient
		geocodeEnqueuer = taskClient
	} else {
		scheduler = noopScheduler{log: log}
	}

	resolver := routing.NewResolver(routing.New(pool), geo.NewNominatimGeocoder(log), geocodeEnqueuer, cfg.GetDefaultRadiusKM(), log)

	assignmentModule := assignment.NewModule(pool, resolver, subscriptionsModule.Service(), scheduler, eventBus, cfg, log)
	requestsModule.Service().SetAssigner(assignmentModule.Service())

	fallbackService := fallback.NewService(fallback.NewStore(pool), subscriptionsModule.Service(), scheduler, eventBus, cfg, log)

	paymentsModule := payments.NewModule(
		leadsModule.Service(),
		proposalsModule.Service(),
		subscriptionsModule.Service(),
		requestsModule.Repository(),
		fallbackService,
		leadsModule.Repository(),
		eventBus,
		cfg,
		log,
	)

	// Notification module subscribes to domain events on construction.
	notificationModule := notification.NewModule(pool, sender, cfg, eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			requestsModule,
			leadsModule,
			assignmentModule,
			subscriptionsModule,
			proposalsModule,
			paymentsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newEmailSender picks the SMTP sender or, when email is disabled, a
// logging no-op so notification flows stay exercised in development.
func newEmailSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email disabled; notifications will be logged, not sent")
		return email.NewNoopSender(log)
	}
	return email.NewSMTPSender(
		cfg.GetSMTPHost(), cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
	)
}

// initTaskClient connects the asynq client used for conversion checks and
// lazy geocoding. Without Redis both degrade: no fallback chain, no
// background geocoding.
func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) (*fallback.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; fallback scheduling disabled")
		return nil, nil
	}

	redisOpt, err := redisConnOpt(cfg)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fallback.Ping(pingCtx, redisOpt); err != nil {
		log.Error("redis unreachable; fallback scheduling disabled", "error", err)
		return nil, nil
	}

	client := fallback.NewClient(redisOpt, cfg.GetAsynqQueueName(), log)
	return client, func() {
		_ = client.Close()
	}
}

func redisConnOpt(cfg config.SchedulerConfig) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if clientOpt, ok := opt.(asynq.RedisClientOpt); ok && clientOpt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		clientOpt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		return clientOpt, nil
	}
	return opt, nil
}

// noopScheduler stands in when Redis is absent so assignment still works.
type noopScheduler struct {
	log *logger.Logger
}

func (n noopScheduler) ScheduleConversionCheck(_ context.Context, serviceRequestID, leadID uuid.UUID, _ time.Time) error {
	n.log.Warn("conversion check not scheduled; no task queue", "request_id", serviceRequestID, "lead_id", leadID)
	return nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
