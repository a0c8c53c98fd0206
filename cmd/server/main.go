package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	httpapi "github.com/checkerhub/checkerhub/internal/api/http"
	"github.com/checkerhub/checkerhub/internal/application/admin"
	"github.com/checkerhub/checkerhub/internal/application/auth"
	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/booking"
	appChecker "github.com/checkerhub/checkerhub/internal/application/checker"
	"github.com/checkerhub/checkerhub/internal/application/messaging"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	appPayment "github.com/checkerhub/checkerhub/internal/application/payment"
	"github.com/checkerhub/checkerhub/internal/application/support"
	appUser "github.com/checkerhub/checkerhub/internal/application/user"
	"github.com/checkerhub/checkerhub/internal/config"
	"github.com/checkerhub/checkerhub/internal/domain/checker"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/domain/payment"
	"github.com/checkerhub/checkerhub/internal/domain/session"
	"github.com/checkerhub/checkerhub/internal/domain/user"
	"github.com/checkerhub/checkerhub/internal/infrastructure/checkout"
	"github.com/checkerhub/checkerhub/internal/infrastructure/gcs"
	"github.com/checkerhub/checkerhub/internal/infrastructure/localfs"
	"github.com/checkerhub/checkerhub/internal/infrastructure/memory"
	"github.com/checkerhub/checkerhub/internal/infrastructure/postgres"
	"github.com/checkerhub/checkerhub/internal/infrastructure/redisbus"
	"github.com/checkerhub/checkerhub/internal/infrastructure/sse"
)

type repositories struct {
	users         user.Repository
	sessions      session.Repository
	checkers      checker.Repository
	conversations conversation.Repository
	messages      message.Repository
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]func(context.Context) error{}

	// repositories
	var repos repositories
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("db error")
		}
		defer pool.Close()
		n, err := postgres.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir))
		if err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		logger.Info().Int("count", n).Msg("migrations applied")
		repos = postgresRepositories(pool)
		healthChecks["postgres"] = pool.Ping
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		store := memory.NewStore()
		repos = repositories{
			users:         store.Users(),
			sessions:      store.Sessions(),
			checkers:      store.Checkers(),
			conversations: store.Conversations(),
			messages:      store.Messages(),
		}
	}

	// realtime fan-out
	sseHub := sse.NewHub()
	defer sseHub.Stop()
	var publisher notification.Publisher = redisbus.NewLocalPublisher(sseHub)
	var limiter httpapi.RateLimiter
	if cfg.RedisURL != "" {
		bus, err := redisbus.Connect(ctx, cfg.RedisURL, sseHub, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis error")
		}
		defer bus.Close()
		go func() {
			if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("redis subscriber stopped")
			}
		}()
		publisher = bus
		limiter = redisbus.NewRateLimiter(bus.Client())
		healthChecks["redis"] = bus.Ping
	}

	// receipts
	var receipts payment.ReceiptStore
	receiptDir := ""
	if cfg.ReceiptBucket != "" {
		client, err := gcs.NewClient(ctx, cfg.GCSCredentialsJSON)
		if err != nil {
			logger.Fatal().Err(err).Msg("gcs client error")
		}
		store := gcs.NewReceiptStore(client, cfg.ReceiptBucket, cfg.ReceiptPublicBaseURL)
		defer store.Close()
		receipts = store
		healthChecks["gcs"] = store.CheckBucket
	} else if cfg.ReceiptDir != "" {
		base := cfg.ReceiptPublicBaseURL
		if base == "" {
			base = "/receipts"
		}
		store, err := localfs.NewReceiptStore(cfg.ReceiptDir, base)
		if err != nil {
			logger.Fatal().Err(err).Msg("receipt dir error")
		}
		receipts = store
		receiptDir = store.Dir()
	}

	var verifier payment.Verifier
	if cfg.CheckoutConfigured() {
		verifier = checkout.NewVerifier(cfg.CheckoutBaseURL, cfg.CheckoutClientID, cfg.CheckoutClientSecret, nil)
	} else {
		logger.Warn().Msg("checkout provider not configured, checkout confirmation disabled")
	}

	// services
	az := authz.NewAuthorizer(cfg.OperatorUserIDs, cfg.SupportUserID)
	notifier := notify.New(publisher, logger)
	supportSvc := support.NewService(repos.conversations, repos.checkers, az, notifier, logger)
	authSvc := auth.NewService(repos.users, repos.sessions, cfg.SessionTTL, logger)

	services := httpapi.Services{
		Auth:     authSvc,
		Users:    appUser.NewService(repos.users, logger),
		Checkers: appChecker.NewService(repos.checkers, logger),
		Bookings: booking.NewService(repos.conversations, repos.checkers, az, notifier, logger),
		Payments: appPayment.NewService(repos.conversations, verifier, receipts, supportSvc, appPayment.Config{
			Currency:        cfg.CheckoutCurrency,
			MaxReceiptBytes: cfg.ReceiptMaxBytes,
		}, notifier, logger),
		Support:  supportSvc,
		Messages: messaging.NewService(repos.conversations, repos.messages, notifier, logger),
		Admin:    admin.NewService(repos.conversations, az, notifier, logger),
		Authz:    az,
	}

	apiServer := httpapi.NewServer(services, sseHub, httpapi.Options{
		SessionCookieName:   cfg.SessionCookieName,
		SessionCookieSecure: cfg.SessionCookieSecure,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		ReceiptDir:          receiptDir,
		MaxReceiptBytes:     cfg.ReceiptMaxBytes,
		HealthChecks:        healthChecks,
		RateLimiter:         limiter,
	}, logger)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// background loops
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := authSvc.PurgeExpired(ctx); err != nil {
					logger.Warn().Err(err).Msg("session purge failed")
				}
			}
		}
	}()

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Str("env", cfg.Env).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sseHub.Stop()
	_ = httpServer.Shutdown(ctxShutdown)
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		users:         postgres.NewUserRepository(pool),
		sessions:      postgres.NewSessionRepository(pool),
		checkers:      postgres.NewCheckerRepository(pool),
		conversations: postgres.NewConversationRepository(pool),
		messages:      postgres.NewMessageRepository(pool),
	}
}
