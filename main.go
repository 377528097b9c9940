package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/admin"
	"github.com/sajilotantra/sajilotantra-be/internal/api"
	"github.com/sajilotantra/sajilotantra-be/internal/api/handlers"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/auth"
	"github.com/sajilotantra/sajilotantra-be/internal/config"
	"github.com/sajilotantra/sajilotantra-be/internal/database"
	"github.com/sajilotantra/sajilotantra-be/internal/email"
	"github.com/sajilotantra/sajilotantra-be/internal/logger"
	"github.com/sajilotantra/sajilotantra-be/internal/media"
	"github.com/sajilotantra/sajilotantra-be/internal/metrics"
	"github.com/sajilotantra/sajilotantra-be/internal/payment"
	"github.com/sajilotantra/sajilotantra-be/internal/ratelimit"
	"github.com/sajilotantra/sajilotantra-be/internal/scheduler"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
	"github.com/sajilotantra/sajilotantra-be/internal/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	redisChannel    = "sajilotantra:notifications"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	closer, err := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Production: cfg.IsProduction()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, os.Args[1:]); err != nil {
			log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		}
		return
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server exiting")
}

// runCommand handles administrative subcommands.
func runCommand(ctx context.Context, cfg *config.Config, args []string) error {
	switch args[0] {
	case "promote-admin":
		if len(args) != 2 {
			return errors.New("usage: promote-admin <email>")
		}
		db, err := database.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			return err
		}
		users := services.NewUserService(db, email.LogMailer{}, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry),
			auth.NewTOTP(cfg.MFAIssuer), nil, services.AuthSettings{})
		if err := users.PromoteByEmail(ctx, args[1]); err != nil {
			return err
		}
		log.Info().Str("email", args[1]).Msg("User promoted to admin")
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("apply database migrations: %w", err)
	}

	m := metrics.New()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	totp := auth.NewTOTP(cfg.MFAIssuer)

	var mailer email.Mailer = email.LogMailer{}
	if cfg.SendGridAPIKey != "" {
		mailer = email.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSender, cfg.EmailSenderName)
	} else {
		log.Warn().Msg("SENDGRID_API_KEY not set, emails will only be logged")
	}

	store, uploadDir, err := newMediaStore(cfg)
	if err != nil {
		return err
	}

	// Audit store: MongoDB when configured, otherwise the application database.
	var auditStore audit.Store = audit.NewSQLStore(db)
	if cfg.AuditMongoURI != "" {
		mongoStore, err := audit.NewMongoStore(ctx, cfg.AuditMongoURI, cfg.AuditMongoDatabase)
		if err != nil {
			return fmt.Errorf("connect audit store: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoStore.Close(closeCtx); err != nil {
				log.Error().Err(err).Msg("Failed to close audit store")
			}
		}()
		auditStore = mongoStore
	}
	recorder := audit.NewRecorder(auditStore, cfg.AuditBuffer, m)

	// Set up WebSocket Hub, fanned out through Redis when configured.
	hub := websocket.NewHub(m)
	var publisher websocket.Publisher = hub
	var rdb *redis.Client
	var bridge *websocket.RedisBridge
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		bridge = websocket.NewRedisBridge(rdb, hub, redisChannel)
		publisher = bridge
	}

	// Set up services
	userService := services.NewUserService(db, mailer, tokens, totp, m, services.AuthSettings{
		OTPTTL:          cfg.OTPTTL,
		ResetTokenTTL:   cfg.ResetTokenTTL,
		MaxAttempts:     cfg.LoginMaxAttempts,
		LockDuration:    cfg.LoginLockDuration,
		PasswordMaxAge:  cfg.PasswordMaxAge,
		PasswordHistory: cfg.PasswordHistory,
		FrontendURL:     cfg.FrontendURL,
	})
	mfaService := services.NewMFAService(db, userService, totp)
	notificationService := services.NewNotificationService(db, publisher)
	postService := services.NewPostService(db, notificationService)
	governmentService := services.NewGovernmentService(db, cfg.NearestRadiusMeters)
	guidanceService := services.NewGuidanceService(db, governmentService)
	feedbackService := services.NewFeedbackService(db)
	paymentService := services.NewPaymentService(db, payment.NewClient(cfg.KhaltiBaseURL, cfg.KhaltiSecretKey), userService, cfg.FrontendURL)
	activityService := services.NewActivityService(auditStore)
	maintenanceService := services.NewMaintenanceService(db, activityService, cfg.AuditRetention)

	sched, err := scheduler.New(scheduler.MaintenanceJobs(maintenanceService), m)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	registry, err := admin.NewRegistry(ctx, db, admin.DefaultResources())
	if err != nil {
		return fmt.Errorf("build admin registry: %w", err)
	}

	limiter := ratelimit.New(cfg.AuthRateLimit, cfg.AuthRateBurst, 10*time.Minute)

	// Set up router
	router := api.NewRouter(api.Handlers{
		Users:         handlers.NewUserHandler(userService, activityService, store, cfg.JWTExpiry, cfg.IsProduction()),
		MFA:           handlers.NewMFAHandler(mfaService),
		Posts:         handlers.NewPostHandler(postService, store),
		Government:    handlers.NewGovernmentHandler(governmentService, store),
		Guidances:     handlers.NewGuidanceHandler(guidanceService, store),
		Notifications: handlers.NewNotificationHandler(notificationService),
		Feedbacks:     handlers.NewFeedbackHandler(feedbackService, store),
		Payments:      handlers.NewPaymentHandler(paymentService),
		Activity:      handlers.NewActivityHandler(activityService),
		Admin:         handlers.NewAdminHandler(registry),
		WebSocket:     handlers.NewWebSocketHandler(hub, cfg.AllowedOrigins),
		Health:        handlers.NewHealthHandler(db, rdb),
	}, api.Options{
		Tokens:         tokens,
		Recorder:       recorder,
		Metrics:        m,
		AuthLimiter:    limiter.Middleware,
		AllowedOrigins: cfg.AllowedOrigins,
		UploadDir:      uploadDir,
		TrustedProxies: cfg.TrustedProxies,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The hub and audit worker outlive the HTTP server so in-flight
	// requests can still publish and record during shutdown.
	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	g, gctx := errgroup.WithContext(ctx)
	var bg errgroup.Group
	bg.Go(func() error { hub.Run(bgCtx); return nil })
	bg.Go(func() error { recorder.Run(bgCtx); return nil })

	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx, nil) })
	}
	g.Go(func() error { sched.Run(gctx); return nil })
	g.Go(func() error { limiter.Run(gctx, time.Minute); return nil })
	g.Go(func() error {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	// Stop the hub and drain the audit queue.
	cancelBackground()
	bg.Wait()
	return err
}

// newMediaStore returns Cloudinary when configured, otherwise local disk.
// The returned directory is non-empty when uploads must be served locally.
func newMediaStore(cfg *config.Config) (media.Store, string, error) {
	if cfg.CloudinaryURL != "" {
		store, err := media.NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			return nil, "", fmt.Errorf("configure cloudinary: %w", err)
		}
		return store, "", nil
	}
	store, err := media.NewLocalStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, "", fmt.Errorf("create upload directory: %w", err)
	}
	return store, store.Dir(), nil
}
