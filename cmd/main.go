package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/config"
	database "github.com/garciabuilder/site-service/internal/core"
	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/internal/core/repository/local"
	"github.com/garciabuilder/site-service/internal/core/repository/psql"
	logicv1 "github.com/garciabuilder/site-service/internal/logic/v1"
	v1 "github.com/garciabuilder/site-service/internal/web/v1"
	"github.com/garciabuilder/site-service/middleware"
)

func main() {
	// Load configuration from environment variables (with .env file support for local dev)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	logger, err := middleware.NewLoggerFromConfig(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("Service starting",
		zap.String("service", cfg.Service.Name),
		zap.String("version", cfg.Service.Version),
		zap.String("env", cfg.Service.Env),
		zap.String("port", cfg.Service.Port),
	)

	// Initialize OpenTelemetry tracing with centralized config
	if cfg.Tracing.Enabled {
		if err := middleware.InitTracing(context.Background(), cfg); err != nil {
			logger.Warn("Failed to initialize tracing", zap.Error(err))
		} else {
			logger.Info("Tracing initialized",
				zap.String("endpoint", cfg.Tracing.Endpoint),
				zap.Float64("sample_rate", cfg.Tracing.SampleRate),
			)
		}
	} else {
		logger.Info("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			logger.Warn("Failed to initialize profiling", zap.Error(err))
		} else {
			logger.Info("Profiling initialized", zap.String("endpoint", cfg.Profiling.Endpoint))
			defer middleware.StopProfiling()
		}
	} else {
		logger.Info("Profiling disabled (PROFILING_ENABLED=false)")
	}

	// Local-first store: every profile write lands here before any network call
	store, err := local.New(cfg.Local.Path)
	if err != nil {
		logger.Fatal("Failed to open local store", zap.Error(err), zap.String("path", cfg.Local.Path))
	}
	logger.Info("Local store opened", zap.String("path", cfg.Local.Path))

	// Remote copy (pgx). Without DB_HOST the service runs local-only.
	var (
		remote    domain.RemoteProfileStore
		inquiries domain.InquiryRepository
		profiles  *psql.ProfileRepository
	)
	if cfg.Database.Enabled() {
		pool, err := database.NewPool(context.Background(), &cfg.Database)
		if err != nil {
			logger.Fatal("Failed to configure database pool", zap.Error(err))
		}
		defer pool.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pool.Ping(pingCtx); err != nil {
			// saves stay local until the monitor sees the remote come up
			logger.Warn("Database not reachable at startup, syncing once it is", zap.Error(err))
		} else {
			logger.Info("Database connection pool established")
		}
		cancel()

		profiles = psql.NewProfileRepository(pool)
		remote = profiles
		inquiries = psql.NewInquiryRepository(pool)
	} else {
		logger.Warn("DB_HOST not set, profiles stay local and forms are rejected")
	}

	events := logicv1.NewBroadcaster()
	profileSync := logicv1.NewProfileSync(store, remote, events, logger)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitorDone := make(chan struct{})
	if profiles != nil {
		monitor := logicv1.NewMonitor(profiles, profileSync, logicv1.MonitorConfig{
			ProbeInterval: cfg.Sync.ProbeInterval,
			InitialDelay:  cfg.Sync.InitialDelay,
			Concurrency:   cfg.Sync.Concurrency,
		}, logger)
		go func() {
			defer close(monitorDone)
			monitor.Run(monitorCtx)
		}()
		logger.Info("Connectivity monitor started", zap.Duration("probe_interval", cfg.Sync.ProbeInterval))
	} else {
		close(monitorDone)
	}

	// Auth provider client; tokens are verified locally when a JWT secret is set
	authClient := middleware.NewAuthClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	verifier := middleware.NewTokenVerifier(authClient, cfg.Supabase.JWTSecret)
	authService := logicv1.NewAuthService(authClient, store, profileSync, cfg.Supabase.RedirectBaseURL, logger)
	logger.Info("Auth client initialized",
		zap.String("supabase_url", cfg.Supabase.URL),
		zap.Bool("local_jwt_verification", cfg.Supabase.JWTSecret != ""),
	)

	catalogYAML, err := cfg.CatalogYAML()
	if err != nil {
		logger.Fatal("Failed to read pricing catalog", zap.Error(err))
	}
	catalog, err := logicv1.LoadCatalog(catalogYAML)
	if err != nil {
		logger.Fatal("Failed to load pricing catalog", zap.Error(err))
	}
	pricing := logicv1.NewPricingService(catalog, store, logger)
	if bad := pricing.ValidateLinks(); len(bad) > 0 {
		logger.Warn("Payment links missing or still placeholders", zap.Strings("plans", bad))
	}

	var notifier logicv1.Notifier
	if n := logicv1.NewFormspreeNotifier(cfg.Relay.FormspreeEndpoint); n != nil {
		notifier = n
	}
	inquiryService := logicv1.NewInquiryService(inquiries, store, notifier, cfg.Relay.ContactRateLimit, logger)

	// Outgoing mail; a nil mailer skips onboarding and confirmation emails
	var mailer logicv1.Mailer
	smtpMailer, err := logicv1.NewSMTPMailer(cfg.Mail)
	if err != nil {
		logger.Fatal("Failed to configure SMTP mailer", zap.Error(err))
	}
	if smtpMailer != nil {
		mailer = smtpMailer
		logger.Info("SMTP mailer configured", zap.String("smtp_host", cfg.Mail.Host), zap.Int("smtp_port", cfg.Mail.Port))
		if cfg.Mail.ContactConfirmation {
			inquiryService.WithConfirmation(mailer)
		}
	} else {
		logger.Warn("SMTP not fully configured, onboarding emails will be skipped")
	}
	onboarding := logicv1.NewOnboardingService(mailer, pricing, cfg.Mail.TrainerizeInviteURL, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	var isShuttingDown atomic.Bool

	// Tracing middleware (must be first for context propagation)
	r.Use(middleware.TracingMiddleware())

	// Logging middleware (must be before Prometheus middleware)
	r.Use(middleware.LoggingMiddleware(logger))

	if cfg.Metrics.Enabled {
		r.Use(middleware.PrometheusMiddleware())
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness check
	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "remote": profileSync.HasRemote()})
	})

	v1.SetupRoutes(r, v1.Handlers{
		Profile:       v1.NewProfileHandler(profileSync),
		Auth:          v1.NewAuthHandler(authService),
		Pricing:       v1.NewPricingHandler(pricing),
		Inquiry:       v1.NewInquiryHandler(inquiryService),
		Onboarding:    v1.NewOnboardingHandler(onboarding),
		Verifier:      verifier,
		AllowFallback: cfg.AuthAllowUnauthenticatedFallback,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// event streams never go idle; end them so Shutdown can drain
	srv.RegisterOnShutdown(events.Close)

	go func() {
		logger.Info("Starting site service", zap.String("port", cfg.Service.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Fail readiness first and wait for propagation before closing listeners.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		logger.Info("Readiness drain delay started", zap.Duration("delay", drainDelay))
		time.Sleep(drainDelay)
		logger.Info("Readiness drain delay completed", zap.Duration("delay", drainDelay))
	}

	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server...", zap.Duration("timeout", shutdownTimeout))

	// Cleanup order: HTTP server, monitor, stores, tracer

	// 1. Stop accepting connections and wait for in-flight requests (event streams are closed by the shutdown hook)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server shutdown complete")
	}

	// 2. Stop probing the remote and wait for an in-flight rescan
	stopMonitor()
	<-monitorDone

	// 3. Close the local store; the pool is closed by its defer
	if err := store.Close(); err != nil {
		logger.Error("Local store close error", zap.Error(err))
	}

	// 4. Shutdown tracer (flush pending spans)
	if err := middleware.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown error", zap.Error(err))
	} else {
		logger.Info("Tracer shutdown complete")
	}

	logger.Info("Graceful shutdown complete")
}
