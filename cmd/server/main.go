package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "consultation-queue-backend/internal/api/http"
	"consultation-queue-backend/internal/api/ws"
	"consultation-queue-backend/internal/config"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/repository"
	"consultation-queue-backend/internal/repository/postgres"
	"consultation-queue-backend/internal/security"
	"consultation-queue-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting consultation queue backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Notification configuration", "provider", cfg.Notification.Provider, "timeout", cfg.NotificationTimeout())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(db); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Notification Dispatcher
	sender, err := service.NewEmailSender(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize email sender: %v", err)
	}
	dispatcher := service.NewNotificationLog(
		service.NewNotificationDispatcher(sender, cfg.Queue.MinutesPerPosition),
		store.NotificationLogRepository,
	)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.AdminSessionTTL())
	var verifier security.IdentityVerifier
	if cfg.Firebase.Disabled {
		logger.Warn("Identity verification disabled; admin sessions are gated by admin code only")
		verifier = security.NewAnonymousVerifier()
	} else {
		verifier, err = security.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Error("Failed to initialize identity verifier", "error", err)
			log.Fatalf("Failed to initialize identity verifier: %v", err)
		}
	}

	// Initialize Services
	queueSvc := service.NewQueueService(store.QueueRepository, dispatcher)
	codeSvc := service.NewAdminCodeService(store.AdminCodeRepository)
	authSvc := service.NewAuthService(verifier, codeSvc, tokenManager)

	created, err := codeSvc.EnsureCodes(ctx)
	if err != nil {
		logger.Error("Failed to ensure admin codes", "error", err)
		log.Fatalf("Failed to ensure admin codes: %v", err)
	}
	for role, code := range created {
		logger.Info("Generated initial admin code", "role", role, "code", code)
	}

	// Change feed and position monitor
	var changeFeed repository.ChangeFeed
	if cfg.Database.ListenChanges {
		listener, err := postgres.NewChangeListener(cfg.GetDatabaseConnectionString())
		if err != nil {
			logger.Error("Failed to open change listener", "error", err)
			log.Fatalf("Failed to open change listener: %v", err)
		}
		defer listener.Close()
		go listener.Run(ctx)
		changeFeed = listener
	}
	monitor := service.NewPositionMonitor(queueSvc, changeFeed, dispatcher, cfg.Queue.TopNotifyThreshold)
	adminSvc := service.NewAdminService(queueSvc, monitor, dispatcher)

	hub := ws.NewHub()
	go hub.Run(ctx)
	monitor.Observe(hub.Publish)

	if changeFeed != nil {
		if err := monitor.Start(ctx); err != nil {
			logger.Error("Failed to start position monitor", "error", err)
			log.Fatalf("Failed to start position monitor: %v", err)
		}
		defer monitor.Stop()
	} else {
		logger.Warn("Change feed disabled; position changes are notified only by explicit updates")
	}

	// HTTP server
	trustedProxies, err := cfg.Server.TrustedProxyNetworks()
	if err != nil {
		log.Fatalf("Invalid trusted proxies: %v", err)
	}
	limiter := httpapi.NewRateLimiter(cfg.Server.SubmissionsPerMinute, trustedProxies)
	limiter.StartCleanup(ctx, 5*time.Minute)
	handler := httpapi.NewHandler(queueSvc, adminSvc, codeSvc, authSvc, monitor, dispatcher, db)
	router := httpapi.NewRouter(handler, hub, tokenManager, limiter)

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := queueSvc.Close(shutdownCtx); err != nil {
		logger.Warn("Queue notifications did not finish before shutdown", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
