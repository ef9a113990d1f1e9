package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/github-yearly/internal/api"
	"github.com/Kamar-Folarin/github-yearly/internal/auth"
	"github.com/Kamar-Folarin/github-yearly/internal/config"
	"github.com/Kamar-Folarin/github-yearly/internal/db"
	"github.com/Kamar-Folarin/github-yearly/internal/github"
	"github.com/Kamar-Folarin/github-yearly/internal/jobs"
	"github.com/Kamar-Folarin/github-yearly/internal/utils"
)

// @title GitHub Yearly API
// @version 1.0
// @description API for requesting yearly GitHub activity reports
// @host localhost:8080
// @BasePath /
func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stdout)

	// Load configuration with defaults
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if level != logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.DBConnectionString == "" || cfg.OAuth.ClientID == "" || cfg.OAuth.ClientSecret == "" {
		logger.Fatal("Missing required configuration (DB_CONNECTION_STRING, GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set)")
	}

	// Initialize database
	store, err := db.NewPostgresStore(cfg.DBConnectionString)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Run migrations with retry logic
	if err := retry(3, 5*time.Second, store.Migrate); err != nil {
		logger.Fatalf("Failed to run migrations after retries: %v", err)
	}

	// Requests left pending by a previous process have no worker anymore
	purged, err := store.PurgeOrphanedRequests(context.Background())
	if err != nil {
		logger.Fatalf("Failed to purge orphaned requests: %v", err)
	}
	if purged > 0 {
		logger.Infof("Purged %d orphaned report requests", purged)
	}

	// Initialize services
	client := github.NewClientFromConfig(cfg.GitHub, logger)
	service := github.NewTransportService(client, logger, github.WithInitialPageSize(cfg.GitHub.InitialPageSize))

	restClient, err := github.NewRESTClient(cfg.GitHub.RESTBaseURL, &http.Client{Timeout: cfg.GitHub.RequestTimeout}, logger)
	if err != nil {
		logger.Fatalf("Failed to create GitHub REST client: %v", err)
	}

	var runnerOpts []jobs.RunnerOption
	if cfg.GitHub.StarRepository != "" {
		owner, repo, err := utils.ParseRepoSlug(cfg.GitHub.StarRepository)
		if err != nil {
			logger.Fatalf("Invalid STAR_REPOSITORY: %v", err)
		}
		runnerOpts = append(runnerOpts, jobs.WithStarTarget(restClient, owner, repo))
	}
	runner := jobs.NewReportRunner(service, store, logger, runnerOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := jobs.NewDispatcher(cfg.Worker, logger)
	dispatcher.Start(ctx)

	handler := api.NewHandler(
		store,
		dispatcher,
		func(username, token string, year int) jobs.Job {
			return runner.NewJob(username, token, year)
		},
		auth.NewGitHubProvider(cfg.OAuth),
		restClient,
		logger,
	)

	// Setup router with middleware
	router := api.SetupRouter(handler)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(router)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	// Running jobs see a cancelled context and record their failure
	cancel()
	if err := dispatcher.Stop(); err != nil {
		logger.Errorf("Worker shutdown failed: %v", err)
	}
	logger.Info("Server exited properly")
}

// retry retries a function up to a certain number of attempts with a delay between attempts
func retry(attempts int, sleep time.Duration, fn func() error) error {
	if err := fn(); err != nil {
		if attempts--; attempts > 0 {
			time.Sleep(sleep)
			return retry(attempts, sleep, fn)
		}
		return err
	}
	return nil
}
