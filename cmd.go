package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Seeker220/letswatch/auth"
	"github.com/Seeker220/letswatch/config"
	"github.com/Seeker220/letswatch/dashboard"
	"github.com/Seeker220/letswatch/database"
	"github.com/Seeker220/letswatch/logging"
	"github.com/Seeker220/letswatch/repository"
	"github.com/Seeker220/letswatch/services"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "letswatch",
		Short:         "Watch-state tracking and continue-watching API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			RunE: func(_ *cobra.Command, _ []string) error {
				return runMigrate()
			},
		},
	)

	return root
}

func runMigrate() error {
	dbCfg, logCfg, err := config.LoadStorage()
	if err != nil {
		return err
	}
	logger := logging.New(*logCfg)

	db, err := openDatabase(*dbCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}()

	logger.Info("Database schema is up to date")
	return nil
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	// Initialize database
	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}()

	app := newApp(cfg, db, logger)
	if cfg.MAL.AccessToken == "" {
		logger.Warn("MAL_ACCESS_TOKEN not set - MyAnimeList endpoints will fail")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on :%s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func openDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Driver, cfg.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize schema
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// newApp wires every process-wide dependency
func newApp(cfg *config.Config, db *database.DB, logger *logrus.Logger) *App {
	opts := services.ClientOptions{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Retries:    cfg.Provider.Retries,
		Logger:     logger,
	}
	tmdbService := services.NewTMDBService(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, opts)
	anilistService := services.NewAniListService(cfg.AniList.URL, opts)
	malService := services.NewMALService(cfg.MAL.BaseURL, cfg.MAL.AccessToken, opts)

	watchRepo := repository.NewWatchRepository(db)
	enricher := dashboard.NewEnricher(
		dashboard.NewResolver(tmdbService, anilistService),
		cfg.EnrichConcurrency,
		cfg.Provider.Timeout,
		logger,
	)
	assembler := dashboard.NewAssembler(dashboard.NewSelector(watchRepo, cfg.DashboardLimit), enricher, logger)

	return &App{
		watchRepo:       watchRepo,
		dashboard:       assembler,
		tmdbService:     tmdbService,
		anilistService:  anilistService,
		malService:      malService,
		verifier:        auth.NewVerifier(cfg.Auth.JWTSecret),
		providerTimeout: cfg.Provider.Timeout,
		logger:          logger,
	}
}
