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

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harmwatch/harmwatch/internal/clinical"
	"github.com/harmwatch/harmwatch/internal/config"
	"github.com/harmwatch/harmwatch/internal/engine"
	"github.com/harmwatch/harmwatch/internal/harm"
	"github.com/harmwatch/harmwatch/internal/ingest"
	"github.com/harmwatch/harmwatch/internal/platform/db"
	"github.com/harmwatch/harmwatch/internal/platform/middleware"
	"github.com/harmwatch/harmwatch/internal/selector"
	"github.com/harmwatch/harmwatch/internal/store"
	"github.com/harmwatch/harmwatch/internal/timewindow"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "harm-server",
		Short: "Harm evidence aggregation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the aggregation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Apply(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List migration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			migrations, err := db.NewMigrator(nil, dir).LoadMigrations()
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %s\n", "VERSION", "NAME")
			for _, m := range migrations {
				fmt.Printf("%-10d %s\n", m.Version, m.Name)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	windows, err := timewindow.NewCalculator(cfg.TimeZone)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load unit time zone")
	}

	ctx := context.Background()

	// Clinical facts and aggregate store per backend. The memory backend
	// exists for local development only and holds no facts beyond what
	// inbound events carry.
	var (
		source clinical.FactSource
		st     store.AggregateStore
	)
	switch cfg.StoreBackend {
	case "memory":
		source = clinical.NewMemorySource()
		st = store.NewMemoryStore()
		logger.Warn().Msg("using in-memory store; aggregates will not survive a restart")
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		source = clinical.NewSource(pool)
		st = store.NewPGStore(pool)

		if cfg.StoreBackend == "redis" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				logger.Fatal().Err(err).Msg("invalid REDIS_URL")
			}
			client := redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Fatal().Err(err).Msg("failed to connect to redis")
			}
			defer client.Close()
			logger.Info().Msg("connected to redis")

			st = store.NewRedisStore(client)
		}
	}

	// Engine
	updaters := harm.NewUpdaters(source, windows, selector.New(logger), logger)
	dispatcher := engine.NewDispatcher(st, engine.NewRules(updaters), logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	var authMW echo.MiddlewareFunc
	if cfg.IngestSecret != "" {
		authMW = ingest.RequireToken(cfg.IngestSecret)
	} else {
		logger.Warn().Msg("INGEST_JWT_SECRET not set; ingest endpoints are unauthenticated")
	}

	handler := ingest.NewHandler(dispatcher, st, logger)
	handler.RegisterRoutes(e, authMW)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Timer loop keeps window-derived fields fresh between events
	timerCtx, timerCancel := context.WithCancel(ctx)
	defer timerCancel()
	timer := ingest.NewTimer(dispatcher, st, cfg.TimerInterval, logger)
	go timer.Run(timerCtx)

	// Serve with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.StoreBackend).Msg("harm-server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	timerCancel()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}
