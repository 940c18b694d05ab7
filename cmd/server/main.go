package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/yourusername/lingo-service/internal/auth"
	"github.com/yourusername/lingo-service/internal/chat"
	"github.com/yourusername/lingo-service/internal/config"
	"github.com/yourusername/lingo-service/internal/database"
	"github.com/yourusername/lingo-service/internal/logging"
	"github.com/yourusername/lingo-service/internal/repository"
	"github.com/yourusername/lingo-service/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:           "lingo-server",
		Short:         "Language exchange chat API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configFile, envFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file (default ./config.yaml)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	return cmd
}

func run(ctx context.Context, configFile, envFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	loaded, err := config.LoadEnvFile(envFile)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	if !loaded {
		logger.Info("No .env file found, using system environment variables")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting lingo API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
		slog.String("store", cfg.Store.Driver),
	)

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	issuer, err := auth.NewIssuer([]byte(cfg.Auth.JWTSecret), auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to create session issuer: %w", err)
	}

	deps := server.Deps{
		Config: cfg,
		Store:  store,
		Issuer: issuer,
		Logger: logger,
	}

	if cfg.Stream.Enabled() {
		provider, err := chat.NewStreamProvider(cfg.Stream.APIKey, cfg.Stream.APISecret, cfg.Stream.TokenTTL)
		if err != nil {
			return err
		}
		deps.Chat = provider
		deps.Webhooks = provider
		logger.Info("Using Stream chat provider")
	} else {
		deps.Chat = chat.NewLocalProvider([]byte(cfg.Auth.JWTSecret), cfg.Stream.TokenTTL)
		logger.Warn("Stream credentials not set, using in-process chat provider")
	}

	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			// Rate limiting is optional
			logger.Warn("Redis unavailable, rate limiting disabled", slog.String("error", err.Error()))
		} else {
			defer rdb.Close()
			deps.RateLimiter = rdb
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewHandler(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("Shutting down server", slog.String("signal", sig.String()))
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// openStore connects the configured document store.
func openStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverFirestore:
		client, err := config.NewFirestoreClient(ctx, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		return repository.NewFirestoreStore(client), nil
	case config.DriverMongo:
		return repository.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case config.DriverBunt:
		return repository.NewBuntStore(cfg.Bunt.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
