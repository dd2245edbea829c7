package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/quantfold/tessera"
	"github.com/quantfold/tessera/internal/config"
	"github.com/quantfold/tessera/internal/logging"
	"github.com/quantfold/tessera/internal/runtime"
	fileAdapter "github.com/quantfold/tessera/pkg/adapters/file"
	httpAdapter "github.com/quantfold/tessera/pkg/adapters/http"
	redisAdapter "github.com/quantfold/tessera/pkg/adapters/redis"
	"github.com/quantfold/tessera/pkg/observability"
	"github.com/quantfold/tessera/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestration HTTP server",
	Long:  `Starts the tessera engine in server mode, exposing pattern execution, ownership management, and breaker operations over a JSON API.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "", "Path to the YAML config file")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	dir, _ := cmd.Flags().GetString("dir")
	if cmd.Flags().Changed("dir") || cfg.Runtime.PatternDir == "" {
		cfg.Runtime.PatternDir = dir
	}

	logger := logging.NewJSON(os.Stderr, logging.ParseLevel(os.Getenv("TESSERA_LOG_LEVEL")))

	// Ownership overrides: hot-reloaded file store when configured.
	var ownership ports.OwnershipStore
	var ownershipWatch func(context.Context) error
	if cfg.Runtime.OwnershipFile != "" {
		store, err := fileAdapter.NewOwnershipStore(cfg.Runtime.OwnershipFile, logger)
		if err != nil {
			return fmt.Errorf("opening ownership file: %w", err)
		}
		ownership = store
		ownershipWatch = store.Watch
	}

	// Shared cache tier: Redis when configured, in-process otherwise.
	var cache ports.CacheStore
	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = redisAdapter.NewCacheStore(client)
		logger.Info("shared cache enabled", "addr", cfg.Redis.Addr)
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	opts := []tessera.Option{
		tessera.WithLogger(logger),
		tessera.WithLifecycleHooks(metrics.Hooks()),
		tessera.WithTraceSink(observability.NewLogSink(logger)),
		tessera.WithRuntimeConfig(runtime.ContainerConfig{
			BreakerThreshold:   cfg.Runtime.BreakerThreshold,
			BreakerCooldown:    cfg.Runtime.BreakerCooldown,
			DefaultStepTimeout: cfg.Runtime.StepTimeout,
		}),
	}
	if ownership != nil {
		opts = append(opts, tessera.WithOwnershipStore(ownership))
	}
	if cache != nil {
		opts = append(opts, tessera.WithCacheStore(cache))
	}

	engine, err := tessera.New(cfg.Runtime.PatternDir, opts...)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Init(ctx); err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	if ownershipWatch != nil {
		if err := ownershipWatch(ctx); err != nil {
			return fmt.Errorf("watching ownership file: %w", err)
		}
	}

	handler := httpAdapter.NewHandler(engine,
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetrics(reg),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("tessera server listening", "addr", srv.Addr, "patterns", cfg.Runtime.PatternDir)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful HTTP shutdown did not complete", "error", err)
			if err := srv.Close(); err != nil {
				logger.Error("error closing server", "error", err)
			}
		}
		if err := engine.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("tessera server stopped gracefully")
		return nil
	}
}
