package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/formrelay-systems/formrelay/internal/dedup"
	"github.com/formrelay-systems/formrelay/internal/dlq"
	"github.com/formrelay-systems/formrelay/internal/handlers"
	"github.com/formrelay-systems/formrelay/internal/logging"
	"github.com/formrelay-systems/formrelay/internal/ratelimit"
	"github.com/formrelay-systems/formrelay/internal/server"
	"github.com/formrelay-systems/formrelay/internal/service"
	"github.com/formrelay-systems/formrelay/internal/status"
	"github.com/formrelay-systems/formrelay/internal/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("formrelay"))
	logging.SetDefault(logger)

	slog.Info("Starting formrelay",
		slog.Int("port", cfg.Server.Port),
		slog.String("upstream_url", cfg.Upstream.BaseURL),
		slog.String("dedup_backend", cfg.Dedup.Backend),
		slog.Bool("async", cfg.Forward.Async),
	)

	// Dedup store
	var store dedup.Store
	switch cfg.Dedup.Backend {
	case "redis":
		redisStore, err := dedup.NewRedisStore(cfg.Dedup.RedisURL, cfg.Dedup.Window)
		if err != nil {
			return fmt.Errorf("connect dedup redis: %w", err)
		}
		store = redisStore
		log.Printf("Dedup store: redis (%s, window %s)", cfg.Dedup.RedisURL, cfg.Dedup.Window)
	default:
		store = dedup.NewMemoryStore(cfg.Dedup.Window, cfg.Dedup.SweepInterval)
		log.Printf("Dedup store: memory (window %s)", cfg.Dedup.Window)
	}
	defer store.Close()

	// Rate limiter
	var limiter ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		redisLimiter, err := ratelimit.NewRedisRateLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			log.Printf("WARNING: rate limiter unavailable: %v", err)
			log.Println("Continuing without rate limiting")
			limiter = &ratelimit.NoOpRateLimiter{}
		} else {
			limiter = redisLimiter
			log.Printf("Rate limiting enabled: %d requests per %s", cfg.RateLimit.Requests, cfg.RateLimit.Window)
		}
	} else {
		limiter = &ratelimit.NoOpRateLimiter{}
		log.Println("Rate limiting disabled in configuration")
	}
	defer limiter.Close()

	// Failure queue
	var failures *dlq.Queue
	if cfg.DLQ.Enabled {
		queue, err := dlq.NewQueue(cfg.DLQ.BasePath)
		if err != nil {
			return fmt.Errorf("initialize failure queue: %w", err)
		}
		failures = queue
		log.Printf("Failure queue enabled (path: %s)", cfg.DLQ.BasePath)
	} else {
		log.Println("Failure queue disabled; exhausted submissions will be dropped")
	}

	// Status registry for async deliveries
	var statuses *status.Registry
	if cfg.Forward.Async {
		statuses = status.NewRegistry(cfg.Status.TTL)
		defer statuses.Close()
		log.Printf("Async delivery enabled (%d workers, queue %d)", cfg.Forward.Workers, cfg.Forward.QueueSize)
	}

	client := upstream.New(upstream.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		APIKey:     cfg.Upstream.APIKey,
		Timeout:    cfg.Upstream.Timeout,
		PathPrefix: cfg.Upstream.PathPrefix,
	})

	// A nil *dlq.Queue inside a non-nil interface would defeat the
	// service's nil check, so only hand it over when enabled.
	var failureWriter service.FailureWriter
	if failures != nil {
		failureWriter = failures
	}

	relay := service.NewRelayService(service.Config{
		MaxRetries:     cfg.Forward.MaxRetries,
		BackoffInitial: cfg.Forward.BackoffInitial,
		BackoffFactor:  cfg.Forward.BackoffFactor,
		Async:          cfg.Forward.Async,
		QueueSize:      cfg.Forward.QueueSize,
		Workers:        cfg.Forward.Workers,
	}, store, client, failureWriter, statuses, logger)
	defer relay.Close()

	handler := handlers.NewSubmitHandler(relay, statuses, limiter, failures, cfg.Ingest.SharedSecret, cfg.Server.MaxBodySize, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("formrelay listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
