// Command staticembed runs the sentence-encoding HTTP service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/staticembed/staticembed"
	"github.com/staticembed/staticembed/internal/config"
	"github.com/staticembed/staticembed/internal/db"
	dbRedis "github.com/staticembed/staticembed/internal/db/redis"
	"github.com/staticembed/staticembed/internal/domain"
	"github.com/staticembed/staticembed/internal/freq"
	logpkg "github.com/staticembed/staticembed/internal/logger"
	"github.com/staticembed/staticembed/internal/metrics"
	budgetrepo "github.com/staticembed/staticembed/internal/repository/budget"
	"github.com/staticembed/staticembed/internal/repository/enccache"
	chiTransport "github.com/staticembed/staticembed/internal/transport/chi"
	openaiEnc "github.com/staticembed/staticembed/internal/transport/openai"
	encodinguc "github.com/staticembed/staticembed/internal/usecase/encoding"
	"github.com/staticembed/staticembed/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting staticembed API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Encoder.Backend),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	// Optional cache store
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store")
	}

	encoder, health, model, err := buildEncoder(context.Background(), cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to build encoder", zap.Error(err))
	}
	logger.Info("Encoder ready", zap.String("model", model))

	server := chiTransport.NewServer(encoder, health, model, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.HTTP.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEncoder assembles the encoder chain for the configured backend.
// static: StaticEmbedder -> Local -> Cached -> Instrumented
// remote: OpenAI -> Cached -> Instrumented (with budget)
func buildEncoder(
	ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger,
) (domain.Encoder, domain.HealthChecker, string, error) {
	var base domain.Encoder
	var health domain.HealthChecker
	var model string

	// budget stays a nil interface unless limits are configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budget encodinguc.BudgetChecker

	switch cfg.Encoder.Backend {
	case "static":
		local, err := buildStaticBackend(cfg.Encoder.Static)
		if err != nil {
			return nil, nil, "", err
		}
		base = local
		health = local
		model = local.Name()

	case "remote":
		remote := openaiEnc.NewEncoder(&openaiEnc.Config{
			APIKey:     cfg.Encoder.Remote.APIKey,
			BaseURL:    cfg.Encoder.Remote.BaseURL,
			Model:      cfg.Encoder.Remote.Model,
			Dimensions: cfg.Encoder.Remote.Dimensions,
			Logger:     logger,
		})
		base = remote
		health = remote
		model = remote.Model()

		budgetCfg := cfg.Encoder.Remote.Budget
		if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
			action := encodinguc.BudgetActionWarn
			if budgetCfg.Action == "reject" {
				action = encodinguc.BudgetActionReject
			}
			// Budgets are keyed per model so two remote models never share a counter.
			tracker := encodinguc.NewBudgetTracker(
				model, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
			)
			if store != nil {
				// Connect persistence store — loads current counters from DB.
				budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
				tracker.WithStore(ctx, budgetStore)
			}
			budget = tracker
		}

	default:
		return nil, nil, "", fmt.Errorf("unknown encoder backend %q", cfg.Encoder.Backend)
	}

	encoder := base
	if store != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		encoder = enccache.New(encoder, store, ttl, metrics.CacheTotal, logger)
	}

	encoder = encodinguc.NewInstrumented(encoder, budget, cfg.Encoder.Backend, model, logger)
	return encoder, health, model, nil
}

// buildStaticBackend loads the vector table and builds the in-process encoder.
func buildStaticBackend(cfg config.StaticConfig) (*encodinguc.LocalEncoder, error) {
	opts := []staticembed.Option{
		staticembed.WithPCA(cfg.PCAEnabled()),
		staticembed.WithPCAComponents(cfg.PCAComponents),
	}

	switch cfg.Weighting {
	case "zipf":
		// default, nothing to do
	case "none":
		opts = append(opts, staticembed.WithZipfWeighting(false))
	case "frequency":
		freqs, err := freq.Load(cfg.FrequencyFile)
		if err != nil {
			return nil, fmt.Errorf("load frequency table: %w", err)
		}
		opts = append(opts,
			staticembed.WithZipfWeighting(false),
			staticembed.WithFrequencyWeighting(freqs),
		)
	}

	embedder, err := staticembed.FromVectors(cfg.VectorsPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("build static embedder: %w", err)
	}
	return encodinguc.NewLocal(embedder), nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWith(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
