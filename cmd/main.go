// Package main provides the entry point for the Klaus webhook service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/generative-ai-go/genai"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"klaus-webhook/internal/config"
	"klaus-webhook/internal/credstore"
	"klaus-webhook/internal/generator"
	"klaus-webhook/internal/handler"
	"klaus-webhook/internal/logger"
	"klaus-webhook/internal/metrics"
	"klaus-webhook/internal/model"
	"klaus-webhook/internal/pipeline"
	"klaus-webhook/internal/prompt"
	errtrack "klaus-webhook/internal/sentry"
	"klaus-webhook/internal/strava"
)

// app is the wired service.
type app struct {
	router   http.Handler
	reporter *errtrack.Reporter
	redis    *redis.Client
	gemini   *genai.Client
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	reporter, err := errtrack.New(errtrack.Config{DSN: cfg.SentryDSN, Environment: cfg.Env}, log)
	if err != nil {
		return nil, err
	}
	a.reporter = reporter

	var store credstore.Store = credstore.NewMemory()
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		store = credstore.NewRedis(a.redis, cfg.Redis.CredentialsKey)
		log.Info("using redis credential store", zap.String("addr", cfg.Redis.Addr))
	}
	seedCtx, cancel := context.WithTimeout(ctx, cfg.Strava.Timeout)
	defer cancel()
	if err := store.Seed(seedCtx, credstore.Credentials{RefreshToken: cfg.Strava.RefreshToken}); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed credentials: %w", err)
	}

	tokens := strava.NewTokenSource(strava.TokenSourceConfig{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		BaseURL:      cfg.Strava.BaseURL,
		ExpiryMargin: cfg.Strava.TokenExpiryMargin,
		Timeout:      cfg.Strava.Timeout,
	}, store, log.Named("strava"), m)
	client := strava.NewClient(strava.Config{
		BaseURL:       cfg.Strava.BaseURL,
		Timeout:       cfg.Strava.Timeout,
		FetchAttempts: cfg.Strava.FetchAttempts,
		RetryDelay:    cfg.Strava.RetryDelay,
	}, tokens, log.Named("strava"), m)

	prompts := prompt.NewBuilder(cfg.Policy.DescriptionMinChars, cfg.Policy.DescriptionMaxChars)
	gm, gemini, err := generator.NewGeminiModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.ModelName, prompts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	a.gemini = gemini
	gen := generator.New(gm, prompts, generator.Config{
		Timeout:  cfg.Gemini.Timeout,
		Attempts: cfg.Gemini.GenerationAttempts,
	}, log.Named("generator"), m)

	p := pipeline.New(client, gen, pipeline.Config{HideDistanceMeters: cfg.Policy.HideDistanceMeters}, log.Named("pipeline"), m)
	h := handler.New(log, p, client, model.NewValidator(), reporter, cfg.Strava.WebhookVerifyToken)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handler.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(reporter.Middleware)
	h.Mount(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	a.router = r

	return a, nil
}

// Close releases the upstream clients and flushes pending error reports.
func (a *app) Close() {
	if a.gemini != nil {
		_ = a.gemini.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.reporter.Flush(2 * time.Second)
}

// Run is the testable entrypoint for the application.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	log.Info("Starting Klaus webhook", zap.String("env", cfg.Env))

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Handler:      a.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout + 4*cfg.Strava.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddress, err)
	}
	log.Info("listening", zap.String("address", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error("server error", zap.Error(err))
		return err
	}

	log.Info("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctxShutdown)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
