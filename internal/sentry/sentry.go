// Package sentry reports pipeline failures to Sentry. A Reporter built
// without a DSN drops everything.
package sentry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type Config struct {
	DSN         string
	Environment string
	Release     string
	// Transport overrides delivery; nil uses the SDK's HTTP transport.
	Transport sentry.Transport
}

type Reporter struct {
	hub *sentry.Hub
	log *zap.Logger
}

// New builds a Reporter on its own hub so that captures never touch the
// SDK's global scope.
func New(cfg Config, log *zap.Logger) (*Reporter, error) {
	if cfg.DSN == "" {
		log.Warn("sentry DSN not configured - error reporting disabled")
		return &Reporter{log: log}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		Transport:   cfg.Transport,
		BeforeSend:  scrub,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}

	log.Info("sentry initialized", zap.String("environment", cfg.Environment))
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope()), log: log}, nil
}

// scrub removes credentials from the request attached to an event.
func scrub(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil && event.Request.Headers != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
	}
	return event
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// Capture sends err with the given tags.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		r.hub.CaptureException(err)
	})
	r.log.Debug("error captured in sentry", zap.Error(err))
}

// Flush waits up to timeout for queued events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}

// Middleware captures a panic from next and re-panics so that an outer
// recoverer still writes the response.
func (r *Reporter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				r.Capture(err, map[string]string{"method": req.Method, "path": req.URL.Path})
				r.Flush(2 * time.Second)
				panic(rec)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
