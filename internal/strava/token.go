package strava

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"klaus-webhook/internal/apperror"
	"klaus-webhook/internal/credstore"
	"klaus-webhook/internal/metrics"
)

// TokenSource hands out access tokens for one Strava client, refreshing them
// through the credential store. It is safe for concurrent use: refresh
// exchanges for the same client are collapsed into one, so a rotated refresh
// token is never spent twice.
type TokenSource struct {
	store      credstore.Store
	oauth      *oauth2.Config
	httpClient *http.Client
	margin     time.Duration
	timeout    time.Duration
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	group      singleflight.Group
}

// TokenSourceConfig describes the client credentials and refresh policy.
type TokenSourceConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	// ExpiryMargin triggers a proactive refresh this long before expiry.
	ExpiryMargin time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func NewTokenSource(cfg TokenSourceConfig, store credstore.Store, log *zap.Logger, m *metrics.Metrics) *TokenSource {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &TokenSource{
		store: store,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(cfg.BaseURL, "/") + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		margin:     cfg.ExpiryMargin,
		timeout:    cfg.Timeout,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// Token returns a usable access token. A cached token is reused until it is
// within the expiry margin; a token with no recorded expiry is assumed valid.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	creds, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	if s.usable(creds) {
		return creds.AccessToken, nil
	}
	return s.refresh(ctx, "")
}

// ForceRefresh replaces an access token the platform rejected. If another
// caller already rotated stale out, the newer token is returned without a
// second exchange.
func (s *TokenSource) ForceRefresh(ctx context.Context, stale string) (string, error) {
	return s.refresh(ctx, stale)
}

func (s *TokenSource) usable(creds credstore.Credentials) bool {
	if creds.AccessToken == "" {
		return false
	}
	if creds.Expiry.IsZero() {
		return true
	}
	return s.now().Add(s.margin).Before(creds.Expiry)
}

func (s *TokenSource) load(ctx context.Context) (credstore.Credentials, error) {
	creds, err := s.store.Load(ctx)
	if errors.Is(err, credstore.ErrNotFound) {
		return credstore.Credentials{}, &apperror.AuthError{Reason: "no stored credentials"}
	}
	if err != nil {
		return credstore.Credentials{}, &apperror.AuthError{Reason: "load credentials", Err: err}
	}
	return creds, nil
}

func (s *TokenSource) refresh(ctx context.Context, stale string) (string, error) {
	// The exchange outlives a single caller's cancellation: other callers
	// may be waiting on the same flight.
	flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	v, err, shared := s.group.Do(s.oauth.ClientID, func() (any, error) {
		creds, err := s.load(flightCtx)
		if err != nil {
			return "", err
		}
		if s.usable(creds) && (stale == "" || creds.AccessToken != stale) {
			return creds.AccessToken, nil
		}
		if creds.RefreshToken == "" {
			return "", &apperror.AuthError{Reason: "missing refresh token"}
		}

		next, err := s.exchange(flightCtx, creds.RefreshToken)
		s.metrics.ObserveTokenRefresh(err)
		if err != nil {
			return "", err
		}
		if err := s.store.Save(flightCtx, next); err != nil {
			return "", &apperror.AuthError{Reason: "persist rotated credentials", Err: err}
		}
		s.log.Info("strava token refreshed", zap.Time("expiry", next.Expiry))
		return next.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.log.Debug("joined in-flight token refresh")
	}
	return v.(string), nil
}

// exchange performs the refresh_token grant against {base}/oauth/token.
func (s *TokenSource) exchange(ctx context.Context, refreshToken string) (credstore.Credentials, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return credstore.Credentials{}, &apperror.AuthError{
				Reason:     "token refresh rejected",
				StatusCode: retrieveErr.Response.StatusCode,
			}
		}
		return credstore.Credentials{}, &apperror.AuthError{Reason: "token refresh failed", Err: err}
	}

	expiry := tok.Expiry
	// Strava reports an absolute expires_at next to expires_in; prefer it.
	if at, ok := tok.Extra("expires_at").(float64); ok && at > 0 {
		expiry = time.Unix(int64(at), 0)
	}

	next := credstore.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       expiry,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	return next, nil
}
