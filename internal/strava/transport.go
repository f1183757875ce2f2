package strava

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type tokenProvider interface {
	Token(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context, stale string) (string, error)
}

// Transport is an http.RoundTripper that authenticates every request with a
// bearer token and, on a 401, refreshes the token once and replays the
// identical request once.
type Transport struct {
	Source tokenProvider
	// Base performs the actual requests. If nil, http.DefaultTransport is used.
	Base http.RoundTripper
	Log  *zap.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	token, err := t.Source.Token(ctx)
	if err != nil {
		return nil, err
	}

	req2 := req.Clone(ctx)
	req2.Header.Set("Authorization", "Bearer "+token)

	resp, err := base.RoundTrip(req2)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if t.Log != nil {
		t.Log.Warn("strava rejected access token, forcing refresh",
			zap.String("method", req.Method), zap.String("path", req.URL.Path))
	}

	token, err = t.Source.ForceRefresh(ctx, token)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, fmt.Errorf("strava: cannot replay %s %s after refresh", req.Method, req.URL.Path)
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("strava: rewind request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(retry)
}
