// Package strava is the authenticated client for the Strava v3 API: token
// lifecycle, activity fetch, sparse updates and hiding.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"klaus-webhook/internal/apperror"
	"klaus-webhook/internal/metrics"
	"klaus-webhook/internal/model"
)

// Config holds the client's endpoint and call policy.
type Config struct {
	BaseURL string
	// Timeout bounds every call, including a token refresh and 401 replay.
	Timeout time.Duration
	// FetchAttempts is how often an idempotent GET is tried on transport
	// failure or 5xx. Writes are tried once.
	FetchAttempts int
	RetryDelay    time.Duration
	// Base is the underlying transport; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// Client talks to the Strava API on behalf of one athlete.
type Client struct {
	baseURL       string
	http          *http.Client
	validate      *validator.Validate
	log           *zap.Logger
	metrics       *metrics.Metrics
	fetchAttempts int
	retryDelay    time.Duration
}

func NewClient(cfg Config, tokens *TokenSource, log *zap.Logger, m *metrics.Metrics) *Client {
	attempts := cfg.FetchAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &Transport{Source: tokens, Base: cfg.Base, Log: log},
		},
		validate:      model.NewValidator(),
		log:           log,
		metrics:       m,
		fetchAttempts: attempts,
		retryDelay:    cfg.RetryDelay,
	}
}

// GetAthlete returns the authenticated athlete as raw JSON.
func (c *Client) GetAthlete(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, "get_athlete", http.MethodGet, "/athlete", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ListActivities returns the athlete's recent activities as raw JSON.
func (c *Client) ListActivities(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, "list_activities", http.MethodGet, "/activities", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) GetActivity(ctx context.Context, id int64) (*model.ActivityRecord, error) {
	body, err := c.do(ctx, "get_activity", http.MethodGet, activityPath(id), nil)
	if err != nil {
		return nil, err
	}
	return c.decodeActivity("get_activity", body)
}

// UpdateActivity sends only the fields set on update and returns the
// resulting record. It is never retried: a failed write is reported.
func (c *Client) UpdateActivity(ctx context.Context, id int64, update model.ActivityUpdate) (*model.ActivityRecord, error) {
	if update.IsEmpty() {
		return nil, &apperror.ValidationError{Err: model.ErrEmptyUpdate}
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("encode activity update: %w", err)
	}
	body, err := c.do(ctx, "update_activity", http.MethodPut, activityPath(id), payload)
	if err != nil {
		return nil, err
	}
	return c.decodeActivity("update_activity", body)
}

// HideActivity mutes the activity from the home feed.
func (c *Client) HideActivity(ctx context.Context, id int64) (*model.ActivityRecord, error) {
	return c.UpdateActivity(ctx, id, model.HideUpdate())
}

func activityPath(id int64) string {
	return "/activities/" + strconv.FormatInt(id, 10)
}

func (c *Client) decodeActivity(op string, body []byte) (*model.ActivityRecord, error) {
	var record model.ActivityRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("%s: decode activity: %w", op, err)
	}
	if err := c.validate.Struct(record); err != nil {
		return nil, fmt.Errorf("%s: invalid activity record: %w", op, err)
	}
	return &record, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	attempts := 1
	if method == http.MethodGet {
		attempts = c.fetchAttempts
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		status, body, err := c.send(ctx, method, path, payload)
		c.metrics.ObserveUpstream(op, status)

		switch {
		case err == nil && status == http.StatusOK:
			return body, nil
		case err == nil && (status < 500 || i == attempts):
			return nil, newUpstreamError(op, status, body)
		case err == nil:
			lastErr = newUpstreamError(op, status, body)
		case !retryable(ctx, err):
			return nil, fmt.Errorf("%s: %w", op, err)
		default:
			lastErr = fmt.Errorf("%s: %w", op, err)
		}

		if i < attempts {
			c.log.Warn("strava request failed, retrying",
				zap.String("op", op), zap.Int("attempt", i), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}
	}
	c.log.Error("strava request failed after retries",
		zap.String("op", op), zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// retryable reports whether a failed GET may be tried again. Credential
// failures and a finished caller context are final.
func retryable(ctx context.Context, err error) bool {
	var authErr *apperror.AuthError
	if errors.As(err, &authErr) {
		return false
	}
	return ctx.Err() == nil
}

func newUpstreamError(op string, status int, body []byte) *apperror.UpstreamError {
	upstreamErr := &apperror.UpstreamError{
		Op:         op,
		StatusCode: status,
		Body:       apperror.Truncate(string(body)),
	}
	var data map[string]any
	if len(body) > 0 && json.Unmarshal(body, &data) == nil {
		upstreamErr.Data = data
	}
	return upstreamErr
}
