// Package handler contains the HTTP handlers for the Strava webhook and the
// operator endpoints around it.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"klaus-webhook/internal/apperror"
	"klaus-webhook/internal/model"
	"klaus-webhook/internal/pipeline"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

var errInvalidActivityID = errors.New("invalid activity id")

// Pipeline runs webhook events and on-demand rewrites.
type Pipeline interface {
	Process(ctx context.Context, event model.WebhookEvent) (pipeline.Outcome, error)
	GeneratePost(ctx context.Context, id int64) (model.GeneratedPost, error)
}

// Strava is the platform client behind the passthrough endpoints.
type Strava interface {
	GetAthlete(ctx context.Context) (json.RawMessage, error)
	ListActivities(ctx context.Context) (json.RawMessage, error)
	GetActivity(ctx context.Context, id int64) (*model.ActivityRecord, error)
	UpdateActivity(ctx context.Context, id int64, update model.ActivityUpdate) (*model.ActivityRecord, error)
	HideActivity(ctx context.Context, id int64) (*model.ActivityRecord, error)
}

// ErrorReporter receives failures worth alerting on.
type ErrorReporter interface {
	Capture(err error, tags map[string]string)
}

// Handler wraps HTTP handlers with their dependencies.
type Handler struct {
	log         *zap.Logger
	pipeline    Pipeline
	strava      Strava
	validate    *validator.Validate
	reporter    ErrorReporter
	verifyToken string
}

// New creates a new Handler. An empty verifyToken disables the
// subscription token check; reporter may be nil.
func New(log *zap.Logger, p Pipeline, s Strava, v *validator.Validate, reporter ErrorReporter, verifyToken string) *Handler {
	return &Handler{log: log, pipeline: p, strava: s, validate: v, reporter: reporter, verifyToken: verifyToken}
}

// Mount registers every route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.Hello)
	r.Get("/healthz", h.Healthz)
	r.Get("/webhook", h.Challenge)
	r.Post("/webhook", h.Webhook)

	r.Route("/strava", func(r chi.Router) {
		r.Get("/athlete", h.GetAthlete)
		r.Get("/activities", h.ListActivities)
		r.Get("/activity/{id}", h.GetActivity)
		r.Put("/activity/{id}", h.UpdateActivity)
		r.Put("/activity/{id}/hide", h.HideActivity)
	})
	r.Put("/gemini/post/{id}", h.GeneratePost)
}

func (h *Handler) Hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

// Healthz is a simple health check endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Challenge answers the subscription handshake by echoing hub.challenge,
// whatever its value.
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if h.verifyToken != "" &&
		subtle.ConstantTimeCompare([]byte(query.Get("hub.verify_token")), []byte(h.verifyToken)) != 1 {
		h.log.Warn("webhook challenge with wrong verify token")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "verify token mismatch"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": query.Get("hub.challenge")})
}

// Webhook receives an event, validates it and runs it through the pipeline.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event model.WebhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&event); err != nil {
		h.log.Error("failed to decode json", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request payload",
		})
		return
	}

	if err := h.validate.Struct(event); err != nil {
		h.fail(w, apperror.NewValidationError(err), nil)
		return
	}

	outcome, err := h.pipeline.Process(r.Context(), event)
	if err != nil {
		h.fail(w, err, map[string]string{"object_id": strconv.FormatInt(event.ObjectID, 10)})
		return
	}
	writeJSON(w, http.StatusOK, outcome.Body())
}

func (h *Handler) GetAthlete(w http.ResponseWriter, r *http.Request) {
	athlete, err := h.strava.GetAthlete(r.Context())
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, athlete)
}

func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.strava.ListActivities(r.Context())
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	h.withActivityID(w, r, func(id int64) (any, error) {
		return h.strava.GetActivity(r.Context(), id)
	})
}

// UpdateActivity applies a sparse patch. Unknown fields and nulls are
// rejected before anything is sent.
func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	h.withActivityID(w, r, func(id int64) (any, error) {
		var update model.ActivityUpdate
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
			return nil, &apperror.ValidationError{Err: err}
		}
		return h.strava.UpdateActivity(r.Context(), id, update)
	})
}

func (h *Handler) HideActivity(w http.ResponseWriter, r *http.Request) {
	h.withActivityID(w, r, func(id int64) (any, error) {
		return h.strava.HideActivity(r.Context(), id)
	})
}

// GeneratePost rewrites one activity on demand and returns the post.
func (h *Handler) GeneratePost(w http.ResponseWriter, r *http.Request) {
	h.withActivityID(w, r, func(id int64) (any, error) {
		return h.pipeline.GeneratePost(r.Context(), id)
	})
}

func (h *Handler) withActivityID(w http.ResponseWriter, r *http.Request, fn func(id int64) (any, error)) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, &apperror.ValidationError{Err: errInvalidActivityID}, nil)
		return
	}
	result, err := fn(id)
	if err != nil {
		h.fail(w, err, map[string]string{"activity_id": raw})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// fail writes the error response. Server-side failures are also reported.
func (h *Handler) fail(w http.ResponseWriter, err error, tags map[string]string) {
	status, body := apperror.Describe(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Int("status", status), zap.Error(err))
		if h.reporter != nil {
			h.reporter.Capture(err, tags)
		}
	} else {
		h.log.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
