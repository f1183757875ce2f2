// Package pipeline decides what happens to a newly created activity: short
// outings are hidden from the home feed, everything else is rewritten by
// Klaus.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"klaus-webhook/internal/metrics"
	"klaus-webhook/internal/model"
)

// Outcome is how an event ended. The zero value means the run failed.
type Outcome string

const (
	OutcomeRejected Outcome = "rejected"
	OutcomeHidden   Outcome = "hidden"
	OutcomePosted   Outcome = "posted"
)

// Body is the JSON response acknowledging the outcome.
func (o Outcome) Body() map[string]string {
	switch o {
	case OutcomeHidden:
		return map[string]string{"message": "Activity hidden"}
	case OutcomePosted:
		return map[string]string{"message": "Post generated"}
	default:
		return map[string]string{}
	}
}

type ActivityClient interface {
	GetActivity(ctx context.Context, id int64) (*model.ActivityRecord, error)
	UpdateActivity(ctx context.Context, id int64, update model.ActivityUpdate) (*model.ActivityRecord, error)
	HideActivity(ctx context.Context, id int64) (*model.ActivityRecord, error)
}

type PostGenerator interface {
	GeneratePost(ctx context.Context, record *model.ActivityRecord) (model.GeneratedPost, error)
}

type Config struct {
	// HideDistanceMeters is the distance below which an activity is hidden
	// instead of posted.
	HideDistanceMeters float64
}

type Pipeline struct {
	strava    ActivityClient
	generator PostGenerator
	threshold float64
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func New(client ActivityClient, generator PostGenerator, cfg Config, log *zap.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		strava:    client,
		generator: generator,
		threshold: cfg.HideDistanceMeters,
		log:       log,
		metrics:   m,
	}
}

// Process runs one webhook event to completion. Only activity create events
// reach the platform; anything else is acknowledged and dropped.
func (p *Pipeline) Process(ctx context.Context, event model.WebhookEvent) (Outcome, error) {
	log := p.log.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("object_type", event.ObjectType),
		zap.String("aspect_type", event.AspectType),
		zap.Int64("object_id", event.ObjectID),
	)

	if !event.IsActivityCreate() {
		log.Debug("ignoring webhook event")
		p.metrics.ObserveEvent(string(OutcomeRejected))
		return OutcomeRejected, nil
	}

	outcome, err := p.run(ctx, log, event.ObjectID)
	if err != nil {
		log.Error("webhook event failed", zap.Error(err))
		p.metrics.ObserveEvent("failed")
		return "", err
	}
	log.Info("webhook event processed", zap.String("outcome", string(outcome)))
	p.metrics.ObserveEvent(string(outcome))
	return outcome, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, id int64) (Outcome, error) {
	record, err := p.strava.GetActivity(ctx, id)
	if err != nil {
		return "", fmt.Errorf("fetch activity %d: %w", id, err)
	}

	if record.Distance < p.threshold {
		log.Info("activity below distance threshold, hiding",
			zap.Float64("distance", record.Distance), zap.Float64("threshold", p.threshold))
		if _, err := p.strava.HideActivity(ctx, id); err != nil {
			return "", fmt.Errorf("hide activity %d: %w", id, err)
		}
		return OutcomeHidden, nil
	}

	if _, err := p.post(ctx, id, record); err != nil {
		return "", err
	}
	return OutcomePosted, nil
}

// GeneratePost fetches the activity, writes Klaus's post and stores it,
// regardless of distance.
func (p *Pipeline) GeneratePost(ctx context.Context, id int64) (model.GeneratedPost, error) {
	record, err := p.strava.GetActivity(ctx, id)
	if err != nil {
		return model.GeneratedPost{}, fmt.Errorf("fetch activity %d: %w", id, err)
	}
	return p.post(ctx, id, record)
}

func (p *Pipeline) post(ctx context.Context, id int64, record *model.ActivityRecord) (model.GeneratedPost, error) {
	post, err := p.generator.GeneratePost(ctx, record)
	if err != nil {
		return model.GeneratedPost{}, fmt.Errorf("generate post for activity %d: %w", id, err)
	}
	if _, err := p.strava.UpdateActivity(ctx, id, model.ActivityUpdateFromPost(post)); err != nil {
		return model.GeneratedPost{}, fmt.Errorf("update activity %d: %w", id, err)
	}
	p.log.Info("activity rewritten", zap.Int64("activity_id", id), zap.String("name", post.Name))
	return post, nil
}
