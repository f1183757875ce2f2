// Package generator asks Gemini to write Klaus's post for an activity and
// decodes the answer strictly.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"klaus-webhook/internal/apperror"
	"klaus-webhook/internal/metrics"
	"klaus-webhook/internal/model"
	"klaus-webhook/internal/prompt"
)

// Reasons reported on apperror.GenerationError.
const (
	ReasonPrompt    = "build prompt"
	ReasonCall      = "model call failed"
	ReasonEmpty     = "empty response"
	ReasonMalformed = "malformed output"
)

// Model is the part of *genai.GenerativeModel the generator uses.
type Model interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Config bounds a generation.
type Config struct {
	Timeout time.Duration
	// Attempts is how often the model is asked when its answer cannot be
	// decoded. Failed calls are never repeated.
	Attempts int
}

type Generator struct {
	model    Model
	prompts  *prompt.Builder
	validate *validator.Validate
	timeout  time.Duration
	attempts int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func New(m Model, prompts *prompt.Builder, cfg Config, log *zap.Logger, mt *metrics.Metrics) *Generator {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return &Generator{
		model:    m,
		prompts:  prompts,
		validate: model.NewValidator(),
		timeout:  cfg.Timeout,
		attempts: attempts,
		log:      log,
		metrics:  mt,
	}
}

// NewGeminiModel connects to the Gemini API and returns the configured model
// together with the client that must be closed on shutdown.
func NewGeminiModel(ctx context.Context, apiKey, modelName string, prompts *prompt.Builder) (*genai.GenerativeModel, *genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, err
	}
	m := client.GenerativeModel(modelName)
	Configure(m, prompts)
	return m, client, nil
}

// Configure constrains the model to answer with a JSON object holding a
// name and a description, in Klaus's voice. Thinking is left at the model's
// dynamic default.
func Configure(m *genai.GenerativeModel, prompts *prompt.Builder) {
	m.SystemInstruction = prompts.SystemInstruction()
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":        {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
		},
		Required: []string{"name", "description"},
	}
}

// GeneratePost returns the post for record. Every failure is an
// *apperror.GenerationError.
func (g *Generator) GeneratePost(ctx context.Context, record *model.ActivityRecord) (model.GeneratedPost, error) {
	req, err := g.prompts.Build(record)
	if err != nil {
		return model.GeneratedPost{}, &apperror.GenerationError{Reason: ReasonPrompt, Err: err}
	}

	var lastErr *apperror.GenerationError
	for i := 1; i <= g.attempts; i++ {
		start := time.Now()
		post, genErr := g.generate(ctx, req)
		if genErr == nil {
			g.metrics.ObserveGeneration(time.Since(start), nil)
			return post, nil
		}
		g.metrics.ObserveGeneration(time.Since(start), genErr)
		lastErr = genErr

		if genErr.Reason == ReasonCall || ctx.Err() != nil {
			break
		}
		if i < g.attempts {
			g.log.Warn("model returned unusable post, asking again",
				zap.Int("attempt", i), zap.String("reason", genErr.Reason), zap.Error(genErr.Err))
		}
	}
	return model.GeneratedPost{}, lastErr
}

func (g *Generator) generate(ctx context.Context, req prompt.Request) (model.GeneratedPost, *apperror.GenerationError) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.model.GenerateContent(ctx, req.Parts()...)
	if err != nil {
		return model.GeneratedPost{}, &apperror.GenerationError{Reason: ReasonCall, Err: err}
	}

	raw := responseText(resp)
	if strings.TrimSpace(raw) == "" {
		genErr := &apperror.GenerationError{Reason: ReasonEmpty}
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			genErr.Err = errors.New("prompt blocked: " + resp.PromptFeedback.BlockReason.String())
		}
		return model.GeneratedPost{}, genErr
	}

	post, err := g.decode(raw)
	if err != nil {
		return model.GeneratedPost{}, &apperror.GenerationError{Reason: ReasonMalformed, Raw: apperror.Truncate(raw), Err: err}
	}
	return post, nil
}

// decode accepts exactly one JSON object holding the keys name and
// description, spelled exactly so and each present once, with non-blank
// string values and nothing after it.
func (g *Generator) decode(raw string) (model.GeneratedPost, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return model.GeneratedPost{}, err
	}

	var post model.GeneratedPost
	targets := map[string]*string{"name": &post.Name, "description": &post.Description}
	for key, dst := range targets {
		value, ok := fields[key]
		if !ok {
			return model.GeneratedPost{}, fmt.Errorf("missing field %q", key)
		}
		if err := json.Unmarshal(value, dst); err != nil {
			return model.GeneratedPost{}, fmt.Errorf("field %q: %w", key, err)
		}
	}
	if err := g.validate.Struct(post); err != nil {
		return model.GeneratedPost{}, err
	}
	return post, nil
}

// decodeObject walks a single top-level object, rejecting unknown or
// repeated keys and trailing data.
func decodeObject(raw string) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("post is not a JSON object")
	}

	fields := make(map[string]json.RawMessage, 2)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		if key != "name" && key != "description" {
			return nil, fmt.Errorf("unknown field %q", key)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate field %q", key)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after post object")
	}
	return fields, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
