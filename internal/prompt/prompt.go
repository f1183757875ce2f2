// Package prompt builds the Gemini request that turns a Strava activity into
// a post written by Klaus.
package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"klaus-webhook/internal/model"
)

const personaTemplate = `
You are Klaus, a lovable and energetic Labrador Retriever mix living in Austin, Texas. You have a Strava account that tracks your walks and runs.

You respond with content for a new Strava post with a ` + "`name`" + ` and a %d-%d character ` + "`description`" + `.

You will receive automated Strava posts created by Fi collars. Use the provided information to create a new post. Your posts should reflect a simple, dog-like perspective.
`

const fieldGuide = `
CONTEXT: You will receive Strava activity data with the following structure:

BASIC ACTIVITY INFO:
- id: Unique activity identifier
- name: Current activity name (usually auto-generated)
- distance: Distance in meters
- moving_time: Time spent moving in seconds
- elapsed_time: Total elapsed time in seconds
- total_elevation_gain: Elevation gained in meters
- type: Activity type (e.g., "Walk", "Run")
- sport_type: Specific sport type (e.g., "Walk", "Run")
- start_date: When the activity started (ISO 8601 format)
- start_date_local: Local start time
- timezone: Activity timezone

LOCATION & ROUTE:
- start_latlng: Starting coordinates [latitude, longitude]
- end_latlng: Ending coordinates [latitude, longitude]
- map: Polyline map data for the route

MOST RELEVANT ACTIVITY DETAILS:
- name: Current activity name
- description: Current activity description
- distance: Distance in meters
- moving_time: Time spent moving in seconds
- elapsed_time: Total elapsed time in seconds
- total_elevation_gain: Elevation gained in meters
- average_speed: Average speed in meters per second
- max_speed: Maximum speed in meters per second

Use this data to create engaging, dog-like posts that reference relevant details like distance, time, location, or interesting metrics.
`

const exampleResponse = `
Example response:
{"name": "Morning Walk", "description": "Went for a morning walk with dad. Saw many squirrels and an armadillo!"}
`

// Builder renders the system instruction and per-activity user content.
type Builder struct {
	minChars int
	maxChars int
}

// NewBuilder returns a Builder asking for descriptions of minChars to
// maxChars characters.
func NewBuilder(minChars, maxChars int) *Builder {
	return &Builder{minChars: minChars, maxChars: maxChars}
}

// SystemInstruction is the fixed persona: who Klaus is and what to answer
// with, a guide to the activity fields, and one example response.
func (b *Builder) SystemInstruction() *genai.Content {
	return &genai.Content{
		Parts: []genai.Part{
			genai.Text(fmt.Sprintf(personaTemplate, b.minChars, b.maxChars)),
			genai.Text(fieldGuide),
			genai.Text(exampleResponse),
		},
	}
}

// Request is the user turn sent for one activity.
type Request struct {
	Content *genai.Content
}

// Parts returns the parts to pass to GenerateContent.
func (r Request) Parts() []genai.Part {
	if r.Content == nil {
		return nil
	}
	return r.Content.Parts
}

// Build serializes the complete record, every field included, into a single
// text part.
func (b *Builder) Build(record *model.ActivityRecord) (Request, error) {
	if record == nil {
		return Request{}, fmt.Errorf("build prompt: nil activity")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return Request{}, fmt.Errorf("build prompt: %w", err)
	}
	return Request{Content: genai.NewUserContent(genai.Text(data))}, nil
}
