package prompt

import (
	"encoding/json"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klaus-webhook/internal/model"
)

func TestSystemInstruction(t *testing.T) {
	content := NewBuilder(100, 200).SystemInstruction()

	require.Len(t, content.Parts, 3)
	persona, ok := content.Parts[0].(genai.Text)
	require.True(t, ok)
	assert.Contains(t, string(persona), "Labrador Retriever mix living in Austin, Texas")
	assert.Contains(t, string(persona), "Fi collars")
	assert.Contains(t, string(persona), "100-200 character")

	guide := content.Parts[1].(genai.Text)
	assert.Contains(t, string(guide), "distance: Distance in meters")

	example := content.Parts[2].(genai.Text)
	assert.Contains(t, string(example), `{"name": "Morning Walk", "description": "Went for a morning walk with dad. Saw many squirrels and an armadillo!"}`)
}

func TestSystemInstruction_UsesConfiguredLength(t *testing.T) {
	persona := NewBuilder(50, 80).SystemInstruction().Parts[0].(genai.Text)
	assert.Contains(t, string(persona), "50-80 character")
}

func TestBuild_SerializesCompleteRecord(t *testing.T) {
	desc := "Fi collar walk"
	record := &model.ActivityRecord{
		ID:          42,
		Name:        "Morning Walk",
		Distance:    5000,
		MovingTime:  3600,
		Description: &desc,
		StartLatLng: []float64{30.27, -97.74},
	}

	req, err := NewBuilder(100, 200).Build(record)
	require.NoError(t, err)

	assert.Equal(t, "user", req.Content.Role)
	parts := req.Parts()
	require.Len(t, parts, 1)
	text, ok := parts[0].(genai.Text)
	require.True(t, ok)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, 42.0, got["id"])
	assert.Equal(t, "Morning Walk", got["name"])
	assert.Equal(t, "Fi collar walk", got["description"])
	assert.Equal(t, []any{30.27, -97.74}, got["start_latlng"])

	// absent optionals are still present as null
	v, present := got["gear_id"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestBuild_NilRecord(t *testing.T) {
	_, err := NewBuilder(100, 200).Build(nil)
	assert.Error(t, err)
}
