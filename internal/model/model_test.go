package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityUpdateFromPost_SetsExactlyNameAndDescription(t *testing.T) {
	update := ActivityUpdateFromPost(GeneratedPost{Name: "Epic Zoomies", Description: "I ran so fast."})

	assert.Equal(t, []UpdateField{FieldDescription, FieldName}, update.Fields())

	data, err := json.Marshal(update)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Epic Zoomies","description":"I ran so fast."}`, string(data))
}

func TestActivityUpdate_ZeroValuesAreTransmitted(t *testing.T) {
	var update ActivityUpdate
	update.SetCommute(false).SetDescription("")

	data, err := json.Marshal(update)
	require.NoError(t, err)
	assert.JSONEq(t, `{"commute":false,"description":""}`, string(data))

	v, ok := update.Get(FieldCommute)
	assert.True(t, ok)
	assert.Equal(t, false, v)

	_, ok = update.Get(FieldTrainer)
	assert.False(t, ok)
}

func TestHideUpdate(t *testing.T) {
	data, err := json.Marshal(HideUpdate())
	require.NoError(t, err)
	assert.JSONEq(t, `{"hide_from_home":true}`, string(data))
}

func TestActivityUpdate_EmptyMarshalsToEmptyObject(t *testing.T) {
	var update ActivityUpdate
	assert.True(t, update.IsEmpty())

	data, err := json.Marshal(update)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestActivityUpdate_Unmarshal(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedError string
		expected      []UpdateField
	}{
		{name: "known fields", input: `{"name":"Walk","trainer":true}`, expected: []UpdateField{FieldName, FieldTrainer}},
		{name: "empty object", input: `{}`, expected: []UpdateField{}},
		{name: "unknown field", input: `{"distance":10}`, expectedError: `unknown update field "distance"`},
		{name: "null value", input: `{"description":null}`, expectedError: `update field "description" cannot be null`},
		{name: "wrong type", input: `{"commute":"yes"}`, expectedError: `update field "commute"`},
		{name: "not an object", input: `[]`, expectedError: "cannot unmarshal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var update ActivityUpdate
			err := json.Unmarshal([]byte(tc.input), &update)
			if tc.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, update.Fields())
		})
	}
}

func TestEventTime_Unmarshal(t *testing.T) {
	want := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "unix seconds", input: `1792152000`},
		{name: "numeric string", input: `"1792152000"`},
		{name: "rfc3339", input: `"2026-10-16T12:00:00Z"`},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
		{name: "float", input: `1.5`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var et EventTime
			err := json.Unmarshal([]byte(tc.input), &et)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, want.Equal(et.Time), "got %s", et.Time)
		})
	}
}

func TestWebhookEvent_Validation(t *testing.T) {
	validate := NewValidator()

	var event WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(`{
		"object_type": "activity",
		"object_id": 42,
		"aspect_type": "create",
		"owner_id": 7,
		"subscription_id": 1,
		"event_time": 1792152000
	}`), &event))
	assert.NoError(t, validate.Struct(event))
	assert.True(t, event.IsActivityCreate())

	event.AspectType = AspectTypeUpdate
	assert.NoError(t, validate.Struct(event))
	assert.False(t, event.IsActivityCreate())

	event.EventTime = EventTime{}
	assert.Error(t, validate.Struct(event))
}

func TestActivityRecord_RoundTripKeepsExplicitNulls(t *testing.T) {
	var record ActivityRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"name":"Walk","distance":5000,"description":null}`), &record))
	assert.Nil(t, record.Description)
	assert.NoError(t, NewValidator().Struct(record))

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	v, present := generic["description"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Equal(t, 5000.0, generic["distance"])
}

func TestActivityRecord_RejectsNegativeDistance(t *testing.T) {
	record := ActivityRecord{ID: 1, Distance: -1}
	assert.Error(t, NewValidator().Struct(record))
}
