package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	ObjectTypeActivity = "activity"
	ObjectTypeAthlete  = "athlete"

	AspectTypeCreate = "create"
	AspectTypeUpdate = "update"
	AspectTypeDelete = "delete"
)

// WebhookEvent is a push notification from the Strava subscription.
type WebhookEvent struct {
	ObjectType     string         `json:"object_type" validate:"required"`
	ObjectID       int64          `json:"object_id" validate:"required,gt=0"`
	AspectType     string         `json:"aspect_type" validate:"required"`
	OwnerID        int64          `json:"owner_id" validate:"required,gt=0"`
	SubscriptionID int64          `json:"subscription_id" validate:"required,gt=0"`
	EventTime      EventTime      `json:"event_time" validate:"required"`
	Updates        map[string]any `json:"updates,omitempty"`
}

// IsActivityCreate reports whether the event announces a new activity.
func (e WebhookEvent) IsActivityCreate() bool {
	return e.ObjectType == ObjectTypeActivity && e.AspectType == AspectTypeCreate
}

// EventTime accepts unix seconds (what Strava sends) or an RFC 3339 string.
type EventTime struct {
	time.Time
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.Unix(secs, 0).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("event_time: %w", err)
		}
		t.Time = parsed
		return nil
	}
	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("event_time: %w", err)
	}
	t.Time = time.Unix(secs, 0).UTC()
	return nil
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(t.Unix(), 10)), nil
}
