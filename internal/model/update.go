package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// UpdateField names a field of Strava's UpdatableActivity.
type UpdateField string

const (
	FieldName         UpdateField = "name"
	FieldDescription  UpdateField = "description"
	FieldHideFromHome UpdateField = "hide_from_home"
	FieldCommute      UpdateField = "commute"
	FieldTrainer      UpdateField = "trainer"
	FieldGearID       UpdateField = "gear_id"
)

// ErrEmptyUpdate is returned when a patch with no fields is about to be sent.
var ErrEmptyUpdate = errors.New("activity update sets no fields")

var updateFieldKinds = map[UpdateField]string{
	FieldName:         "string",
	FieldDescription:  "string",
	FieldHideFromHome: "bool",
	FieldCommute:      "bool",
	FieldTrainer:      "bool",
	FieldGearID:       "string",
}

// ActivityUpdate is a sparse patch: a set of fields, each with the value it
// should take. Fields that were never set are not transmitted, so a field's
// legitimate zero value is distinguishable from "leave unchanged".
type ActivityUpdate struct {
	fields map[UpdateField]any
}

func (u *ActivityUpdate) set(f UpdateField, v any) *ActivityUpdate {
	if u.fields == nil {
		u.fields = make(map[UpdateField]any)
	}
	u.fields[f] = v
	return u
}

func (u *ActivityUpdate) SetName(v string) *ActivityUpdate        { return u.set(FieldName, v) }
func (u *ActivityUpdate) SetDescription(v string) *ActivityUpdate { return u.set(FieldDescription, v) }
func (u *ActivityUpdate) SetHideFromHome(v bool) *ActivityUpdate  { return u.set(FieldHideFromHome, v) }
func (u *ActivityUpdate) SetCommute(v bool) *ActivityUpdate       { return u.set(FieldCommute, v) }
func (u *ActivityUpdate) SetTrainer(v bool) *ActivityUpdate       { return u.set(FieldTrainer, v) }
func (u *ActivityUpdate) SetGearID(v string) *ActivityUpdate      { return u.set(FieldGearID, v) }

// Get returns the value a field is set to and whether it is set at all.
func (u ActivityUpdate) Get(f UpdateField) (any, bool) {
	v, ok := u.fields[f]
	return v, ok
}

// Fields lists the set fields in lexical order.
func (u ActivityUpdate) Fields() []UpdateField {
	out := make([]UpdateField, 0, len(u.fields))
	for f := range u.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (u ActivityUpdate) IsEmpty() bool { return len(u.fields) == 0 }

// MarshalJSON emits exactly the set fields.
func (u ActivityUpdate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range u.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(string(f))
		val, err := json.Marshal(u.fields[f])
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", f, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts only known fields with non-null values of the right type.
func (u *ActivityUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.fields = nil
	for key, msg := range raw {
		f := UpdateField(key)
		kind, ok := updateFieldKinds[f]
		if !ok {
			return fmt.Errorf("unknown update field %q", key)
		}
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			return fmt.Errorf("update field %q cannot be null", key)
		}
		switch kind {
		case "string":
			var v string
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("update field %q: %w", key, err)
			}
			u.set(f, v)
		case "bool":
			var v bool
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("update field %q: %w", key, err)
			}
			u.set(f, v)
		}
	}
	return nil
}

// HideUpdate is the patch that removes an activity from the home feed.
func HideUpdate() ActivityUpdate {
	var u ActivityUpdate
	u.SetHideFromHome(true)
	return u
}
