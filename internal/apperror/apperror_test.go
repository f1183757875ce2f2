package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookEvent struct {
	ObjectID int64  `validate:"required,gt=0"`
	Title    string `validate:"required"`
}

func TestCustomValidationError(t *testing.T) {
	err := validator.New().Struct(webhookEvent{ObjectID: -1})
	require.Error(t, err)

	fields := CustomValidationError(err)
	assert.Equal(t, []map[string]string{
		{"ObjectID": "webhookEvent.ObjectID is invalid"},
		{"Title": "webhookEvent.Title is invalid"},
	}, fields)

	assert.Empty(t, CustomValidationError(errors.New("not a validation error")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))

	long := strings.Repeat("x", MaxBodySize+10)
	out := Truncate(long)
	assert.Len(t, out, MaxBodySize+3)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes and "🐕" four, so neither lines up with the limit.
	for _, r := range []string{"é", "🐕"} {
		long := "x" + strings.Repeat(r, MaxBodySize)
		out := Truncate(long)

		assert.True(t, utf8.ValidString(out), "truncated %q text is not valid UTF-8", r)
		assert.True(t, strings.HasSuffix(out, "..."))
		assert.LessOrEqual(t, len(out), MaxBodySize+3)
		assert.Equal(t, long[:len(out)-3], strings.TrimSuffix(out, "..."))
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectKind string
	}{
		{name: "validation", err: NewValidationError(errors.New("bad")), expectCode: http.StatusBadRequest, expectKind: "validation"},
		{name: "upstream not found", err: &UpstreamError{Op: "get_activity", StatusCode: 404}, expectCode: http.StatusNotFound, expectKind: "upstream"},
		{name: "upstream server error", err: &UpstreamError{Op: "get_activity", StatusCode: 500}, expectCode: http.StatusBadGateway, expectKind: "upstream"},
		{name: "upstream client error", err: &UpstreamError{Op: "update_activity", StatusCode: 422}, expectCode: http.StatusBadGateway, expectKind: "upstream"},
		{name: "auth", err: &AuthError{Reason: "missing refresh token"}, expectCode: http.StatusBadGateway, expectKind: "auth"},
		{name: "generation", err: &GenerationError{Reason: "malformed output"}, expectCode: http.StatusBadGateway, expectKind: "generation"},
		{name: "wrapped", err: fmt.Errorf("fetch activity 42: %w", &UpstreamError{Op: "get_activity", StatusCode: 404}), expectCode: http.StatusNotFound, expectKind: "upstream"},
		{name: "unknown", err: errors.New("boom"), expectCode: http.StatusInternalServerError, expectKind: "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := Describe(tc.err)
			assert.Equal(t, tc.expectCode, code)
			assert.Equal(t, tc.expectKind, body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDescribe_UpstreamDetail(t *testing.T) {
	_, body := Describe(&UpstreamError{Op: "get_activity", StatusCode: 502, Body: "<html>bad gateway</html>"})
	assert.Equal(t, 502, body["upstream_status"])
	assert.Equal(t, "<html>bad gateway</html>", body["detail"])

	_, body = Describe(&UpstreamError{Op: "get_activity", StatusCode: 404, Data: map[string]any{"message": "Record Not Found"}})
	assert.Equal(t, map[string]any{"message": "Record Not Found"}, body["detail"])
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "get_activity: upstream status 404: {}", (&UpstreamError{Op: "get_activity", StatusCode: 404, Body: "{}"}).Error())
	assert.Equal(t, "auth: token refresh rejected (status 401)", (&AuthError{Reason: "token refresh rejected", StatusCode: 401}).Error())

	inner := errors.New("dial tcp: refused")
	authErr := &AuthError{Reason: "token refresh failed", Err: inner}
	assert.ErrorIs(t, authErr, inner)
	assert.Equal(t, "auth: token refresh failed: dial tcp: refused", authErr.Error())

	genErr := &GenerationError{Reason: "model call failed", Err: inner}
	assert.ErrorIs(t, genErr, inner)
}
