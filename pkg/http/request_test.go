package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "slotify/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Date     string `json:"date"`
	Interval any    `json:"intervalMinutes"`
}

func TestDecodeJSON_IgnoresUndeclaredFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2030-01-01","intervalMinutes":"abc","room":"A"}`))

	var dst decodeTarget
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "2030-01-01", dst.Date)
	assert.Equal(t, "abc", dst.Interval)
}

func TestDecodeJSON_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty", "", "Request body is required"},
		{"malformed", `{"date":`, "Invalid request body"},
		{"wrong type", `{"date":30}`, "Invalid request body"},
		{"trailing data", `{"date":"2030-01-01"} {}`, "Request body must contain a single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst decodeTarget
			appErr := apperrors.AsAppError(DecodeJSON(req, &dst))
			require.NotNil(t, appErr)
			assert.Equal(t, apperrors.CodeInvalidInput, appErr.Code)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Equal(t, http.StatusBadRequest, appErr.StatusCode())
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"`+strings.Repeat("x", 64)+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var dst decodeTarget
	appErr := apperrors.AsAppError(DecodeJSON(req, &dst))
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErr.StatusCode())
}
