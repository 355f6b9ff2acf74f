package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/apperr"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   map[string]interface{}
	}{
		{
			name:       "unauthorized with details",
			err:        apperr.Unauthorized("auth.Login", "User or password invalid.").WithDetail("tries", 2).WithDetail("blocked", false),
			wantStatus: http.StatusUnauthorized,
			wantBody:   map[string]interface{}{"error": "User or password invalid.", "tries": float64(2), "blocked": false},
		},
		{
			name:       "validation",
			err:        apperr.Validation("upload", "File too large"),
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"error": "File too large"},
		},
		{
			name:       "detail cannot override error",
			err:        apperr.NotFound("unity.Get", "Unity not found").WithDetail("error", "leak"),
			wantStatus: http.StatusNotFound,
			wantBody:   map[string]interface{}{"error": "Unity not found"},
		},
		{
			name:       "internal hides cause and details",
			err:        apperr.Internal("auth.Login", errors.New("pq: connection refused")).WithDetail("query", "SELECT"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"error": "internal server error"},
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"error": "internal server error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteAppError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, decodeBody(t, rr))
		})
	}
}

func TestWriteMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, WriteMessage(rr, http.StatusOK, "Logout successfully."))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]interface{}{"message": "Logout successfully."}, decodeBody(t, rr))
}

func TestWriteCreatedAndNoContent(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, WriteCreated(rr, map[string]int{"id": 4}))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, float64(4), decodeBody(t, rr)["id"])

	rr = httptest.NewRecorder()
	WriteNoContent(rr)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}
