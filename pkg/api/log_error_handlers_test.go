package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/errorlog"
)

var errorFilterAll = errorlog.Filter{Limit: 100}

func TestLogErrors(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "root", auth.RoleAdmin)

	ctx := context.Background()
	require.NoError(t, ts.sink.Record(ctx, errorlog.Entry{
		Controller: "UnityController",
		Function:   "store",
		Message:    "Error on store",
		Err:        errors.New("disk full"),
		OccurredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, ts.sink.Record(ctx, errorlog.Entry{
		Controller: "AuthController",
		Function:   "login",
		Message:    "Error on login",
		Err:        errors.New("db down"),
		OccurredAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}))

	rr := ts.do(t, "GET", "/log-errors", admin, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"controller":"UnityController"`)
	assert.Contains(t, rr.Body.String(), `"controller":"AuthController"`)

	rr = ts.doJSON(t, "PUT", "/log-errors/1", admin, map[string]string{"solutioned_at": "2024-05-03T12:00:00Z"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2024-05-03T12:00:00Z", decodeBody(t, rr)["solutioned_at"])

	rr = ts.do(t, "GET", "/log-errors?open=true", admin, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "UnityController")
	assert.Contains(t, rr.Body.String(), "AuthController")

	// null reopens
	rr = ts.doJSON(t, "PUT", "/log-errors/1", admin, map[string]interface{}{"solutioned_at": nil})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, decodeBody(t, rr), "solutioned_at")
}

func TestLogErrors_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "root", auth.RoleAdmin)

	rr := ts.doJSON(t, "PUT", "/log-errors/77", admin, map[string]interface{}{"solutioned_at": nil})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Error log not found.", decodeBody(t, rr)["error"])

	rr = ts.do(t, "GET", "/log-errors?limit=-1", admin, nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, "GET", "/log-errors?open=maybe", admin, nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogErrors_NotMountedWithoutRepository(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "root", auth.RoleAdmin)

	server := NewServer(ts.auth, nil, nil, WithErrorSink(errorlog.NopSink{}))
	req := newRequest("GET", "/log-errors")
	req.Header.Set("Authorization", "Bearer "+admin)
	rr := serve(&testServer{server: server}, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
