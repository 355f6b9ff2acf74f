package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/middleware"
)

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", auth.RoleEditor)

	t.Run("success", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/login", "", map[string]string{"username": "alice", "password": testPassword})

		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Login successfully", body["message"])
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "2024-05-10T10:00:00Z", body["expires_at"])

		user := body["user"].(map[string]interface{})
		assert.Equal(t, "alice", user["username"])
		assert.NotContains(t, user, "password_hash")
	})

	t.Run("identifier field is accepted", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/login", "", map[string]string{"identifier": "alice", "password": testPassword})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("wrong password reports tries", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/login", "", map[string]string{"username": "alice", "password": "nope"})

		require.Equal(t, http.StatusUnauthorized, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, auth.MsgInvalidCredentials, body["error"])
		assert.Equal(t, float64(1), body["tries"])
		assert.Equal(t, false, body["blocked"])
	})

	t.Run("unknown user", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/login", "", map[string]string{"username": "mallory", "password": "whatever"})

		require.Equal(t, http.StatusUnauthorized, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, auth.MsgInvalidCredentials, body["error"])
		assert.NotContains(t, body, "tries")
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/login", "", map[string]string{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := ts.do(t, "POST", "/login", "", stringsReader("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid request body.", decodeBody(t, rr)["error"])
	})
}

func TestLogin_Lockout(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "bob", auth.RoleEditor)

	wrong := map[string]string{"username": "bob", "password": "wrong-password"}
	for i := 1; i <= 4; i++ {
		rr := ts.doJSON(t, "POST", "/login", "", wrong)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, false, decodeBody(t, rr)["blocked"])
	}

	rr := ts.doJSON(t, "POST", "/login", "", wrong)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, float64(5), body["tries"])
	assert.Equal(t, true, body["blocked"])

	// the right password no longer helps
	rr = ts.doJSON(t, "POST", "/login", "", map[string]string{"username": "bob", "password": testPassword})
	require.Equal(t, http.StatusForbidden, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, auth.MsgAccountBlocked, body["error"])
	assert.Equal(t, "2024-05-10T09:00:00Z", body["blocked_at"])
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	ts := newTestServer(t, WithLoginLimiter(limiter))
	ts.createUser(t, "carol", auth.RoleEditor)

	creds := map[string]string{"username": "carol", "password": testPassword}
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, ts.doJSON(t, "POST", "/login", "", creds).Code)
	}

	rr := ts.doJSON(t, "POST", "/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

// postLogin sends credentials from remoteAddr with an X-Forwarded-For header
func postLogin(ts *testServer, username, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, testPassword)
	req := httptest.NewRequest("POST", "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rr := httptest.NewRecorder()
	ts.server.ServeHTTP(rr, req)
	return rr
}

func TestLogin_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	ts := newTestServer(t, WithLoginLimiter(limiter))
	erin := ts.createUser(t, "erin", auth.RoleEditor)

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		rr := postLogin(ts, "erin", "198.51.100.20:5555", fmt.Sprintf("203.0.113.%d", i+1))
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{200, 200, 429, 429, 429, 429}, codes)

	tokens := ts.store.TokensForUser(erin.ID)
	require.Len(t, tokens, 2)
	for _, token := range tokens {
		assert.Equal(t, "198.51.100.20", token.IP)
	}
}

func TestLogin_TrustedProxyForwardsClientIP(t *testing.T) {
	proxies, err := httputil.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	limiter := middleware.NewMemoryLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	ts := newTestServer(t, WithLoginLimiter(limiter), WithTrustedProxies(proxies))
	frank := ts.createUser(t, "frank", auth.RoleEditor)

	for i := 0; i < 3; i++ {
		rr := postLogin(ts, "frank", "10.0.0.2:5555", fmt.Sprintf("203.0.113.%d", i+1))
		assert.Equal(t, http.StatusOK, rr.Code, "each forwarded client has its own budget")
	}

	assert.Equal(t, http.StatusOK, postLogin(ts, "frank", "10.0.0.2:5555", "203.0.113.9").Code)
	assert.Equal(t, http.StatusOK, postLogin(ts, "frank", "10.0.0.2:5555", "203.0.113.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, postLogin(ts, "frank", "10.0.0.2:5555", "203.0.113.9").Code)

	tokens := ts.store.TokensForUser(frank.ID)
	require.NotEmpty(t, tokens)
	assert.Equal(t, "203.0.113.1", tokens[0].IP)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "dana", auth.RoleEditor)

	rr := ts.doJSON(t, "POST", "/login", "", map[string]string{"username": "dana", "password": testPassword})
	require.Equal(t, http.StatusOK, rr.Code)
	token := decodeBody(t, rr)["token"].(string)

	rr = ts.do(t, "GET", "/auth/me", token, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "dana", decodeBody(t, rr)["username"])

	rr = ts.do(t, "POST", "/logout", token, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Logout successfully.", decodeBody(t, rr)["message"])

	rr = ts.do(t, "GET", "/auth/me", token, nil, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, auth.MsgTokenInvalid, decodeBody(t, rr)["error"])

	// revoking twice is not an error
	rr = ts.do(t, "POST", "/logout", token, nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSession_Expiry(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "erin", auth.RoleEditor)

	ts.clock.Advance(59 * time.Minute)
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/auth/me", token, nil, "").Code)

	ts.clock.Advance(time.Minute)
	rr := ts.do(t, "GET", "/auth/me", token, nil, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, auth.MsgTokenExpired, decodeBody(t, rr)["error"])

	// the expired token was revoked on first sight
	tokens := ts.store.TokensForUser(1)
	require.Len(t, tokens, 1)
	assert.True(t, tokens[0].IsRevoked)

	rr = ts.do(t, "GET", "/auth/me", token, nil, "")
	assert.Equal(t, auth.MsgTokenInvalid, decodeBody(t, rr)["error"])
}

func TestLogout_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusBadRequest, wantError: auth.MsgTokenNotInformed},
		{name: "wrong scheme", header: "Token abc", wantStatus: http.StatusBadRequest, wantError: auth.MsgTokenNotInformed},
		{name: "unknown token", header: "Bearer abc.def.ghi", wantStatus: http.StatusNotFound, wantError: auth.MsgTokenNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest("POST", "/logout")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := serve(ts, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, rr)["error"])
		})
	}
}

func TestMe_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, "GET", "/auth/me", "", nil, "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, auth.MsgTokenNotProvided, decodeBody(t, rr)["error"])
}
