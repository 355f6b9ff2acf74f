package api

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/unity"
)

func TestUnities_JSON(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "editor", auth.RoleEditor)

	rr := ts.do(t, "GET", "/unities", token, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	lat := -23.55
	rr = ts.doJSON(t, "POST", "/unities", token, unity.Input{
		Name:     "Downtown",
		Address:  "Main St 100",
		Latitude: &lat,
		Phones:   []string{"555-0100"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody(t, rr)
	id := strconv.Itoa(int(created["id"].(float64)))
	assert.Equal(t, "Downtown", created["name"])
	assert.Equal(t, []interface{}{}, created["emails"])

	rr = ts.doJSON(t, "PUT", "/unities/"+id, token, unity.Input{Name: "Uptown"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Uptown", decodeBody(t, rr)["name"])

	rr = ts.do(t, "GET", "/unities/"+id, token, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Uptown", decodeBody(t, rr)["name"])

	rr = ts.do(t, "DELETE", "/unities/"+id, token, nil, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, "GET", "/unities/"+id, token, nil, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, unity.MsgNotFound, decodeBody(t, rr)["error"])
}

func TestUnities_Validation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "editor", auth.RoleEditor)

	rr := ts.doJSON(t, "POST", "/unities", token, unity.Input{Address: "nowhere"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Name is required.", decodeBody(t, rr)["error"])

	body, contentType := multipartBody(t, map[string][]string{"name": {"X"}, "latitude": {"north"}}, nil)
	rr = ts.do(t, "POST", "/unities", token, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Latitude must be a number.", decodeBody(t, rr)["error"])

	rr = ts.doJSON(t, "PUT", "/unities/42", token, unity.Input{Name: "Ghost"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUnities_MultipartBanner(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "editor", auth.RoleEditor)

	body, contentType := multipartBody(t,
		map[string][]string{
			"name":      {"Harbor"},
			"longitude": {"-46.63"},
			"phones":    {"555-0101", "555-0102"},
			"emails[]":  {"harbor@example.com"},
		},
		map[string]namedFile{"banner": {name: "banner.png", data: pngBytes(t, 40, 20)}},
	)
	rr := ts.do(t, "POST", "/unities", token, body, contentType)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decodeBody(t, rr)
	id := strconv.Itoa(int(created["id"].(float64)))
	banner := created["banner"].(string)
	assert.True(t, strings.HasPrefix(banner, "/uploads/unities/"), banner)
	assert.True(t, strings.HasSuffix(banner, ".jpg"), banner)
	assert.Equal(t, []interface{}{"555-0101", "555-0102"}, created["phones"])
	assert.Equal(t, []interface{}{"harbor@example.com"}, created["emails"])
	assert.Equal(t, -46.63, created["longitude"])

	rr = ts.do(t, "GET", banner, "", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))

	// replacing the banner removes the previous file
	body, contentType = multipartBody(t,
		map[string][]string{"name": {"Harbor"}},
		map[string]namedFile{"banner": {name: "new.png", data: pngBytes(t, 20, 40)}},
	)
	rr = ts.do(t, "PUT", "/unities/"+id, token, body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEqual(t, banner, decodeBody(t, rr)["banner"])
	assert.Equal(t, 1, countFiles(t, ts.uploadRoot))
	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", banner, "", nil, "").Code)

	rr = ts.do(t, "DELETE", "/unities/"+id, token, nil, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, countFiles(t, ts.uploadRoot))
}

func TestUnities_RejectedBannerLeavesNoRow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "editor", auth.RoleEditor)

	body, contentType := multipartBody(t,
		map[string][]string{"name": {"Broken"}},
		map[string]namedFile{"banner": {name: "banner.pdf", data: []byte("%PDF-1.4")}},
	)
	rr := ts.do(t, "POST", "/unities", token, body, contentType)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, "GET", "/unities", token, nil, "")
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.Equal(t, 0, countFiles(t, ts.uploadRoot))
}
