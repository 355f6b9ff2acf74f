package api

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/upload"
)

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestUpload_StoreAndServe(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "uploader", auth.RoleEditor)
	data := pngBytes(t, 16, 16)

	body, contentType := multipartBody(t, nil, map[string]namedFile{"file": {name: "photo.png", data: data}})
	rr := ts.do(t, "POST", "/upload", token, body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	url := decodeBody(t, rr)["url"].(string)
	assert.Equal(t, "/uploads/alertImages/1715331600000.png", url)

	rr = ts.do(t, "GET", url, "", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, data, rr.Body.Bytes())
}

func TestUpload_MarkupDisguisedAsImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "uploader", auth.RoleEditor)
	markup := []byte("<script>fetch('/login')</script>")

	for _, tc := range []struct {
		path, field, declared string
	}{
		{"/upload/cover", "cover_image", "image/png"},
		{"/upload/cover", "cover_image", ""},
		{"/upload", "file", "image/jpeg"},
	} {
		body, contentType := multipartBody(t, nil, map[string]namedFile{
			tc.field: {name: "x.html", contentType: tc.declared, data: markup},
		})
		rr := ts.do(t, "POST", tc.path, token, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%s declared %q", tc.path, tc.declared)
	}

	assert.Equal(t, 0, countFiles(t, ts.uploadRoot))
}

func TestUpload_StoredNameIgnoresClientExtension(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "uploader", auth.RoleEditor)

	body, contentType := multipartBody(t, nil, map[string]namedFile{
		"cover_image": {name: "x.html", contentType: "image/png", data: pngBytes(t, 8, 8)},
	})
	rr := ts.do(t, "POST", "/upload/cover", token, body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	url := decodeBody(t, rr)["url"].(string)
	assert.False(t, strings.HasSuffix(url, ".html"), url)

	rr = ts.do(t, "GET", url, "", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "image/"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestInlineSafe(t *testing.T) {
	assert.True(t, inlineSafe("image/png"))
	assert.True(t, inlineSafe("image/jpeg"))
	assert.True(t, inlineSafe("application/pdf"))
	assert.False(t, inlineSafe("image/svg+xml"))
	assert.False(t, inlineSafe("text/html; charset=utf-8"))
	assert.False(t, inlineSafe("application/octet-stream"))
	assert.False(t, inlineSafe(""))
}

func TestUpload_PDF(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "uploader", auth.RoleEditor)

	body, contentType := multipartBody(t, nil, map[string]namedFile{"pdf": {name: "issue.pdf", data: []byte("%PDF-1.4\n%%EOF\n")}})
	rr := ts.do(t, "POST", "/upload/pdf", token, body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, strings.HasPrefix(decodeBody(t, rr)["url"].(string), "/uploads/magazinesPdf/"))

	body, contentType = multipartBody(t, nil, map[string]namedFile{"pdf": {name: "photo.png", data: pngBytes(t, 4, 4)}})
	rr = ts.do(t, "POST", "/upload/pdf", token, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, countFiles(t, ts.uploadRoot))
}

func TestUpload_Rejections(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "uploader", auth.RoleEditor)

	t.Run("requires auth", func(t *testing.T) {
		body, contentType := multipartBody(t, nil, map[string]namedFile{"file": {name: "a.png", data: pngBytes(t, 2, 2)}})
		rr := ts.do(t, "POST", "/upload", "", body, contentType)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]string{"note": {"x"}}, nil)
		rr := ts.do(t, "POST", "/upload", token, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "No file uploaded.", decodeBody(t, rr)["error"])
	})

	t.Run("not multipart", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/upload", token, map[string]string{"file": "x"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("wrong type", func(t *testing.T) {
		body, contentType := multipartBody(t, nil, map[string]namedFile{"file": {name: "notes.txt", data: []byte("hello")}})
		rr := ts.do(t, "POST", "/upload", token, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("generic image over 5MB", func(t *testing.T) {
		big := append(pngBytes(t, 2, 2), bytes.Repeat([]byte{0}, int(6*upload.MB))...)
		body, contentType := multipartBody(t, nil, map[string]namedFile{"file": {name: "big.png", data: big}})
		rr := ts.do(t, "POST", "/upload", token, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "File too large. Maximum size is 5MB.", decodeBody(t, rr)["error"])
	})

	t.Run("25MB cover is rejected before the handler", func(t *testing.T) {
		big := append(pngBytes(t, 2, 2), bytes.Repeat([]byte{0}, int(25*upload.MB))...)
		body, contentType := multipartBody(t, nil, map[string]namedFile{"cover_image": {name: "cover.png", data: big}})
		rr := ts.do(t, "POST", "/upload/cover", token, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeBody(t, rr)["error"], "File too large")
	})

	assert.Equal(t, 0, countFiles(t, ts.uploadRoot))
	records, err := ts.sink.List(context.Background(), errorFilterAll)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestServeUpload_NotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/uploads/posts/missing.png", "/uploads/posts/..hidden"} {
		rr := ts.do(t, "GET", path, "", nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Equal(t, "File not found.", decodeBody(t, rr)["error"])
	}
}
