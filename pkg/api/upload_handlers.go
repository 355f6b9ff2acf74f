package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/errorlog"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/middleware"
	"github.com/platinummonkey/pressroom/pkg/observability"
	"github.com/platinummonkey/pressroom/pkg/upload"
)

const uploadController = "UploadController"

type uploadResponse struct {
	URL string `json:"url"`
}

// parseMultipart parses the form of r, mapping size and format failures to 400
func parseMultipart(r *http.Request) error {
	const op = "api.parseMultipart"

	err := r.ParseMultipartForm(middleware.DefaultMultipartMemory)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooLarge):
		return apperr.Validation(op, "File too large.")
	case errors.Is(err, http.ErrNotMultipart):
		return apperr.Validation(op, "Request must be multipart/form-data.")
	default:
		return apperr.Wrap(apperr.KindValidation, op, "Invalid multipart body.", err)
	}
}

// formFile returns the first file posted under field, or nil
func formFile(r *http.Request, field string) *upload.File {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return upload.FromMultipart(files[0])
}

// uploadHandler stores the file posted under spec.Field and returns its URL
func (s *Server) uploadHandler(spec upload.Spec) http.HandlerFunc {
	function := "upload"
	if spec.Field != upload.GenericImage.Field {
		function = "upload" + spec.Collection
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseMultipart(r); err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file := formFile(r, spec.Field)
		if file == nil {
			httputil.WriteBadRequest(w, "No file uploaded.")
			return
		}

		stored, err := s.pipeline.Store(r.Context(), file, spec)
		if err != nil {
			s.recordInternal(r, uploadController, function, err)
			httputil.WriteAppError(w, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, uploadResponse{URL: stored.URL})
	}
}

// serveUpload handles GET /uploads/{folder}/{file}
func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	loc := upload.Location{Collection: vars["folder"], Name: vars["file"]}
	if err := loc.Validate(); err != nil {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "File not found.")
		return
	}

	rc, info, err := s.pipeline.Open(r.Context(), loc)
	if err != nil {
		s.recordInternal(r, uploadController, "show", err)
		httputil.WriteAppError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if !inlineSafe(info.ContentType) {
		w.Header().Set("Content-Disposition", "attachment")
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if !info.ModTime.IsZero() {
		w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("key", loc.Key()).Warn("upload stream interrupted")
	}
}

// inlineSafe reports whether a browser may render contentType in place.
// Everything else is served as a download.
func inlineSafe(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf"
}

// recordInternal reports unexpected handler failures to the error log
func (s *Server) recordInternal(r *http.Request, controller, function string, err error) {
	if !apperr.Is(err, apperr.KindInternal) {
		return
	}
	errorlog.Report(r.Context(), s.sink, s.logger, errorlog.Entry{
		Controller: controller,
		Function:   function,
		Message:    "Error on " + function,
		Err:        err,
	})
}
