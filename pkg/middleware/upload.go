package middleware

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/upload"
)

// DefaultMultipartMemory is the in-memory part of a parsed multipart form
const DefaultMultipartMemory = 32 << 20

// ValidateUpload checks the multipart file named field against c before the
// handler runs. Requests without that file pass through unchanged.
func ValidateUpload(field string, c upload.Constraints) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.ValidateUpload"

			if err := r.ParseMultipartForm(DefaultMultipartMemory); err != nil {
				var tooLarge *http.MaxBytesError
				switch {
				case errors.Is(err, http.ErrNotMultipart):
					next.ServeHTTP(w, r)
				case errors.As(err, &tooLarge):
					httputil.WriteAppError(w, apperr.Validation(op, "File too large."))
				default:
					httputil.WriteAppError(w, apperr.Wrap(apperr.KindValidation, op, "Invalid multipart body.", err))
				}
				return
			}

			if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			file := upload.FromMultipart(r.MultipartForm.File[field][0])
			if err := upload.Validate(file, c); err != nil {
				httputil.WriteAppError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
