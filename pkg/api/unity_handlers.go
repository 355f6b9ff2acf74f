package api

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/unity"
	"github.com/platinummonkey/pressroom/pkg/upload"
)

// listUnities handles GET /unities
func (s *Server) listUnities(w http.ResponseWriter, r *http.Request) {
	unities, err := s.unities.List(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if unities == nil {
		unities = []*unity.Unity{}
	}
	httputil.WriteJSON(w, http.StatusOK, unities)
}

// getUnity handles GET /unities/{id}
func (s *Server) getUnity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	u, err := s.unities.Get(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// createUnity handles POST /unities
func (s *Server) createUnity(w http.ResponseWriter, r *http.Request) {
	in, banner, err := parseUnityRequest(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	u, err := s.unities.Create(r.Context(), in, banner)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, u)
}

// updateUnity handles PUT /unities/{id}
func (s *Server) updateUnity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	in, banner, err := parseUnityRequest(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	u, err := s.unities.Update(r.Context(), id, in, banner)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// deleteUnity handles DELETE /unities/{id}
func (s *Server) deleteUnity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.unities.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// parseUnityRequest reads a unity from a JSON body or a multipart form
// carrying the fields plus an optional banner file
func parseUnityRequest(r *http.Request) (unity.Input, *upload.File, error) {
	const op = "api.parseUnityRequest"
	var in unity.Input

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := httputil.ParseJSON(r, &in); err != nil {
			return in, nil, apperr.Wrap(apperr.KindValidation, op, "Invalid request body.", err)
		}
		return in, nil, nil
	}

	if err := parseMultipart(r); err != nil {
		return in, nil, err
	}

	form := r.MultipartForm.Value
	first := func(key string) string {
		if v := form[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	in.Name = first("name")
	in.Address = first("address")
	in.CEP = first("cep")
	in.Phones = append(form["phones"], form["phones[]"]...)
	in.Emails = append(form["emails"], form["emails[]"]...)

	var err error
	if in.Latitude, err = parseCoordinate(first("latitude")); err != nil {
		return in, nil, apperr.Validation(op, "Latitude must be a number.")
	}
	if in.Longitude, err = parseCoordinate(first("longitude")); err != nil {
		return in, nil, apperr.Validation(op, "Longitude must be a number.")
	}

	return in, formFile(r, upload.UnityBanner.Field), nil
}

func parseCoordinate(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
