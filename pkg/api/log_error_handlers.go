package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/errorlog"
	"github.com/platinummonkey/pressroom/pkg/httputil"
)

const logErrorController = "LogErrorController"

type updateLogErrorRequest struct {
	SolutionedAt *time.Time `json:"solutioned_at"`
}

// listLogErrors handles GET /log-errors
func (s *Server) listLogErrors(w http.ResponseWriter, r *http.Request) {
	onlyOpen, err := httputil.ParseQueryBool(r, "open", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil || limit < 0 {
		httputil.WriteBadRequest(w, "limit must be a non-negative integer")
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteBadRequest(w, "offset must be a non-negative integer")
		return
	}

	records, err := s.errorLog.List(r.Context(), errorlog.Filter{OnlyOpen: onlyOpen, Limit: limit, Offset: offset})
	if err != nil {
		s.logErrorFailure(w, r, "index", err)
		return
	}
	if records == nil {
		records = []*errorlog.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// updateLogError handles PUT /log-errors/{id}; a null solutioned_at reopens the entry
func (s *Server) updateLogError(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updateLogErrorRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body.")
		return
	}

	err := s.errorLog.MarkSolutioned(r.Context(), id, req.SolutionedAt)
	if errors.Is(err, errorlog.ErrEntryNotFound) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "Error log not found.")
		return
	}
	if err != nil {
		s.logErrorFailure(w, r, "update", err)
		return
	}

	record, err := s.errorLog.Get(r.Context(), id)
	if err != nil {
		s.logErrorFailure(w, r, "update", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (s *Server) logErrorFailure(w http.ResponseWriter, r *http.Request, function string, err error) {
	appErr := apperr.Internal("api.logErrors."+function, err)
	s.logger.WithError(err).WithField("function", function).Error("error log operation failed")
	s.recordInternal(r, logErrorController, function, appErr)
	httputil.WriteAppError(w, appErr)
}
