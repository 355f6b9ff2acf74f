package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/pressroom/pkg/apperr"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteMessage writes {"message": message}
func WriteMessage(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, map[string]string{"message": message})
}

// WriteErrorMessage writes {"error": message}
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteAppError writes err as {"error": <public message>, <details>...} with
// the status of its kind. Details never override the error field.
func WriteAppError(w http.ResponseWriter, err error) {
	body := map[string]interface{}{}
	status := http.StatusInternalServerError

	if appErr, ok := apperr.As(err); ok {
		status = apperr.StatusCode(appErr.Kind)
		if appErr.Kind != apperr.KindInternal {
			for k, v := range appErr.Details {
				body[k] = v
			}
		}
	}
	body["error"] = apperr.PublicMessage(err)

	WriteJSON(w, status, body)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
