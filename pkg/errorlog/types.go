package errorlog

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/platinummonkey/pressroom/pkg/apperr"
)

// ErrEntryNotFound is returned when no log_errors row matches
var ErrEntryNotFound = errors.New("log error not found")

// Entry describes one handled failure
type Entry struct {
	Controller string
	Function   string
	Message    string
	Err        error
	RequestID  string
	OccurredAt time.Time
}

// Record is a persisted Entry
type Record struct {
	ID           int64           `json:"id"`
	Controller   string          `json:"controller"`
	Function     string          `json:"function"`
	Message      string          `json:"message"`
	JSONError    json.RawMessage `json:"json_error,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	SolutionedAt *time.Time      `json:"solutioned_at,omitempty"`
}

// Filter narrows List results
type Filter struct {
	OnlyOpen bool
	Limit    int
	Offset   int
}

type serializedError struct {
	Error string                 `json:"error"`
	Kind  string                 `json:"kind,omitempty"`
	Op    string                 `json:"op,omitempty"`
	Cause string                 `json:"cause,omitempty"`
	Data  map[string]interface{} `json:"details,omitempty"`
}

// SerializeError renders err as the JSON stored in json_error
func SerializeError(err error) []byte {
	if err == nil {
		return nil
	}

	out := serializedError{Error: err.Error()}
	if appErr, ok := apperr.As(err); ok {
		out.Kind = appErr.Kind.String()
		out.Op = appErr.Op
		out.Data = appErr.Details
		if appErr.Err != nil {
			out.Cause = appErr.Err.Error()
		}
	}

	data, marshalErr := json.Marshal(out)
	if marshalErr != nil {
		data, _ = json.Marshal(serializedError{Error: err.Error()})
	}
	return data
}
