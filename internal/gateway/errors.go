package gateway

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/core/filter"
)

// DefaultErrorMessage is returned when an error carries no usable message.
const DefaultErrorMessage = "An unexpected error occurred, please contact the system administrator."

// errorBody is the JSON shape of every gateway error. Message is a list of
// violations for validation errors and a string otherwise.
type errorBody struct {
	StatusCode int `json:"statusCode"`
	Message    any `json:"message"`
}

// errorResponse maps err to a status and body. Errors without a status are
// internal and their text is not exposed.
func errorResponse(err error) errorBody {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return errorBody{StatusCode: http.StatusBadRequest, Message: verr.Violations}
	}

	status, message := 0, ""
	if httpErr, ok := apperr.AsHTTP(err); ok {
		status, message = httpErr.Status, httpErr.Message
	} else if rpcErr, ok := apperr.AsRPC(err); ok {
		status, message = rpcErr.Payload.StatusCode, rpcErr.Payload.Message
	} else {
		var failure *filter.Failure
		if errors.As(err, &failure) {
			status, message = failure.StatusCode, failure.Message
		}
	}

	if status == 0 {
		status = http.StatusInternalServerError
	}
	if message == "" {
		message = DefaultErrorMessage
	}
	return errorBody{StatusCode: status, Message: message}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	body := errorResponse(err)
	if body.StatusCode >= http.StatusInternalServerError {
		log.Error("Request failed", "status_code", body.StatusCode, "error", err)
	}
	writeJSON(w, log, body.StatusCode, body)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeRaw(w, log, status, data)
}

func writeRaw(w http.ResponseWriter, log *slog.Logger, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Warn("Failed to write JSON response", "error", err)
	}
}
