package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/notifications"
	"github.com/cenety/saascore/pkg/webhook"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

// fail maps err to a status and error code. Unknown errors are logged and
// reported without their message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorToDetail(err)
	if status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, status, Response{Error: detail})
}

func errorToDetail(err error) (int, *ErrorDetail) {
	if d, ok := limits.AsLimitExceeded(err); ok {
		le := &limits.LimitExceededError{Decision: d}
		return http.StatusForbidden, &ErrorDetail{Code: "limit_exceeded", Message: le.Error()}
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, &ErrorDetail{Code: "unauthorized", Message: err.Error()}
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidTopic):
		return http.StatusForbidden, &ErrorDetail{Code: "forbidden", Message: err.Error()}
	case errors.Is(err, limits.ErrInvalidResourceType):
		return http.StatusBadRequest, &ErrorDetail{Code: "invalid_resource", Message: err.Error()}
	case errors.Is(err, ErrNoTenant),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, notifications.ErrInvalidNotification),
		errors.Is(err, notifications.ErrInvalidType),
		errors.Is(err, webhook.ErrInvalidEndpoint):
		return http.StatusBadRequest, &ErrorDetail{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, notifications.ErrNotificationNotFound),
		errors.Is(err, webhook.ErrEndpointNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: "not_found", Message: err.Error()}
	}
	return http.StatusInternalServerError, &ErrorDetail{
		Code:    "internal_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}
	return nil
}
