package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

type successBody struct {
	Success bool `json:"success"`
}

type idBody struct {
	ID uuid.UUID `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch e.Kind(err) {
	case "validation_error":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusUnauthorized
	case "not_found":
		return http.StatusNotFound
	case "invalid_state", "conflict":
		return http.StatusConflict
	case "expired":
		return http.StatusGone
	case "rate_limited":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorWriter returns a function rendering err as the JSON error body.
// Internal errors are logged and replaced by a generic message.
func ErrorWriter(logger *zap.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := statusFor(err)
		reqID := chimw.GetReqID(r.Context())
		msg := err.Error()
		if status == http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.Error(err),
				zap.String("request_id", reqID),
				zap.String("path", r.URL.Path),
			)
			msg = "internal server error"
		}
		writeJSON(w, status, errorBody{Error: msg, Kind: e.Kind(err), RequestID: reqID})
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ErrorWriter(h.logger)(w, r, err)
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", e.ErrValidation)
		}
		return fmt.Errorf("%w: malformed request body: %v", e.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", e.ErrValidation)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", e.ErrValidation)
	}
	return id, nil
}
