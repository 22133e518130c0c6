package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/vitalplan/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// generationErrResponse carries the diagnostic detail of a rejected
// generation attempt.
type generationErrResponse struct {
	Error     string `json:"error" validate:"required"`
	Kind      string `json:"kind" example:"shape_invalid" validate:"required"`
	Location  string `json:"location,omitempty" example:"Tuesday.lunch[1].calories"`
	Excerpt   string `json:"excerpt,omitempty"`
	Retryable bool   `json:"retryable"`
}

// retryAfterSeconds is advertised on 503 responses.
const retryAfterSeconds = "30"

// writeError maps a service error to its HTTP status.
func writeError(w http.ResponseWriter, op string, err error) {
	var ge *apperr.GenerationError
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.As(err, &ge):
		body := generationErrResponse{
			Error:     err.Error(),
			Kind:      string(ge.Kind),
			Location:  ge.Location(),
			Excerpt:   ge.Excerpt,
			Retryable: ge.Retryable(),
		}
		switch ge.Kind {
		case apperr.KindServiceUnavailable:
			w.Header().Set("Retry-After", retryAfterSeconds)
			writeJSON(w, http.StatusServiceUnavailable, body)
		case apperr.KindStorageFailure:
			slog.Error(op+" failed", slog.String("kind", string(ge.Kind)), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		default:
			writeJSON(w, http.StatusBadGateway, body)
		}
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
