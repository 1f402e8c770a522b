package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/telemetrydev/datapoint/internal/definition"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// domainError maps service errors onto HTTP statuses. Anything outside the
// domain taxonomy is a 500 with the detail kept out of the response.
func domainError(logger *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, definition.ErrNotFound):
		return huma.Error404NotFound("data definition not found")
	case errors.Is(err, definition.ErrVersionConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, definition.ErrInvalidSchema):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, definition.ErrUnsupportedAction):
		return huma.Error400BadRequest(err.Error())
	}
	logger.Error(op+" failed", "error", err)
	return huma.Error500InternalServerError(op + " failed")
}
