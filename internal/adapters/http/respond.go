package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// errorBody is the uniform error envelope. validation_errors is present
// only for ValidationError so authors get the full list.
type errorBody struct {
	Error            string   `json:"error"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses:
// validation 422, conflicts and illegal transitions 409, not-found 404,
// everything else 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:            "validation failed",
			ValidationErrors: ve.Errors,
		})
		return
	}

	switch {
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case domain.IsConflict(err), domain.IsInvalidState(err):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
