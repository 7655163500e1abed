package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "idhub/pkg/domain-errors"
)

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error as a JSON envelope. Non-domain errors
// become opaque 500s so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var de *dErrors.Error
	if errors.As(err, &de) {
		w.WriteHeader(statusFor(de.Code))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             string(de.Code),
			"error_description": de.Message,
		})
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             string(dErrors.CodeInternal),
		"error_description": "internal error",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
