package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"churn-calculator/domain"
)

// writeJSON encodes into a buffer first so that a failed encode can still
// produce a 500.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}

// writeError renders err as {"error", "message", "status"}, using 400 for
// invalid arguments and 500 otherwise.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal server error"

	var derr *domain.Error
	if errors.As(err, &derr) && derr.Kind == domain.KindInvalidArgument {
		status = http.StatusBadRequest
		code = derr.Kind.String()
		message = derr.Error()
	} else {
		logger.Error("request failed", zap.Error(err))
	}

	payload := map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	}
	if derr != nil && derr.Code != "" && status == http.StatusBadRequest {
		payload["field"] = derr.Code
	}
	writeJSON(w, logger, status, payload)
}
