package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"churn-calculator/service"
)

type ProjectionHandler struct {
	service *service.ProjectionService
	logger  *zap.Logger
}

func NewProjectionHandler(service *service.ProjectionService, logger *zap.Logger) *ProjectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectionHandler{service: service, logger: logger}
}

// Calculate handles POST /churn/calculate. The router enforces the method.
func (h *ProjectionHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req service.CalculatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	inputs, err := req.ToInputs()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.service.Calculate(r.Context(), inputs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}
