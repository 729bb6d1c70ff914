package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"churn-calculator/domain"
	"churn-calculator/service"
)

type LeadHandler struct {
	projections *service.ProjectionService
	sync        *service.LeadSyncService
	logger      *zap.Logger
}

func NewLeadHandler(projections *service.ProjectionService, sync *service.LeadSyncService, logger *zap.Logger) *LeadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadHandler{projections: projections, sync: sync, logger: logger}
}

type LeadRequest struct {
	Lead   domain.LeadForm           `json:"lead"`
	Inputs service.CalculatorRequest `json:"inputs"`
}

type LeadResponse struct {
	Results domain.CalculatorResults `json:"results"`
	Sync    domain.SyncResult        `json:"sync"`
}

// Submit handles POST /leads: it recomputes the projection server-side and
// forwards the lead to the CRM. CRM failures are reported in the body with a
// 200 status, since the pipeline always produces a result. The router
// enforces the method.
func (h *LeadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var req LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Lead.Email) == "" {
		writeError(w, h.logger, domain.NewInvalidArgument("email", "email is required"))
		return
	}

	inputs, err := req.Inputs.ToInputs()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	results, err := h.projections.Calculate(r.Context(), inputs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	lead := req.Lead
	if lead.TotalCustomers == nil {
		lead.TotalCustomers = &inputs.NumberOfCustomers
	}
	if lead.AverageOrderValue == nil {
		lead.AverageOrderValue = &inputs.AverageOrderValue
	}
	if lead.ChurnRate == nil {
		lead.ChurnRate = &inputs.ChurnRate
	}

	outcome := h.sync.SubmitToHubSpot(r.Context(), lead, &results)
	writeJSON(w, h.logger, http.StatusOK, LeadResponse{Results: results, Sync: outcome})
}
