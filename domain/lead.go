package domain

// LifecycleStage is a HubSpot contact lifecycle stage (internal value).
type LifecycleStage string

// Stages assigned from the lead score. The values are HubSpot's internal
// lifecycle stage names, not their display labels.
const (
	StageSubscriber         LifecycleStage = "subscriber"
	StageLead               LifecycleStage = "lead"
	StageMarketingQualified LifecycleStage = "marketingqualifiedlead"
	StageSalesQualified     LifecycleStage = "salesqualifiedlead"
)

// HubSpot's default lifecycle order, earliest first.
var lifecycleOrder = []LifecycleStage{
	StageSubscriber,
	StageLead,
	StageMarketingQualified,
	StageSalesQualified,
	"opportunity",
	"customer",
	"evangelist",
}

// Rank is the position of s in HubSpot's default lifecycle, or -1 for custom
// and unknown stages.
func (s LifecycleStage) Rank() int {
	for i, stage := range lifecycleOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Precedes reports whether s comes strictly before other. Unknown stages are
// never ordered.
func (s LifecycleStage) Precedes(other LifecycleStage) bool {
	a, b := s.Rank(), other.Rank()
	return a >= 0 && b >= 0 && a < b
}

// LeadForm is the lead captured alongside a projection.
type LeadForm struct {
	Email             string            `json:"email"`
	Company           string            `json:"company,omitempty"`
	FirstName         string            `json:"firstName,omitempty"`
	LastName          string            `json:"lastName,omitempty"`
	TotalCustomers    *int              `json:"totalCustomers,omitempty"`
	AverageOrderValue *float64          `json:"averageOrderValue,omitempty"`
	ChurnRate         *float64          `json:"churnRate,omitempty"`
	LifecycleStage    LifecycleStage    `json:"lifecycleStage,omitempty"`
	PageURI           string            `json:"pageUri,omitempty"`
	PageName          string            `json:"pageName,omitempty"`
	HubSpotUTK        string            `json:"hutk,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// ContactProperties are the string-valued contact fields sent to the CRM.
type ContactProperties map[string]string

// SyncState is a step of the lead sync pipeline.
type SyncState string

const (
	SyncPending         SyncState = "pending"
	SyncContactUpserted SyncState = "contact_upserted"
	SyncListUpdated     SyncState = "list_updated"
	SyncFormSubmitted   SyncState = "form_submitted"
	SyncSucceeded       SyncState = "succeeded"
	SyncDegraded        SyncState = "degraded"
	SyncFailed          SyncState = "failed"
)

// OperationOutcome reports a best-effort step. It never affects SyncResult.Success.
type OperationOutcome struct {
	Operation string `json:"operation"`
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type DealOutcome struct {
	Attempted bool    `json:"attempted"`
	Success   bool    `json:"success"`
	DealID    string  `json:"dealId,omitempty"`
	DealName  string  `json:"dealName,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// SyncResult is the outcome of one lead submission.
type SyncResult struct {
	Success      bool               `json:"success"`
	ContactID    string             `json:"contactId,omitempty"`
	FallbackUsed bool               `json:"fallbackUsed"`
	Message      string             `json:"message"`
	State        SyncState          `json:"state"`
	SubmissionID string             `json:"submissionId"`
	Deal         *DealOutcome       `json:"deal,omitempty"`
	Secondary    []OperationOutcome `json:"secondary,omitempty"`
}
