package service

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"churn-calculator/domain"
	"churn-calculator/hubspot"
)

const (
	MessageSubmitted     = "Thanks! Your results have been saved and a specialist will be in touch."
	MessageFallbackSaved = "We saved your email and are resolving a connection issue. Your full results will follow shortly."
	MessageSaveFailed    = "Sorry, your details could not be saved. Please try again in a few minutes."

	DefaultConsentText = "I agree to allow this company to store and process my personal data."
	defaultDealLabel   = "Prospect"

	operationListMembership     = "list_membership"
	operationWorkflowEnrollment = "workflow_enrollment"
)

// CRMClient is the subset of the HubSpot client the sync pipeline uses.
type CRMClient interface {
	GetContactByEmail(ctx context.Context, email string, properties ...string) (*hubspot.Contact, bool, error)
	CreateContact(ctx context.Context, props domain.ContactProperties) (*hubspot.Contact, error)
	UpdateContact(ctx context.Context, id string, props domain.ContactProperties) (*hubspot.Contact, error)
	AddToList(ctx context.Context, listID string, contactIDs ...string) error
	SubmitForm(ctx context.Context, portalID, formID string, submission hubspot.FormSubmission) error
	CreateDeal(ctx context.Context, props domain.ContactProperties, contactID string) (*hubspot.Deal, error)
	EnrollInWorkflow(ctx context.Context, workflowID, email string) error
}

// SyncConfig holds the static CRM identifiers and business constants. Empty
// identifiers disable the step they belong to.
type SyncConfig struct {
	PortalID   string
	FormID     string
	ListID     string
	WorkflowID string

	DealThreshold    float64
	DealCaptureRate  float64
	DealHorizonYears int

	ConsentText string
	Retry       hubspot.RetryPolicy

	// MetadataProperties are the contact properties LeadForm.Metadata may set.
	// HubSpot rejects undefined properties, so other keys are dropped.
	MetadataProperties []string
}

type LeadSyncService struct {
	crm    CRMClient
	cfg    SyncConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewLeadSyncService creates the pipeline. Zero-valued deal settings and
// retry policy fall back to the defaults.
func NewLeadSyncService(crm CRMClient, cfg SyncConfig, logger *zap.Logger) *LeadSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DealThreshold == 0 {
		cfg.DealThreshold = DefaultDealThreshold
	}
	if cfg.DealCaptureRate == 0 {
		cfg.DealCaptureRate = DefaultDealCaptureRate
	}
	if cfg.DealHorizonYears == 0 {
		cfg.DealHorizonYears = DefaultDealHorizonYears
	}
	if cfg.ConsentText == "" {
		cfg.ConsentText = DefaultConsentText
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = hubspot.DefaultRetryPolicy()
	}
	allowed := make([]string, 0, len(cfg.MetadataProperties))
	for _, name := range cfg.MetadataProperties {
		if name = strings.TrimSpace(name); name != "" {
			allowed = append(allowed, name)
		}
	}
	cfg.MetadataProperties = allowed
	return &LeadSyncService{crm: crm, cfg: cfg, logger: logger, now: time.Now}
}

// NormalizeEmail is the idempotency key of a contact.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.ContainsAny(email, " \t\r\n,;<>") {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}

func (s *LeadSyncService) formsConfigured() bool {
	return s.cfg.PortalID != "" && s.cfg.FormID != ""
}

// SubmitToHubSpot upserts the lead, adds it to the calculator list, submits
// the form and then runs the best-effort deal and workflow steps. It never
// fails: every error ends up in the returned result. Cancelling ctx after the
// call starts has no effect.
func (s *LeadSyncService) SubmitToHubSpot(
	ctx context.Context,
	form domain.LeadForm,
	results *domain.CalculatorResults,
) (result domain.SyncResult) {

	ctx = context.WithoutCancel(ctx)
	email := NormalizeEmail(form.Email)
	result = domain.SyncResult{State: domain.SyncPending, SubmissionID: uuid.NewString()}
	log := s.logger.With(zap.String("submission_id", result.SubmissionID), zap.String("email", email))

	defer func() {
		if r := recover(); r != nil {
			log.Error("lead sync panicked", zap.Any("panic", r))
			result.Success = false
			result.State = domain.SyncFailed
			result.Message = MessageSaveFailed
		}
	}()

	if !isValidEmail(email) {
		log.Warn("rejecting lead with invalid email")
		result.State = domain.SyncFailed
		result.Message = MessageSaveFailed
		return result
	}

	var projection domain.CalculatorResults
	if results != nil {
		projection = *results
	}
	score := LeadScore(projection.AnnualRevenueLost)
	stage := ClassifyLifecycleStage(score, form.LifecycleStage)
	props := s.contactProperties(email, form, projection, score, stage)

	transition := func(state domain.SyncState) {
		result.State = state
		log.Debug("lead sync state changed", zap.String("state", string(state)))
	}

	contactID, err := hubspot.Retry(ctx, s.retryPolicy(log, "upsert_contact"), func(ctx context.Context) (string, error) {
		return s.upsertContact(ctx, log, email, props)
	})
	if err == nil {
		result.ContactID = contactID
		transition(domain.SyncContactUpserted)

		if outcome, attempted := s.addToList(ctx, log, contactID); attempted {
			result.Secondary = append(result.Secondary, outcome)
		}
		transition(domain.SyncListUpdated)

		err = s.submitForm(ctx, log, email, form, projection, score, stage)
		if err == nil {
			transition(domain.SyncFormSubmitted)
		}
	}

	if err == nil {
		transition(domain.SyncSucceeded)
		result.Success = true
		result.Message = MessageSubmitted
		log.Info("lead synced", zap.String("contact_id", contactID), zap.Int("lead_score", score))
	} else {
		log.Error("lead sync failed, trying email-only fallback",
			zap.String("kind", domain.KindOf(err).String()),
			zap.Int("status", domain.StatusOf(err)),
			zap.Error(err),
		)
		result.FallbackUsed = s.submitFallback(ctx, log, email, form)
		if result.FallbackUsed {
			transition(domain.SyncDegraded)
			result.Message = MessageFallbackSaved
		} else {
			transition(domain.SyncFailed)
			result.Message = MessageSaveFailed
		}
	}

	if result.ContactID != "" {
		deal := s.createDeal(ctx, log, result.ContactID, form, projection)
		if deal.Attempted {
			result.Deal = &deal
		}
		if outcome := s.enrollInWorkflow(ctx, log, email); outcome.Attempted {
			result.Secondary = append(result.Secondary, outcome)
		}
	}

	return result
}

func (s *LeadSyncService) retryPolicy(log *zap.Logger, step string) hubspot.RetryPolicy {
	return s.cfg.Retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
		log.Warn("retrying hubspot call",
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
}

// upsertContact patches the contact registered under email, or creates it. An
// existing contact is never moved back to an earlier lifecycle stage.
func (s *LeadSyncService) upsertContact(ctx context.Context, log *zap.Logger, email string, props domain.ContactProperties) (string, error) {
	existing, found, err := s.crm.GetContactByEmail(ctx, email, "email", "lifecyclestage")
	if err != nil {
		return "", err
	}
	if found {
		current := domain.LifecycleStage(existing.Properties["lifecyclestage"])
		next := domain.LifecycleStage(props["lifecyclestage"])
		if current != "" && !current.Precedes(next) && current != next {
			log.Debug("keeping existing lifecycle stage",
				zap.String("current", string(current)), zap.String("computed", string(next)))
			props = maps.Clone(props)
			delete(props, "lifecyclestage")
		}
		if _, err := s.crm.UpdateContact(ctx, existing.ID, props); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	created, err := s.crm.CreateContact(ctx, props)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &domain.Error{Kind: domain.KindServer, Message: "contact created without an id"}
	}
	return created.ID, nil
}

// addToList is best-effort: failures are logged and reported, never returned.
func (s *LeadSyncService) addToList(ctx context.Context, log *zap.Logger, contactID string) (domain.OperationOutcome, bool) {
	if s.cfg.ListID == "" {
		return domain.OperationOutcome{}, false
	}
	outcome := domain.OperationOutcome{Operation: operationListMembership, Attempted: true}
	_, err := hubspot.Retry(ctx, s.retryPolicy(log, operationListMembership), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.crm.AddToList(ctx, s.cfg.ListID, contactID)
	})
	if err != nil {
		log.Warn("failed to add contact to list", zap.String("list_id", s.cfg.ListID), zap.Error(err))
		outcome.Error = err.Error()
		return outcome, true
	}
	outcome.Success = true
	return outcome, true
}

func (s *LeadSyncService) submitForm(
	ctx context.Context,
	log *zap.Logger,
	email string,
	form domain.LeadForm,
	projection domain.CalculatorResults,
	score int,
	stage domain.LifecycleStage,
) error {
	if !s.formsConfigured() {
		log.Debug("form submission skipped, portal or form id not configured")
		return nil
	}
	submission := s.formSubmission(formFields(email, form, projection, score, stage), form)
	_, err := hubspot.Retry(ctx, s.retryPolicy(log, "submit_form"), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.crm.SubmitForm(ctx, s.cfg.PortalID, s.cfg.FormID, submission)
	})
	return err
}

// submitFallback sends an email-only submission, once, and reports whether it
// was accepted.
func (s *LeadSyncService) submitFallback(ctx context.Context, log *zap.Logger, email string, form domain.LeadForm) bool {
	if !s.formsConfigured() {
		log.Warn("email-only fallback unavailable, portal or form id not configured")
		return false
	}
	submission := s.formSubmission([]hubspot.FormField{{Name: "email", Value: email}}, form)
	if err := s.crm.SubmitForm(ctx, s.cfg.PortalID, s.cfg.FormID, submission); err != nil {
		log.Error("email-only fallback failed", zap.Error(err))
		return false
	}
	log.Info("email-only fallback accepted")
	return true
}

func (s *LeadSyncService) formSubmission(fields []hubspot.FormField, form domain.LeadForm) hubspot.FormSubmission {
	submission := hubspot.FormSubmission{
		Fields: fields,
		LegalConsentOptions: hubspot.LegalConsentOptions{
			Consent: hubspot.Consent{ConsentToProcess: true, Text: s.cfg.ConsentText},
		},
	}
	if form.PageURI != "" || form.PageName != "" || form.HubSpotUTK != "" {
		submission.Context = &hubspot.FormContext{
			HUTK:     form.HubSpotUTK,
			PageURI:  form.PageURI,
			PageName: form.PageName,
		}
	}
	return submission
}

// CreateDealForLead opens a deal for leads whose annual loss is above the
// threshold. The outcome is informational only.
func (s *LeadSyncService) CreateDealForLead(
	ctx context.Context,
	contactID string,
	form domain.LeadForm,
	projection domain.CalculatorResults,
) domain.DealOutcome {
	return s.createDeal(ctx, s.logger, contactID, form, projection)
}

func (s *LeadSyncService) createDeal(
	ctx context.Context,
	log *zap.Logger,
	contactID string,
	form domain.LeadForm,
	projection domain.CalculatorResults,
) domain.DealOutcome {

	if !(projection.AnnualRevenueLost > s.cfg.DealThreshold) {
		return domain.DealOutcome{}
	}

	amount := projection.AnnualRevenueLost * s.cfg.DealCaptureRate * float64(s.cfg.DealHorizonYears)
	outcome := domain.DealOutcome{
		Attempted: true,
		DealName:  DealName(form),
		Amount:    amount,
	}
	props := domain.ContactProperties{
		"dealname":    outcome.DealName,
		"amount":      strconv.FormatFloat(roundTo2Decimals(amount), 'f', 2, 64),
		"pipeline":    "default",
		"dealstage":   "appointmentscheduled",
		"description": fmt.Sprintf("Projected annual churn loss of $%.2f", projection.AnnualRevenueLost),
	}

	deal, err := s.crm.CreateDeal(ctx, props, contactID)
	if err != nil {
		log.Warn("failed to create deal", zap.String("contact_id", contactID), zap.Error(err))
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Success = true
	outcome.DealID = deal.ID
	return outcome
}

// DealName labels a deal by company, then by contact name.
func DealName(form domain.LeadForm) string {
	base := strings.TrimSpace(form.Company)
	if base == "" {
		base = strings.TrimSpace(strings.TrimSpace(form.FirstName) + " " + strings.TrimSpace(form.LastName))
	}
	if base == "" {
		base = defaultDealLabel
	}
	return base + " - Churn Reduction"
}

// EnrollInWorkflow enrolls email in the configured workflow. Without a
// workflow id it is a logged no-op.
func (s *LeadSyncService) EnrollInWorkflow(ctx context.Context, email string) domain.OperationOutcome {
	return s.enrollInWorkflow(ctx, s.logger, NormalizeEmail(email))
}

func (s *LeadSyncService) enrollInWorkflow(ctx context.Context, log *zap.Logger, email string) domain.OperationOutcome {
	if s.cfg.WorkflowID == "" {
		log.Info("workflow enrollment skipped, no workflow id configured")
		return domain.OperationOutcome{Operation: operationWorkflowEnrollment}
	}
	outcome := domain.OperationOutcome{Operation: operationWorkflowEnrollment, Attempted: true}
	if err := s.crm.EnrollInWorkflow(ctx, s.cfg.WorkflowID, email); err != nil {
		log.Warn("failed to enroll contact in workflow", zap.String("workflow_id", s.cfg.WorkflowID), zap.Error(err))
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Success = true
	return outcome
}

func (s *LeadSyncService) contactProperties(
	email string,
	form domain.LeadForm,
	projection domain.CalculatorResults,
	score int,
	stage domain.LifecycleStage,
) domain.ContactProperties {

	props := domain.ContactProperties{
		"email":                   email,
		"lead_score":              strconv.Itoa(score),
		"lifecyclestage":          string(stage),
		"annual_revenue_lost":     formatAmount(projection.AnnualRevenueLost),
		"replacement_cost":        formatAmount(projection.ReplacementCost),
		"calculator_completed_at": s.now().UTC().Format(time.RFC3339),
	}
	if loss, ok := projection.LifetimeValueLost[ScenarioHorizonYears]; ok {
		props["three_year_revenue_lost"] = formatAmount(loss)
	}
	setIfPresent(props, "company", form.Company)
	setIfPresent(props, "firstname", form.FirstName)
	setIfPresent(props, "lastname", form.LastName)
	if form.TotalCustomers != nil {
		props["total_customers"] = strconv.Itoa(*form.TotalCustomers)
	}
	if form.AverageOrderValue != nil {
		props["average_order_value"] = formatAmount(*form.AverageOrderValue)
	}
	if form.ChurnRate != nil {
		props["churn_rate"] = formatAmount(*form.ChurnRate)
	}
	for _, key := range s.cfg.MetadataProperties {
		if _, taken := props[key]; taken {
			continue
		}
		if value, ok := form.Metadata[key]; ok {
			props[key] = value
		}
	}
	return props
}

func formFields(
	email string,
	form domain.LeadForm,
	projection domain.CalculatorResults,
	score int,
	stage domain.LifecycleStage,
) []hubspot.FormField {

	fields := []hubspot.FormField{{Name: "email", Value: email}}
	add := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fields = append(fields, hubspot.FormField{Name: name, Value: value})
		}
	}
	add("company", form.Company)
	add("firstname", form.FirstName)
	add("lastname", form.LastName)
	if form.TotalCustomers != nil {
		add("total_customers", strconv.Itoa(*form.TotalCustomers))
	}
	if form.AverageOrderValue != nil {
		add("average_order_value", formatAmount(*form.AverageOrderValue))
	}
	if form.ChurnRate != nil {
		add("churn_rate", formatAmount(*form.ChurnRate))
	}
	add("annual_revenue_lost", formatAmount(projection.AnnualRevenueLost))
	add("lead_score", strconv.Itoa(score))
	add("lifecyclestage", string(stage))
	return fields
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(roundTo2Decimals(v), 'f', 2, 64)
}

func setIfPresent(props domain.ContactProperties, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		props[key] = value
	}
}
