package processor

import (
	"context"
	"errors"
	"strings"
	"time"

	"outreach-server/internal/engine"
	"outreach-server/internal/observability"
	"outreach-server/internal/store"
	"outreach-server/internal/triage"

	"github.com/google/uuid"
)

// CampaignStore defines the database operations required by CampaignProcessor
type CampaignStore interface {
	CreateCampaign(ctx context.Context, params store.CreateCampaignParams) (store.Campaign, error)
	GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
	ListCampaigns(ctx context.Context, limit, offset int) ([]store.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error
	SetCampaignNextExecution(ctx context.Context, campaignID uuid.UUID, next *time.Time) error
	CreateCampaignTemplate(ctx context.Context, params store.CreateCampaignTemplateParams) (store.CampaignTemplate, error)
	GetCampaignTemplates(ctx context.Context, campaignID uuid.UUID) ([]store.CampaignTemplate, error)
	CreateLead(ctx context.Context, params store.CreateLeadParams) (store.Lead, error)
	GetLeadByID(ctx context.Context, leadID uuid.UUID) (store.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (store.Lead, error)
	ListLeadsForCampaign(ctx context.Context, campaignID uuid.UUID) ([]store.Lead, error)
	GetEmailLogForExecution(ctx context.Context, executionID string) ([]store.EmailLogEntry, error)
}

// ReplyTriager classifies an inbound lead reply and applies the resulting
// status change.
type ReplyTriager interface {
	ProcessReply(ctx context.Context, email, body string) (triage.Classification, error)
}

var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrLeadNotFound      = errors.New("lead not found")
	ErrInvalidTemplate   = errors.New("invalid template")
	ErrCampaignCancelled = errors.New("campaign is cancelled")
)

// CampaignProcessor holds the business logic behind the campaign API
type CampaignProcessor struct {
	store  CampaignStore
	engine *engine.Service
	triage ReplyTriager
	logger *observability.Logger
}

// New creates a campaign processor
func New(store CampaignStore, engineService *engine.Service, replyTriage ReplyTriager, logger *observability.Logger) CampaignProcessor {
	return CampaignProcessor{
		store:  store,
		engine: engineService,
		triage: replyTriage,
		logger: logger,
	}
}

// CreateCampaign creates a campaign in draft status
func (p CampaignProcessor) CreateCampaign(ctx context.Context, name string, description *string) (store.Campaign, error) {
	return p.store.CreateCampaign(ctx, store.CreateCampaignParams{
		Name:        strings.TrimSpace(name),
		Description: description,
	})
}

// GetCampaign fetches a single campaign
func (p CampaignProcessor) GetCampaign(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error) {
	campaign, err := p.store.GetCampaignByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Campaign{}, ErrCampaignNotFound
		}
		return store.Campaign{}, err
	}
	return campaign, nil
}

// ListCampaigns lists campaigns with pagination
func (p CampaignProcessor) ListCampaigns(ctx context.Context, limit, offset int) ([]store.Campaign, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return p.store.ListCampaigns(ctx, limit, offset)
}

// AddTemplate appends a subject/body template to the campaign's list
func (p CampaignProcessor) AddTemplate(ctx context.Context, campaignID uuid.UUID, subject, body string) (store.CampaignTemplate, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return store.CampaignTemplate{}, ErrInvalidTemplate
	}
	if _, err := p.GetCampaign(ctx, campaignID); err != nil {
		return store.CampaignTemplate{}, err
	}

	existing, err := p.store.GetCampaignTemplates(ctx, campaignID)
	if err != nil {
		return store.CampaignTemplate{}, err
	}

	return p.store.CreateCampaignTemplate(ctx, store.CreateCampaignTemplateParams{
		CampaignID: campaignID,
		Position:   len(existing),
		Subject:    subject,
		Body:       body,
	})
}

// GetTemplates returns the campaign's templates in position order
func (p CampaignProcessor) GetTemplates(ctx context.Context, campaignID uuid.UUID) ([]store.CampaignTemplate, error) {
	if _, err := p.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return p.store.GetCampaignTemplates(ctx, campaignID)
}

// AddLead attaches a lead to a campaign
func (p CampaignProcessor) AddLead(ctx context.Context, campaignID uuid.UUID, params store.CreateLeadParams) (store.Lead, error) {
	if _, err := p.GetCampaign(ctx, campaignID); err != nil {
		return store.Lead{}, err
	}
	params.CampaignID = &campaignID
	return p.store.CreateLead(ctx, params)
}

// GetLeadByEmail looks a lead up by its email address
func (p CampaignProcessor) GetLeadByEmail(ctx context.Context, email string) (store.Lead, error) {
	lead, err := p.store.GetLeadByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Lead{}, ErrLeadNotFound
		}
		return store.Lead{}, err
	}
	return lead, nil
}

// TriageLead runs reply triage for a lead and returns the classification.
// The lead's status is updated as a side effect when the intent maps to one.
func (p CampaignProcessor) TriageLead(ctx context.Context, leadID uuid.UUID, body string) (triage.Classification, error) {
	lead, err := p.store.GetLeadByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return triage.Classification{}, ErrLeadNotFound
		}
		return triage.Classification{}, err
	}
	return p.triage.ProcessReply(ctx, lead.Email, body)
}

// ListLeads returns the campaign's leads
func (p CampaignProcessor) ListLeads(ctx context.Context, campaignID uuid.UUID) ([]store.Lead, error) {
	if _, err := p.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return p.store.ListLeadsForCampaign(ctx, campaignID)
}

// Schedule configures when the campaign fires
func (p CampaignProcessor) Schedule(ctx context.Context, campaignID uuid.UUID, req engine.ScheduleRequest) (store.Campaign, error) {
	campaign, err := p.GetCampaign(ctx, campaignID)
	if err != nil {
		return store.Campaign{}, err
	}
	if campaign.Status == store.CampaignStatusCancelled {
		return store.Campaign{}, ErrCampaignCancelled
	}
	return p.engine.ScheduleCampaign(ctx, campaignID, req)
}

// Launch runs the campaign immediately, bypassing the scheduler
func (p CampaignProcessor) Launch(ctx context.Context, campaignID uuid.UUID, testMode bool) (engine.ExecutionResult, error) {
	campaign, err := p.GetCampaign(ctx, campaignID)
	if err != nil {
		return engine.ExecutionResult{}, err
	}
	if campaign.Status == store.CampaignStatusCancelled {
		return engine.ExecutionResult{}, ErrCampaignCancelled
	}
	return p.engine.ExecuteCampaign(ctx, campaignID, testMode)
}

// Cancel stops a campaign from firing again. The next execution marker is
// cleared so the polling loop never picks it up.
func (p CampaignProcessor) Cancel(ctx context.Context, campaignID uuid.UUID) error {
	if _, err := p.GetCampaign(ctx, campaignID); err != nil {
		return err
	}
	if err := p.store.SetCampaignNextExecution(ctx, campaignID, nil); err != nil {
		return err
	}
	return p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusCancelled)
}

// GetExecutionLog returns per-recipient send records for one execution
func (p CampaignProcessor) GetExecutionLog(ctx context.Context, executionID string) ([]store.EmailLogEntry, error) {
	return p.store.GetEmailLogForExecution(ctx, executionID)
}

// ActiveExecutions lists executions currently running in this instance
func (p CampaignProcessor) ActiveExecutions() []engine.ActiveExecution {
	return p.engine.Registry().List()
}

// CancelExecution stops a running execution
func (p CampaignProcessor) CancelExecution(executionID string) bool {
	return p.engine.Registry().Cancel(executionID)
}
