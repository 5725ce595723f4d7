package engine

import (
	"context"
	"time"

	"outreach-server/internal/store"

	"github.com/google/uuid"
)

// CampaignStore defines the database operations required by the engine
type CampaignStore interface {
	GetDueCampaigns(ctx context.Context, now time.Time) ([]store.Campaign, error)
	ClaimCampaign(ctx context.Context, campaignID uuid.UUID, now time.Time, leaseDuration time.Duration) (bool, error)
	GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
	GetCampaignTemplates(ctx context.Context, campaignID uuid.UUID) ([]store.CampaignTemplate, error)
	UpdateCampaignSchedule(ctx context.Context, campaignID uuid.UUID, params store.UpdateCampaignScheduleParams) (store.Campaign, error)
	SetCampaignNextExecution(ctx context.Context, campaignID uuid.UUID, next *time.Time) error
	UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error
	RecordCampaignExecution(ctx context.Context, campaignID uuid.UUID, sent, failed int, executedAt time.Time) error
}

// LeadStore defines the lead operations required by the engine
type LeadStore interface {
	ListLeadsForCampaign(ctx context.Context, campaignID uuid.UUID) ([]store.Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status string) error
}

// EmailLogWriter records individual send attempts, best-effort
type EmailLogWriter interface {
	CreateEmailLog(ctx context.Context, params store.CreateEmailLogParams) (store.EmailLogEntry, error)
}

// Sender delivers one message through the delivery gateway
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// EventPublisher emits engine events to the analytics side-channel
type EventPublisher interface {
	PublishCampaignScheduled(ctx context.Context, campaignID uuid.UUID, scheduleType string, nextExecution time.Time) error
	PublishCampaignExecuted(ctx context.Context, campaignID uuid.UUID, executionID string, sent, failed int) error
}

// EmailEventPublisher emits per-recipient send outcomes
type EmailEventPublisher interface {
	PublishEmailResult(ctx context.Context, campaignID uuid.UUID, email string, delivered bool) error
}
