package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const campaignColumns = `id, name, description, status, schedule_type, scheduled_start, recurring_pattern, recurring_days, recurring_time, next_execution, is_active, emails_sent, emails_failed, last_executed, created_at, updated_at, deleted_at`

// CreateCampaignParams represents parameters for creating a campaign
type CreateCampaignParams struct {
	Name        string
	Description *string
}

const sqlCreateCampaign = `
INSERT INTO campaigns (name, description)
VALUES ($1, $2)
RETURNING ` + campaignColumns

// CreateCampaign creates a new campaign in draft status
func (s *Store) CreateCampaign(ctx context.Context, params CreateCampaignParams) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlCreateCampaign, params.Name, params.Description)
	if err != nil {
		s.logger.Error(ctx, "failed to create campaign", err)
		return Campaign{}, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

const sqlGetCampaignByID = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE id = $1 AND deleted_at IS NULL
`

// GetCampaignByID retrieves a campaign by ID
func (s *Store) GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlGetCampaignByID, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

const sqlListCampaigns = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

// ListCampaigns retrieves campaigns with pagination
func (s *Store) ListCampaigns(ctx context.Context, limit, offset int) ([]Campaign, error) {
	var campaigns []Campaign
	err := s.db.SelectContext(ctx, &campaigns, sqlListCampaigns, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

const sqlGetDueCampaigns = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE is_active = TRUE
  AND status = 'scheduled'
  AND next_execution IS NOT NULL
  AND next_execution <= $1
  AND deleted_at IS NULL
ORDER BY next_execution ASC
`

// GetDueCampaigns retrieves campaigns eligible to fire at or before the given instant
func (s *Store) GetDueCampaigns(ctx context.Context, now time.Time) ([]Campaign, error) {
	var campaigns []Campaign
	err := s.db.SelectContext(ctx, &campaigns, sqlGetDueCampaigns, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due campaigns: %w", err)
	}
	return campaigns, nil
}

// The conditional write below is the engine's substitute for a distributed
// lock: a single UPDATE with a due-time predicate is atomic at the storage
// layer, so at most one scheduler instance moves next_execution forward per
// lease window. A losing claimant matches zero rows.
const sqlClaimCampaign = `
UPDATE campaigns
SET next_execution = $3,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1
  AND status = 'scheduled'
  AND is_active = TRUE
  AND next_execution IS NOT NULL
  AND next_execution <= $2
  AND deleted_at IS NULL
`

// ClaimCampaign attempts the lease-based claim of a due campaign.
// Returns true only if this caller won the conditional write.
func (s *Store) ClaimCampaign(ctx context.Context, campaignID uuid.UUID, now time.Time, leaseDuration time.Duration) (bool, error) {
	leaseUntil := now.Add(leaseDuration)
	res, err := s.db.ExecContext(ctx, sqlClaimCampaign, campaignID, now, leaseUntil)
	if err != nil {
		return false, fmt.Errorf("failed to claim campaign: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return affected == 1, nil
}

// UpdateCampaignScheduleParams represents the scheduling fields written when
// a user configures a campaign schedule
type UpdateCampaignScheduleParams struct {
	ScheduleType     string
	ScheduledStart   *time.Time
	RecurringPattern *string
	RecurringDays    IntArray
	RecurringTime    *string
	NextExecution    time.Time
}

const sqlUpdateCampaignSchedule = `
UPDATE campaigns
SET schedule_type = $2,
    scheduled_start = $3,
    recurring_pattern = $4,
    recurring_days = $5,
    recurring_time = $6,
    next_execution = $7,
    status = 'scheduled',
    is_active = TRUE,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + campaignColumns

// UpdateCampaignSchedule persists a schedule configuration and marks the
// campaign as scheduled
func (s *Store) UpdateCampaignSchedule(ctx context.Context, campaignID uuid.UUID, params UpdateCampaignScheduleParams) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlUpdateCampaignSchedule,
		campaignID,
		params.ScheduleType,
		params.ScheduledStart,
		params.RecurringPattern,
		params.RecurringDays,
		params.RecurringTime,
		params.NextExecution)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, fmt.Errorf("failed to update campaign schedule: %w", err)
	}
	return campaign, nil
}

const sqlSetCampaignNextExecution = `
UPDATE campaigns
SET next_execution = $2,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND deleted_at IS NULL
`

// SetCampaignNextExecution writes the next fire time (or clears it with nil)
func (s *Store) SetCampaignNextExecution(ctx context.Context, campaignID uuid.UUID, next *time.Time) error {
	_, err := s.db.ExecContext(ctx, sqlSetCampaignNextExecution, campaignID, next)
	if err != nil {
		return fmt.Errorf("failed to set next execution: %w", err)
	}
	return nil
}

const sqlUpdateCampaignStatus = `
UPDATE campaigns
SET status = $2,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND deleted_at IS NULL
`

// UpdateCampaignStatus updates a campaign's status
func (s *Store) UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateCampaignStatus, campaignID, status)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	return nil
}

const sqlRecordCampaignExecution = `
UPDATE campaigns
SET emails_sent = emails_sent + $2,
    emails_failed = emails_failed + $3,
    last_executed = $4,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND deleted_at IS NULL
`

// RecordCampaignExecution accumulates execution counters on the campaign row
func (s *Store) RecordCampaignExecution(ctx context.Context, campaignID uuid.UUID, sent, failed int, executedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, sqlRecordCampaignExecution, campaignID, sent, failed, executedAt)
	if err != nil {
		return fmt.Errorf("failed to record campaign execution: %w", err)
	}
	return nil
}
