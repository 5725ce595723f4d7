package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const leadColumns = `id, campaign_id, email, first_name, last_name, phone, vehicle_interest, source, status, created_at, updated_at, deleted_at`

// CreateLeadParams represents parameters for creating a lead
type CreateLeadParams struct {
	CampaignID      *uuid.UUID
	Email           string
	FirstName       *string
	LastName        *string
	Phone           *string
	VehicleInterest *string
	Source          *string
}

const sqlCreateLead = `
INSERT INTO leads (campaign_id, email, first_name, last_name, phone, vehicle_interest, source)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + leadColumns

// CreateLead creates a new lead
func (s *Store) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	var lead Lead
	err := s.db.GetContext(ctx, &lead, sqlCreateLead,
		params.CampaignID,
		strings.ToLower(strings.TrimSpace(params.Email)),
		params.FirstName,
		params.LastName,
		params.Phone,
		params.VehicleInterest,
		params.Source)
	if err != nil {
		s.logger.Error(ctx, "failed to create lead", err)
		return Lead{}, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}

const sqlGetLeadByID = `
SELECT ` + leadColumns + `
FROM leads
WHERE id = $1 AND deleted_at IS NULL
`

// GetLeadByID retrieves a lead by ID
func (s *Store) GetLeadByID(ctx context.Context, leadID uuid.UUID) (Lead, error) {
	var lead Lead
	err := s.db.GetContext(ctx, &lead, sqlGetLeadByID, leadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

const sqlGetLeadByEmail = `
SELECT ` + leadColumns + `
FROM leads
WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
ORDER BY created_at ASC
LIMIT 1
`

// GetLeadByEmail retrieves a lead by email, case-insensitively
func (s *Store) GetLeadByEmail(ctx context.Context, email string) (Lead, error) {
	var lead Lead
	err := s.db.GetContext(ctx, &lead, sqlGetLeadByEmail, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("failed to get lead by email: %w", err)
	}
	return lead, nil
}

const sqlListLeadsForCampaign = `
SELECT ` + leadColumns + `
FROM leads
WHERE campaign_id = $1 AND deleted_at IS NULL
ORDER BY created_at ASC
`

// ListLeadsForCampaign retrieves all leads attached to a campaign
func (s *Store) ListLeadsForCampaign(ctx context.Context, campaignID uuid.UUID) ([]Lead, error) {
	var leads []Lead
	err := s.db.SelectContext(ctx, &leads, sqlListLeadsForCampaign, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads for campaign: %w", err)
	}
	return leads, nil
}

const sqlUpdateLeadStatus = `
UPDATE leads
SET status = $2,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND deleted_at IS NULL
`

// UpdateLeadStatus updates a lead's delivery-relevant status. Writers are
// last-writer-wins: the execution processor and the inbound webhook handlers
// both call this without coordination.
func (s *Store) UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateLeadStatus, leadID, status)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	return nil
}

const sqlUpdateLeadStatusByEmail = `
UPDATE leads
SET status = $2,
    updated_at = CURRENT_TIMESTAMP
WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
`

// UpdateLeadStatusByEmail updates the status of every lead matching an email.
// Used by the inbound webhook handlers, which only know the recipient address.
func (s *Store) UpdateLeadStatusByEmail(ctx context.Context, email, status string) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateLeadStatusByEmail, email, status)
	if err != nil {
		return fmt.Errorf("failed to update lead status by email: %w", err)
	}
	return nil
}
