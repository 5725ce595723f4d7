package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const campaignTemplateColumns = `id, campaign_id, position, subject, body, created_at, updated_at, deleted_at`

// CreateCampaignTemplateParams represents parameters for adding a template
// to a campaign's template list
type CreateCampaignTemplateParams struct {
	CampaignID uuid.UUID
	Position   int
	Subject    string
	Body       string
}

const sqlCreateCampaignTemplate = `
INSERT INTO campaign_templates (campaign_id, position, subject, body)
VALUES ($1, $2, $3, $4)
RETURNING ` + campaignTemplateColumns

// CreateCampaignTemplate adds a template to a campaign
func (s *Store) CreateCampaignTemplate(ctx context.Context, params CreateCampaignTemplateParams) (CampaignTemplate, error) {
	var tmpl CampaignTemplate
	err := s.db.GetContext(ctx, &tmpl, sqlCreateCampaignTemplate,
		params.CampaignID,
		params.Position,
		params.Subject,
		params.Body)
	if err != nil {
		return CampaignTemplate{}, fmt.Errorf("failed to create campaign template: %w", err)
	}
	return tmpl, nil
}

const sqlGetCampaignTemplates = `
SELECT ` + campaignTemplateColumns + `
FROM campaign_templates
WHERE campaign_id = $1 AND deleted_at IS NULL
ORDER BY position ASC
`

// GetCampaignTemplates retrieves a campaign's template list ordered by position
func (s *Store) GetCampaignTemplates(ctx context.Context, campaignID uuid.UUID) ([]CampaignTemplate, error) {
	var templates []CampaignTemplate
	err := s.db.SelectContext(ctx, &templates, sqlGetCampaignTemplates, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign templates: %w", err)
	}
	return templates, nil
}

const sqlGetCampaignTemplateByPosition = `
SELECT ` + campaignTemplateColumns + `
FROM campaign_templates
WHERE campaign_id = $1 AND position = $2 AND deleted_at IS NULL
`

// GetCampaignTemplateByPosition retrieves a single template by its index in
// the campaign's template list
func (s *Store) GetCampaignTemplateByPosition(ctx context.Context, campaignID uuid.UUID, position int) (CampaignTemplate, error) {
	var tmpl CampaignTemplate
	err := s.db.GetContext(ctx, &tmpl, sqlGetCampaignTemplateByPosition, campaignID, position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CampaignTemplate{}, ErrNotFound
		}
		return CampaignTemplate{}, fmt.Errorf("failed to get campaign template: %w", err)
	}
	return tmpl, nil
}
