package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateEmailLogParams represents parameters for recording a send attempt
type CreateEmailLogParams struct {
	CampaignID  uuid.UUID
	ExecutionID string
	Email       string
	Status      string
	Error       *string
}

const sqlCreateEmailLog = `
INSERT INTO email_log (campaign_id, execution_id, email, status, error)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, campaign_id, execution_id, email, status, error, created_at
`

// CreateEmailLog records one send attempt. Callers treat failures here as
// best-effort; a logging failure never fails the send itself.
func (s *Store) CreateEmailLog(ctx context.Context, params CreateEmailLogParams) (EmailLogEntry, error) {
	var entry EmailLogEntry
	err := s.db.GetContext(ctx, &entry, sqlCreateEmailLog,
		params.CampaignID,
		params.ExecutionID,
		params.Email,
		params.Status,
		params.Error)
	if err != nil {
		return EmailLogEntry{}, fmt.Errorf("failed to create email log entry: %w", err)
	}
	return entry, nil
}

const sqlGetEmailLogForExecution = `
SELECT id, campaign_id, execution_id, email, status, error, created_at
FROM email_log
WHERE execution_id = $1
ORDER BY created_at ASC
`

// GetEmailLogForExecution retrieves the send records of one execution
func (s *Store) GetEmailLogForExecution(ctx context.Context, executionID string) ([]EmailLogEntry, error) {
	var entries []EmailLogEntry
	err := s.db.SelectContext(ctx, &entries, sqlGetEmailLogForExecution, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get email log: %w", err)
	}
	return entries, nil
}
