package events

import (
	"context"
	"time"

	"outreach-server/internal/clients/kafka"
	"outreach-server/internal/gateway"
	"outreach-server/internal/observability"

	"github.com/google/uuid"
)

// Publisher emits campaign lifecycle events to the analytics topic. The
// topic is a side-channel: publishing is best-effort and a broker outage
// must never slow down or fail a send, so every publish goes through a
// circuit breaker that sheds work while the broker is unhealthy.
type Publisher struct {
	producer *kafka.Producer
	breaker  *gateway.CircuitBreaker
	logger   *observability.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer, breaker *gateway.CircuitBreaker, logger *observability.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		breaker:  breaker,
		logger:   logger,
	}
}

// PublishCampaignExecuted publishes a campaign.executed event
func (p *Publisher) PublishCampaignExecuted(ctx context.Context, campaignID uuid.UUID, executionID string, sent, failed int) error {
	return p.publish(ctx, kafka.EventMessage{
		ID:         uuid.New().String(),
		Type:       "campaign.executed",
		CampaignID: campaignID.String(),
		Data: map[string]interface{}{
			"execution_id":  executionID,
			"emails_sent":   sent,
			"emails_failed": failed,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishCampaignScheduled publishes a campaign.scheduled event
func (p *Publisher) PublishCampaignScheduled(ctx context.Context, campaignID uuid.UUID, scheduleType string, nextExecution time.Time) error {
	return p.publish(ctx, kafka.EventMessage{
		ID:         uuid.New().String(),
		Type:       "campaign.scheduled",
		CampaignID: campaignID.String(),
		Data: map[string]interface{}{
			"schedule_type":  scheduleType,
			"next_execution": nextExecution.UTC().Format(time.RFC3339),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishEmailResult publishes an email.sent or email.failed event for a
// single recipient.
func (p *Publisher) PublishEmailResult(ctx context.Context, campaignID uuid.UUID, email string, delivered bool) error {
	eventType := "email.sent"
	if !delivered {
		eventType = "email.failed"
	}
	return p.publish(ctx, kafka.EventMessage{
		ID:         uuid.New().String(),
		Type:       eventType,
		CampaignID: campaignID.String(),
		Data: map[string]interface{}{
			"email": email,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishLeadStatusChanged publishes a lead.status_changed event
func (p *Publisher) PublishLeadStatusChanged(ctx context.Context, campaignID uuid.UUID, email, status string) error {
	return p.publish(ctx, kafka.EventMessage{
		ID:         uuid.New().String(),
		Type:       "lead.status_changed",
		CampaignID: campaignID.String(),
		Data: map[string]interface{}{
			"email":  email,
			"status": status,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(ctx context.Context, event kafka.EventMessage) error {
	if !p.breaker.Allow() {
		p.logger.Debug(ctx, "analytics breaker open, dropping event "+event.Type)
		return nil
	}
	if err := p.producer.PublishEvent(ctx, event); err != nil {
		p.breaker.RecordFailure()
		return err
	}
	p.breaker.RecordSuccess()
	return nil
}
