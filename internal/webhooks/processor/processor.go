package processor

import (
	"context"
	"errors"
	"fmt"

	"outreach-server/internal/observability"
	"outreach-server/internal/store"
	"outreach-server/internal/triage"
)

// ErrUnknownEvent indicates a provider event type we do not handle
var ErrUnknownEvent = errors.New("unknown event type")

// LeadStore writes lead status changes driven by provider events
type LeadStore interface {
	UpdateLeadStatusByEmail(ctx context.Context, email, status string) error
}

// ReplyTriager classifies inbound lead replies
type ReplyTriager interface {
	ProcessReply(ctx context.Context, email, body string) (triage.Classification, error)
}

// WebhookProcessor applies Mailgun delivery events and inbound replies to
// lead records. Suppression-relevant events flip the lead status so the
// delivery gateway refuses future sends to that address.
type WebhookProcessor struct {
	leads  LeadStore
	triage ReplyTriager
	logger *observability.Logger
}

// New creates a webhook processor
func New(leads LeadStore, triager ReplyTriager, logger *observability.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		leads:  leads,
		triage: triager,
		logger: logger,
	}
}

// DeliveryEvent is the subset of a Mailgun event we act on
type DeliveryEvent struct {
	Event     string
	Recipient string
}

// ProcessDeliveryEvent maps a provider event to a lead status update
func (p *WebhookProcessor) ProcessDeliveryEvent(ctx context.Context, event DeliveryEvent) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "event", Value: event.Event},
		observability.Field{Key: "recipient", Value: event.Recipient},
	)

	var status string
	switch event.Event {
	case "failed", "bounced":
		status = store.LeadStatusBounced
	case "complained":
		status = store.LeadStatusComplained
	case "unsubscribed":
		status = store.LeadStatusUnsubscribed
	case "delivered", "opened", "clicked":
		// Tracked upstream; no lead status change.
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event.Event)
	}

	if err := p.leads.UpdateLeadStatusByEmail(ctx, event.Recipient, status); err != nil {
		return fmt.Errorf("failed to apply delivery event: %w", err)
	}
	p.logger.Info(ctx, fmt.Sprintf("Lead marked %s from provider event", status))
	return nil
}

// ProcessInboundReply runs triage over a reply received via the provider's
// inbound route.
func (p *WebhookProcessor) ProcessInboundReply(ctx context.Context, sender, body string) (triage.Classification, error) {
	return p.triage.ProcessReply(ctx, sender, body)
}
