package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaiclient "outreach-server/internal/clients/openai"
	"outreach-server/internal/observability"
	"outreach-server/internal/store"
)

const systemPrompt = `You triage replies to dealership outreach emails.
Classify the reply and respond with JSON only:
{"intent": "interested" | "not_interested" | "unsubscribe" | "other", "summary": "<one sentence>"}`

// Classification is the triage outcome for one inbound reply
type Classification struct {
	Intent  string `json:"intent"`
	Summary string `json:"summary"`
}

// LeadUpdater writes triage outcomes back to the lead record
type LeadUpdater interface {
	UpdateLeadStatusByEmail(ctx context.Context, email, status string) error
}

// Processor classifies inbound lead replies and updates lead status. When
// no OpenAI key is configured it falls back to keyword matching, so the
// webhook path works without the external dependency.
type Processor struct {
	client *openaiclient.Client
	leads  LeadUpdater
	logger *observability.Logger
}

// NewProcessor creates a reply triage processor
func NewProcessor(client *openaiclient.Client, leads LeadUpdater, logger *observability.Logger) *Processor {
	return &Processor{
		client: client,
		leads:  leads,
		logger: logger,
	}
}

// ProcessReply classifies a reply and records the resulting lead status
func (p *Processor) ProcessReply(ctx context.Context, email, body string) (Classification, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "lead_email", Value: email})

	classification := p.classify(ctx, body)

	status := statusForIntent(classification.Intent)
	if status != "" {
		if err := p.leads.UpdateLeadStatusByEmail(ctx, email, status); err != nil {
			return classification, fmt.Errorf("failed to update lead status: %w", err)
		}
	}

	p.logger.Info(ctx, fmt.Sprintf("Triage classified reply as %s", classification.Intent))
	return classification, nil
}

func (p *Processor) classify(ctx context.Context, body string) Classification {
	if p.client == nil {
		return keywordClassify(body)
	}

	raw, err := p.client.Complete(ctx, systemPrompt, body)
	if err != nil {
		p.logger.InfoWithError(ctx, "triage completion failed, falling back to keywords", err)
		return keywordClassify(body)
	}

	var classification Classification
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "```json"))
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(raw), &classification); err != nil {
		p.logger.InfoWithError(ctx, "triage returned unparseable output, falling back to keywords", err)
		return keywordClassify(body)
	}
	if statusForIntent(classification.Intent) == "" && classification.Intent != "other" {
		return keywordClassify(body)
	}
	return classification
}

func statusForIntent(intent string) string {
	switch intent {
	case "interested", "not_interested":
		return store.LeadStatusResponded
	case "unsubscribe":
		return store.LeadStatusUnsubscribed
	default:
		return ""
	}
}

func keywordClassify(body string) Classification {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "unsubscribe") || strings.Contains(lower, "stop emailing") || strings.Contains(lower, "remove me"):
		return Classification{Intent: "unsubscribe", Summary: "Reply asked to stop receiving emails"}
	case strings.Contains(lower, "not interested") || strings.Contains(lower, "no thanks"):
		return Classification{Intent: "not_interested", Summary: "Reply declined the offer"}
	case strings.Contains(lower, "interested") || strings.Contains(lower, "test drive") || strings.Contains(lower, "call me"):
		return Classification{Intent: "interested", Summary: "Reply expressed interest"}
	default:
		return Classification{Intent: "other", Summary: "Reply did not match a known intent"}
	}
}
