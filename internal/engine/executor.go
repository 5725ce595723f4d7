package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"outreach-server/internal/observability"
	"outreach-server/internal/store"
)

const testSubjectPrefix = "[TEST] "

// ExecutionResult aggregates one execution processor invocation. It is
// returned to the caller and never persisted by the engine itself.
type ExecutionResult struct {
	ExecutionID  string   `json:"execution_id"`
	TotalLeads   int      `json:"total_leads"`
	EmailsSent   int      `json:"emails_sent"`
	EmailsFailed int      `json:"emails_failed"`
	Errors       []string `json:"errors"`
	Success      bool     `json:"success"`
}

// ExecutorOptions holds per-run tunables
type ExecutorOptions struct {
	BatchSize           int
	Concurrency         int
	DelayBetweenBatches time.Duration
	TestMode            bool
}

func (o ExecutorOptions) withDefaults() ExecutorOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.DelayBetweenBatches < 0 {
		o.DelayBetweenBatches = 0
	}
	return o
}

// Executor dispatches one campaign's sends: deduplication, fixed-size
// batches, a bounded worker pool per batch, and per-recipient failure
// isolation.
type Executor struct {
	sender Sender
	leads  LeadStore
	log    EmailLogWriter
	events EmailEventPublisher
	logger *observability.Logger

	sleep func(ctx context.Context, d time.Duration)
}

// NewExecutor creates an execution processor. events may be nil when no
// analytics side-channel is configured.
func NewExecutor(sender Sender, leads LeadStore, log EmailLogWriter, events EmailEventPublisher, logger *observability.Logger) *Executor {
	return &Executor{
		sender: sender,
		leads:  leads,
		log:    log,
		events: events,
		logger: logger,
		sleep:  sleepBetweenBatches,
	}
}

// Run executes one send pass over the lead list using the template at
// templateIndex. Configuration problems fail the whole run before any send;
// every other failure is isolated to its recipient.
func (e *Executor) Run(ctx context.Context, campaign store.Campaign, leads []store.Lead, templates []store.CampaignTemplate, templateIndex int, executionID string, opts ExecutorOptions) ExecutionResult {
	opts = opts.withDefaults()

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: campaign.ID.String()},
		observability.Field{Key: "execution_id", Value: executionID},
	)

	result := ExecutionResult{
		ExecutionID: executionID,
		TotalLeads:  len(leads),
	}

	if len(templates) == 0 {
		result.Errors = append(result.Errors, "campaign has no templates")
		return result
	}
	if templateIndex < 0 || templateIndex >= len(templates) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("template index %d out of range (campaign has %d templates)", templateIndex, len(templates)))
		return result
	}
	template := templates[templateIndex]
	if strings.TrimSpace(template.Subject) == "" || strings.TrimSpace(template.Body) == "" {
		result.Errors = append(result.Errors,
			fmt.Sprintf("template at index %d has an empty subject or body", templateIndex))
		return result
	}

	valid := e.filterLeads(leads, &result)

	if opts.TestMode && len(valid) > 1 {
		valid = valid[:1]
	}
	subject := template.Subject
	if opts.TestMode {
		subject = testSubjectPrefix + subject
	}

	batches := partition(valid, opts.BatchSize)
	e.logger.Info(ctx, fmt.Sprintf("Executing campaign: %d valid recipients in %d batches", len(valid), len(batches)))

	for i, batch := range batches {
		e.runBatch(ctx, campaign, batch, subject, template.Body, executionID, opts.Concurrency, &result)

		// Pacing delay between batches, never after the last one.
		if i < len(batches)-1 && opts.DelayBetweenBatches > 0 && !opts.TestMode {
			e.sleep(ctx, opts.DelayBetweenBatches)
		}
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("execution cancelled: %v", ctx.Err()))
			break
		}
	}

	// A run that delivered nothing is a failed run, even when every error
	// was an invalid or suppressed recipient.
	result.Success = result.EmailsSent > 0

	e.logger.Info(ctx, fmt.Sprintf("Execution finished: %d sent, %d failed", result.EmailsSent, result.EmailsFailed))
	return result
}

// filterLeads drops malformed emails and deduplicates case-insensitively,
// keeping the first occurrence.
func (e *Executor) filterLeads(leads []store.Lead, result *ExecutionResult) []store.Lead {
	seen := make(map[string]bool, len(leads))
	valid := make([]store.Lead, 0, len(leads))

	for _, lead := range leads {
		email := strings.TrimSpace(lead.Email)
		if email == "" || !strings.Contains(email, "@") {
			result.Errors = append(result.Errors,
				fmt.Sprintf("skipping lead %s: invalid email address", lead.ID))
			result.EmailsFailed++
			continue
		}
		key := strings.ToLower(email)
		if seen[key] {
			continue
		}
		seen[key] = true
		lead.Email = email
		valid = append(valid, lead)
	}
	return valid
}

// runBatch drains one batch through a bounded worker pool. Workers pull the
// next unclaimed lead until the batch is exhausted; the pool is fully drained
// before the next batch starts.
func (e *Executor) runBatch(ctx context.Context, campaign store.Campaign, batch []store.Lead, subject, body, executionID string, concurrency int, result *ExecutionResult) {
	jobs := make(chan store.Lead)
	var wg sync.WaitGroup
	var mu sync.Mutex

	workers := concurrency
	if workers > len(batch) {
		workers = len(batch)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for lead := range jobs {
				// Cooperative cancellation: checked between items, never
				// mid-call.
				if ctx.Err() != nil {
					continue
				}
				sent, reason := e.sendToLead(ctx, campaign, lead, subject, body, executionID)

				mu.Lock()
				if sent {
					result.EmailsSent++
				} else {
					result.EmailsFailed++
					result.Errors = append(result.Errors,
						fmt.Sprintf("Failed to send email to %s: %s", lead.Email, reason))
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, lead := range batch {
		select {
		case jobs <- lead:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}

// sendToLead personalizes and delivers one message. Returns delivered=false
// with a reason string on failure.
func (e *Executor) sendToLead(ctx context.Context, campaign store.Campaign, lead store.Lead, subject, body, executionID string) (bool, string) {
	personalSubject := personalize(subject, lead)
	personalBody := personalize(body, lead)

	err := e.sender.Send(ctx, lead.Email, personalSubject, personalBody)
	if err != nil {
		e.recordLog(ctx, campaign, lead, executionID, store.EmailLogStatusFailed, err.Error())
		e.publishResult(ctx, campaign, lead, false)
		return false, err.Error()
	}

	// Status update is best-effort; a bookkeeping failure never fails a
	// delivered send.
	if uerr := e.leads.UpdateLeadStatus(ctx, lead.ID, store.LeadStatusContacted); uerr != nil {
		e.logger.InfoWithError(ctx, fmt.Sprintf("failed to mark lead %s as contacted", lead.ID), uerr)
	}
	e.recordLog(ctx, campaign, lead, executionID, store.EmailLogStatusSent, "")
	e.publishResult(ctx, campaign, lead, true)

	return true, ""
}

func (e *Executor) publishResult(ctx context.Context, campaign store.Campaign, lead store.Lead, delivered bool) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishEmailResult(ctx, campaign.ID, lead.Email, delivered); err != nil {
		e.logger.InfoWithError(ctx, "failed to publish email result event", err)
	}
}

func (e *Executor) recordLog(ctx context.Context, campaign store.Campaign, lead store.Lead, executionID, status, errMsg string) {
	if e.log == nil {
		return
	}
	params := store.CreateEmailLogParams{
		CampaignID:  campaign.ID,
		ExecutionID: executionID,
		Email:       lead.Email,
		Status:      status,
	}
	if errMsg != "" {
		params.Error = &errMsg
	}
	if _, err := e.log.CreateEmailLog(ctx, params); err != nil {
		e.logger.InfoWithError(ctx, "failed to write email log entry", err)
	}
}

// personalize substitutes known placeholders with lead fields, falling back
// to generic text when a field is absent.
func personalize(text string, lead store.Lead) string {
	firstName := "Customer"
	if lead.FirstName != nil && strings.TrimSpace(*lead.FirstName) != "" {
		firstName = *lead.FirstName
	}
	vehicle := "our vehicles"
	if lead.VehicleInterest != nil && strings.TrimSpace(*lead.VehicleInterest) != "" {
		vehicle = *lead.VehicleInterest
	}

	replacer := strings.NewReplacer(
		"{{first_name}}", firstName,
		"{{last_name}}", derefOrEmpty(lead.LastName),
		"{{email}}", lead.Email,
		"{{vehicle_interest}}", vehicle,
		"{{phone}}", derefOrEmpty(lead.Phone),
		"{{source}}", derefOrEmpty(lead.Source),
	)
	return replacer.Replace(text)
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func partition(leads []store.Lead, batchSize int) [][]store.Lead {
	if len(leads) == 0 {
		return nil
	}
	batches := make([][]store.Lead, 0, (len(leads)+batchSize-1)/batchSize)
	for start := 0; start < len(leads); start += batchSize {
		end := start + batchSize
		if end > len(leads) {
			end = len(leads)
		}
		batches = append(batches, leads[start:end])
	}
	return batches
}

func sleepBetweenBatches(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
