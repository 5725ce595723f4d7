package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach-server/internal/observability"
	"outreach-server/internal/schedule"
	"outreach-server/internal/store"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSchedule indicates a schedule request that cannot be
	// satisfied: unknown type, missing start time, or a bad recurrence.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
	// ErrNoLeads indicates a campaign with no recipients to send to.
	ErrNoLeads = errors.New("campaign has no leads")
)

// ScheduleRequest carries a schedule configuration from the API layer
type ScheduleRequest struct {
	ScheduleType     string     `json:"schedule_type"`
	ScheduledStart   *time.Time `json:"scheduled_start,omitempty"`
	RecurringPattern *string    `json:"recurring_pattern,omitempty"`
	RecurringDays    []int      `json:"recurring_days,omitempty"`
	RecurringTime    *string    `json:"recurring_time,omitempty"`
}

// ServiceConfig holds the engine tunables resolved from configuration
type ServiceConfig struct {
	LeaseDuration       time.Duration
	FailureBackoff      time.Duration
	BatchSize           int
	Concurrency         int
	DelayBetweenBatches time.Duration
}

// Service coordinates campaign scheduling and execution. It owns claim
// acquisition, delegates sending to the executor, and reschedules recurring
// campaigns after each run.
type Service struct {
	campaigns CampaignStore
	leads     LeadStore
	executor  *Executor
	registry  *Registry
	events    EventPublisher
	logger    *observability.Logger
	cfg       ServiceConfig

	now func() time.Time
}

// NewService creates the campaign engine service
func NewService(campaigns CampaignStore, leads LeadStore, executor *Executor, registry *Registry, events EventPublisher, logger *observability.Logger, cfg ServiceConfig) *Service {
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = 10 * time.Minute
	}
	return &Service{
		campaigns: campaigns,
		leads:     leads,
		executor:  executor,
		registry:  registry,
		events:    events,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Registry exposes the in-flight execution registry for the API layer
func (s *Service) Registry() *Registry {
	return s.registry
}

// ScheduleCampaign validates a schedule request, computes the first fire
// time, and persists the configuration. The campaign transitions to
// scheduled and becomes visible to the polling loop.
func (s *Service) ScheduleCampaign(ctx context.Context, campaignID uuid.UUID, req ScheduleRequest) (store.Campaign, error) {
	now := s.now()

	var next time.Time
	switch req.ScheduleType {
	case store.ScheduleTypeImmediate:
		next = now
	case store.ScheduleTypeScheduled:
		if req.ScheduledStart == nil {
			return store.Campaign{}, fmt.Errorf("%w: scheduled_start is required for scheduled campaigns", ErrInvalidSchedule)
		}
		next = *req.ScheduledStart
	case store.ScheduleTypeRecurring:
		if req.RecurringPattern == nil || !schedule.ValidPattern(*req.RecurringPattern) {
			return store.Campaign{}, fmt.Errorf("%w: recurring_pattern must be daily, weekly, or monthly", ErrInvalidSchedule)
		}
		if req.RecurringTime == nil {
			return store.Campaign{}, fmt.Errorf("%w: recurring_time is required for recurring campaigns", ErrInvalidSchedule)
		}
		timeOfDay, err := schedule.ParseTimeOfDay(*req.RecurringTime)
		if err != nil {
			return store.Campaign{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		fire, err := schedule.NextFireTime(*req.RecurringPattern, req.RecurringDays, timeOfDay, now)
		if err != nil {
			return store.Campaign{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		next = fire
	default:
		return store.Campaign{}, fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, req.ScheduleType)
	}

	campaign, err := s.campaigns.UpdateCampaignSchedule(ctx, campaignID, store.UpdateCampaignScheduleParams{
		ScheduleType:     req.ScheduleType,
		ScheduledStart:   req.ScheduledStart,
		RecurringPattern: req.RecurringPattern,
		RecurringDays:    store.IntArray(req.RecurringDays),
		RecurringTime:    req.RecurringTime,
		NextExecution:    next,
	})
	if err != nil {
		return store.Campaign{}, err
	}

	s.logger.Info(ctx, fmt.Sprintf("Campaign %s scheduled (%s), next execution %s",
		campaignID, req.ScheduleType, next.UTC().Format(time.RFC3339)))

	if s.events != nil {
		if err := s.events.PublishCampaignScheduled(ctx, campaignID, req.ScheduleType, next); err != nil {
			s.logger.InfoWithError(ctx, "failed to publish campaign scheduled event", err)
		}
	}
	return campaign, nil
}

// ExecuteCampaign runs one full send pass for a campaign. It is used both
// by the polling loop after a successful claim and by the manual launch
// endpoint.
func (s *Service) ExecuteCampaign(ctx context.Context, campaignID uuid.UUID, testMode bool) (ExecutionResult, error) {
	campaign, err := s.campaigns.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return ExecutionResult{}, err
	}

	templates, err := s.campaigns.GetCampaignTemplates(ctx, campaignID)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to load campaign templates: %w", err)
	}

	leads, err := s.leads.ListLeadsForCampaign(ctx, campaignID)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to load campaign leads: %w", err)
	}
	if len(leads) == 0 {
		return ExecutionResult{}, ErrNoLeads
	}

	executionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.registry.Add(ActiveExecution{
		ExecutionID: executionID,
		CampaignID:  campaignID,
		StartedAt:   s.now(),
		TestMode:    testMode,
	}, cancel)
	defer s.registry.Remove(executionID)

	opts := ExecutorOptions{
		BatchSize:           s.cfg.BatchSize,
		Concurrency:         s.cfg.Concurrency,
		DelayBetweenBatches: s.cfg.DelayBetweenBatches,
		TestMode:            testMode,
	}
	result := s.executor.Run(runCtx, campaign, leads, templates, 0, executionID, opts)

	if !testMode {
		if err := s.campaigns.RecordCampaignExecution(ctx, campaignID, result.EmailsSent, result.EmailsFailed, s.now()); err != nil {
			s.logger.InfoWithError(ctx, "failed to record campaign execution counters", err)
		}
	}

	if s.events != nil {
		if err := s.events.PublishCampaignExecuted(ctx, campaignID, executionID, result.EmailsSent, result.EmailsFailed); err != nil {
			s.logger.InfoWithError(ctx, "failed to publish campaign execution event", err)
		}
	}

	return result, nil
}

// ProcessPendingCampaigns is one tick of the polling loop: find due
// campaigns, claim each with a lease, execute the claimed ones, and compute
// their next fire time. Claim failures are silent; another instance got
// there first.
func (s *Service) ProcessPendingCampaigns(ctx context.Context) {
	now := s.now()

	due, err := s.campaigns.GetDueCampaigns(ctx, now)
	if err != nil {
		s.logger.InfoWithError(ctx, "failed to query due campaigns", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info(ctx, fmt.Sprintf("Found %d due campaigns", len(due)))

	for _, campaign := range due {
		if ctx.Err() != nil {
			return
		}
		s.processDueCampaign(ctx, campaign)
	}
}

func (s *Service) processDueCampaign(ctx context.Context, campaign store.Campaign) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: campaign.ID.String()})

	now := s.now()
	claimed, err := s.campaigns.ClaimCampaign(ctx, campaign.ID, now, s.cfg.LeaseDuration)
	if err != nil {
		s.logger.InfoWithError(ctx, "failed to claim campaign", err)
		return
	}
	if !claimed {
		return
	}

	// Read back after claiming: the full lease must be visible before we
	// act on it. A marker shorter than now+lease means another writer moved
	// it after our claim, so treat the claim as lost.
	fresh, err := s.campaigns.GetCampaignByID(ctx, campaign.ID)
	if err != nil {
		s.logger.InfoWithError(ctx, "failed to confirm campaign claim", err)
		return
	}
	if fresh.NextExecution == nil || fresh.NextExecution.Before(now.Add(s.cfg.LeaseDuration)) {
		s.logger.Info(ctx, "campaign claim not confirmed, skipping")
		return
	}

	s.executeClaimed(ctx, fresh)
}

// executeClaimed runs a claimed campaign and reschedules it. A panic inside
// execution is contained here so one bad campaign cannot kill the loop.
func (s *Service) executeClaimed(ctx context.Context, campaign store.Campaign) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic during campaign execution", fmt.Errorf("%v", r))
			s.deferCampaign(ctx, campaign.ID)
		}
	}()

	result, err := s.ExecuteCampaign(ctx, campaign.ID, false)
	if err != nil {
		s.logger.InfoWithError(ctx, "campaign execution failed", err)
		s.deferCampaign(ctx, campaign.ID)
		return
	}
	// An execution that produced a result reschedules normally even when
	// every send failed; counters already record the outcome.
	_ = result

	s.reschedule(ctx, campaign)
}

// reschedule computes the campaign's next fire time after a completed run.
// One-shot campaigns are marked completed; recurring ones advance.
func (s *Service) reschedule(ctx context.Context, campaign store.Campaign) {
	if campaign.ScheduleType != store.ScheduleTypeRecurring {
		if err := s.campaigns.SetCampaignNextExecution(ctx, campaign.ID, nil); err != nil {
			s.logger.InfoWithError(ctx, "failed to clear next execution", err)
		}
		if err := s.campaigns.UpdateCampaignStatus(ctx, campaign.ID, store.CampaignStatusCompleted); err != nil {
			s.logger.InfoWithError(ctx, "failed to mark campaign completed", err)
		}
		return
	}

	next, err := s.nextRecurringFire(campaign)
	if err != nil {
		s.logger.InfoWithError(ctx, "failed to compute next fire time", err)
		s.deferCampaign(ctx, campaign.ID)
		return
	}
	if err := s.campaigns.SetCampaignNextExecution(ctx, campaign.ID, &next); err != nil {
		s.logger.InfoWithError(ctx, "failed to set next execution", err)
		return
	}
	s.logger.Info(ctx, fmt.Sprintf("Campaign rescheduled, next execution %s", next.UTC().Format(time.RFC3339)))
}

func (s *Service) nextRecurringFire(campaign store.Campaign) (time.Time, error) {
	if campaign.RecurringPattern == nil || campaign.RecurringTime == nil {
		return time.Time{}, fmt.Errorf("recurring campaign %s is missing pattern or time", campaign.ID)
	}
	timeOfDay, err := schedule.ParseTimeOfDay(*campaign.RecurringTime)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.NextFireTime(*campaign.RecurringPattern, campaign.RecurringDays, timeOfDay, s.now())
}

// deferCampaign pushes a campaign's next execution into the future after a
// failure so the loop does not retry it on every tick.
func (s *Service) deferCampaign(ctx context.Context, campaignID uuid.UUID) {
	retryAt := s.now().Add(s.cfg.FailureBackoff)
	if err := s.campaigns.SetCampaignNextExecution(ctx, campaignID, &retryAt); err != nil {
		s.logger.InfoWithError(ctx, "failed to defer failed campaign", err)
	}
}
