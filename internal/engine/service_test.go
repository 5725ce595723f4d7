package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"outreach-server/internal/observability"
	"outreach-server/internal/store"

	"github.com/google/uuid"
)

type fakeCampaignStore struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]store.Campaign
	templates map[uuid.UUID][]store.CampaignTemplate

	claimDenied bool
	claimCalls  int
	// When nonzero the claimed marker lands at now+claimLeaseOverride
	// instead of the requested lease, as if a competing writer moved it
	// between the claim and the read-back.
	claimLeaseOverride time.Duration
	execRecords        []execRecord
	statuses           map[uuid.UUID]string
}

type execRecord struct {
	CampaignID uuid.UUID
	Sent       int
	Failed     int
}

func newFakeCampaignStore() *fakeCampaignStore {
	return &fakeCampaignStore{
		campaigns: make(map[uuid.UUID]store.Campaign),
		templates: make(map[uuid.UUID][]store.CampaignTemplate),
		statuses:  make(map[uuid.UUID]string),
	}
}

func (f *fakeCampaignStore) put(c store.Campaign, templates []store.CampaignTemplate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns[c.ID] = c
	f.templates[c.ID] = templates
}

func (f *fakeCampaignStore) GetDueCampaigns(_ context.Context, now time.Time) ([]store.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []store.Campaign
	for _, c := range f.campaigns {
		if c.Status == store.CampaignStatusScheduled && c.IsActive &&
			c.NextExecution != nil && !c.NextExecution.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (f *fakeCampaignStore) ClaimCampaign(_ context.Context, campaignID uuid.UUID, now time.Time, leaseDuration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	if f.claimDenied {
		return false, nil
	}
	c, ok := f.campaigns[campaignID]
	if !ok || c.NextExecution == nil || c.NextExecution.After(now) {
		return false, nil
	}
	if f.claimLeaseOverride != 0 {
		leaseDuration = f.claimLeaseOverride
	}
	lease := now.Add(leaseDuration)
	c.NextExecution = &lease
	f.campaigns[campaignID] = c
	return true, nil
}

func (f *fakeCampaignStore) GetCampaignByID(_ context.Context, campaignID uuid.UUID) (store.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return store.Campaign{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCampaignStore) GetCampaignTemplates(_ context.Context, campaignID uuid.UUID) ([]store.CampaignTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.templates[campaignID], nil
}

func (f *fakeCampaignStore) UpdateCampaignSchedule(_ context.Context, campaignID uuid.UUID, params store.UpdateCampaignScheduleParams) (store.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return store.Campaign{}, store.ErrNotFound
	}
	next := params.NextExecution
	c.ScheduleType = params.ScheduleType
	c.ScheduledStart = params.ScheduledStart
	c.RecurringPattern = params.RecurringPattern
	c.RecurringDays = params.RecurringDays
	c.RecurringTime = params.RecurringTime
	c.NextExecution = &next
	c.Status = store.CampaignStatusScheduled
	c.IsActive = true
	f.campaigns[campaignID] = c
	return c, nil
}

func (f *fakeCampaignStore) SetCampaignNextExecution(_ context.Context, campaignID uuid.UUID, next *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaigns[campaignID]
	c.NextExecution = next
	f.campaigns[campaignID] = c
	return nil
}

func (f *fakeCampaignStore) UpdateCampaignStatus(_ context.Context, campaignID uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaigns[campaignID]
	c.Status = status
	f.campaigns[campaignID] = c
	f.statuses[campaignID] = status
	return nil
}

func (f *fakeCampaignStore) RecordCampaignExecution(_ context.Context, campaignID uuid.UUID, sent, failed int, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execRecords = append(f.execRecords, execRecord{CampaignID: campaignID, Sent: sent, Failed: failed})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (f *fakePublisher) PublishCampaignScheduled(_ context.Context, _ uuid.UUID, scheduleType string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, "scheduled:"+scheduleType)
	return nil
}

func (f *fakePublisher) PublishCampaignExecuted(_ context.Context, campaignID uuid.UUID, executionID string, _, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, executionID)
	return nil
}

func newTestService(campaigns *fakeCampaignStore, leads *fakeLeadStore, publisher EventPublisher) *Service {
	logger := observability.NewLogger()
	executor := NewExecutor(newFakeSender(), leads, &fakeLogWriter{}, nil, logger)
	executor.sleep = func(context.Context, time.Duration) {}
	return NewService(campaigns, leads, executor, NewRegistry(), publisher, logger, ServiceConfig{
		LeaseDuration:  2 * time.Minute,
		FailureBackoff: 10 * time.Minute,
		BatchSize:      50,
		Concurrency:    10,
	})
}

func scheduledCampaign(next time.Time) store.Campaign {
	return store.Campaign{
		ID:            uuid.New(),
		Name:          "Service Reminder",
		Status:        store.CampaignStatusScheduled,
		ScheduleType:  store.ScheduleTypeScheduled,
		IsActive:      true,
		NextExecution: &next,
	}
}

func TestScheduleCampaignImmediate(t *testing.T) {
	campaigns := newFakeCampaignStore()
	c := store.Campaign{ID: uuid.New(), Status: store.CampaignStatusDraft}
	campaigns.put(c, nil)

	service := newTestService(campaigns, newFakeLeadStore(), &fakePublisher{})
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	updated, err := service.ScheduleCampaign(context.Background(), c.ID, ScheduleRequest{
		ScheduleType: store.ScheduleTypeImmediate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.NextExecution == nil || !updated.NextExecution.Equal(now) {
		t.Fatalf("expected next execution %v, got %v", now, updated.NextExecution)
	}
	if updated.Status != store.CampaignStatusScheduled {
		t.Fatalf("expected scheduled status, got %q", updated.Status)
	}
}

func TestScheduleCampaignRecurringComputesFirstFire(t *testing.T) {
	campaigns := newFakeCampaignStore()
	c := store.Campaign{ID: uuid.New(), Status: store.CampaignStatusDraft}
	campaigns.put(c, nil)

	service := newTestService(campaigns, newFakeLeadStore(), &fakePublisher{})
	// Monday 10:00 UTC.
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	pattern := store.RecurringPatternWeekly
	at := "09:00"
	updated, err := service.ScheduleCampaign(context.Background(), c.ID, ScheduleRequest{
		ScheduleType:     store.ScheduleTypeRecurring,
		RecurringPattern: &pattern,
		RecurringDays:    []int{1, 3}, // Monday, Wednesday
		RecurringTime:    &at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	if updated.NextExecution == nil || !updated.NextExecution.Equal(want) {
		t.Fatalf("expected next execution %v, got %v", want, updated.NextExecution)
	}
}

func TestScheduleCampaignRejectsBadRequests(t *testing.T) {
	campaigns := newFakeCampaignStore()
	c := store.Campaign{ID: uuid.New()}
	campaigns.put(c, nil)
	service := newTestService(campaigns, newFakeLeadStore(), &fakePublisher{})

	cases := []ScheduleRequest{
		{ScheduleType: "hourly"},
		{ScheduleType: store.ScheduleTypeScheduled},
		{ScheduleType: store.ScheduleTypeRecurring},
	}
	for _, req := range cases {
		if _, err := service.ScheduleCampaign(context.Background(), c.ID, req); !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("expected ErrInvalidSchedule for %+v, got %v", req, err)
		}
	}
}

func TestExecuteCampaignRecordsCountersAndPublishes(t *testing.T) {
	campaigns := newFakeCampaignStore()
	c := scheduledCampaign(time.Now())
	campaigns.put(c, testTemplates())

	leads := newFakeLeadStore()
	leads.leads = []store.Lead{leadWith("a@example.com"), leadWith("b@example.com")}

	publisher := &fakePublisher{}
	service := newTestService(campaigns, leads, publisher)

	result, err := service.ExecuteCampaign(context.Background(), c.ID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.EmailsSent != 2 {
		t.Fatalf("expected 2 sends, got %+v", result)
	}
	if len(campaigns.execRecords) != 1 || campaigns.execRecords[0].Sent != 2 {
		t.Fatalf("expected one execution record with 2 sent, got %+v", campaigns.execRecords)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if len(service.Registry().List()) != 0 {
		t.Fatal("expected registry to be empty after execution")
	}
}

func TestExecuteCampaignTestModeSkipsCounters(t *testing.T) {
	campaigns := newFakeCampaignStore()
	c := scheduledCampaign(time.Now())
	campaigns.put(c, testTemplates())

	leads := newFakeLeadStore()
	leads.leads = []store.Lead{leadWith("a@example.com"), leadWith("b@example.com")}

	service := newTestService(campaigns, leads, &fakePublisher{})
	result, err := service.ExecuteCampaign(context.Background(), c.ID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EmailsSent != 1 {
		t.Fatalf("expected 1 test send, got %d", result.EmailsSent)
	}
	if len(campaigns.execRecords) != 0 {
		t.Fatalf("test mode must not touch campaign counters, got %+v", campaigns.execRecords)
	}
}

func TestExecuteCampaignWithoutLeads(t *testing.T) {
	campaigns := newFakeCampaignStore()
	c := scheduledCampaign(time.Now())
	campaigns.put(c, testTemplates())

	service := newTestService(campaigns, newFakeLeadStore(), &fakePublisher{})
	if _, err := service.ExecuteCampaign(context.Background(), c.ID, false); !errors.Is(err, ErrNoLeads) {
		t.Fatalf("expected ErrNoLeads, got %v", err)
	}
}

func TestProcessPendingCampaignsClaimsAndCompletesOneShot(t *testing.T) {
	campaigns := newFakeCampaignStore()
	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	c := scheduledCampaign(due)
	campaigns.put(c, testTemplates())

	leads := newFakeLeadStore()
	leads.leads = []store.Lead{leadWith("a@example.com")}

	service := newTestService(campaigns, leads, &fakePublisher{})
	service.now = func() time.Time { return due.Add(time.Minute) }

	service.ProcessPendingCampaigns(context.Background())

	final, _ := campaigns.GetCampaignByID(context.Background(), c.ID)
	if final.Status != store.CampaignStatusCompleted {
		t.Fatalf("expected completed status, got %q", final.Status)
	}
	if final.NextExecution != nil {
		t.Fatalf("expected next execution cleared, got %v", final.NextExecution)
	}
	if len(campaigns.execRecords) != 1 {
		t.Fatalf("expected one execution, got %d", len(campaigns.execRecords))
	}
}

func TestProcessPendingCampaignsReschedulesRecurring(t *testing.T) {
	campaigns := newFakeCampaignStore()
	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	c := scheduledCampaign(due)
	c.ScheduleType = store.ScheduleTypeRecurring
	pattern := store.RecurringPatternDaily
	at := "09:00"
	c.RecurringPattern = &pattern
	c.RecurringTime = &at
	campaigns.put(c, testTemplates())

	leads := newFakeLeadStore()
	leads.leads = []store.Lead{leadWith("a@example.com")}

	service := newTestService(campaigns, leads, &fakePublisher{})
	now := due.Add(time.Minute)
	service.now = func() time.Time { return now }

	service.ProcessPendingCampaigns(context.Background())

	final, _ := campaigns.GetCampaignByID(context.Background(), c.ID)
	if final.Status != store.CampaignStatusScheduled {
		t.Fatalf("recurring campaign must stay scheduled, got %q", final.Status)
	}
	want := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	if final.NextExecution == nil || !final.NextExecution.Equal(want) {
		t.Fatalf("expected next execution %v, got %v", want, final.NextExecution)
	}
}

func TestProcessPendingCampaignsSkipsLostClaims(t *testing.T) {
	campaigns := newFakeCampaignStore()
	campaigns.claimDenied = true
	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	c := scheduledCampaign(due)
	campaigns.put(c, testTemplates())

	service := newTestService(campaigns, newFakeLeadStore(), &fakePublisher{})
	service.now = func() time.Time { return due.Add(time.Minute) }

	service.ProcessPendingCampaigns(context.Background())

	if len(campaigns.execRecords) != 0 {
		t.Fatalf("expected no executions when claim is lost, got %d", len(campaigns.execRecords))
	}
	if campaigns.claimCalls != 1 {
		t.Fatalf("expected exactly one claim attempt, got %d", campaigns.claimCalls)
	}
}

func TestProcessPendingCampaignsSkipsShortenedLease(t *testing.T) {
	campaigns := newFakeCampaignStore()
	campaigns.claimLeaseOverride = 30 * time.Second
	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	c := scheduledCampaign(due)
	campaigns.put(c, testTemplates())

	leads := newFakeLeadStore()
	leads.leads = []store.Lead{leadWith("a@example.com")}

	service := newTestService(campaigns, leads, &fakePublisher{})
	service.now = func() time.Time { return due.Add(time.Minute) }

	service.ProcessPendingCampaigns(context.Background())

	// The read-back shows a marker short of the full lease, so the claim
	// must count as lost and nothing may execute.
	if len(campaigns.execRecords) != 0 {
		t.Fatalf("expected no executions for a shortened lease, got %d", len(campaigns.execRecords))
	}
	if campaigns.claimCalls != 1 {
		t.Fatalf("expected one claim attempt, got %d", campaigns.claimCalls)
	}
}

func TestProcessPendingCampaignsDefersFailures(t *testing.T) {
	campaigns := newFakeCampaignStore()
	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	c := scheduledCampaign(due)
	// No leads provisioned: execution fails and the campaign is deferred.
	campaigns.put(c, testTemplates())

	service := newTestService(campaigns, newFakeLeadStore(), &fakePublisher{})
	now := due.Add(time.Minute)
	service.now = func() time.Time { return now }

	service.ProcessPendingCampaigns(context.Background())

	final, _ := campaigns.GetCampaignByID(context.Background(), c.ID)
	if final.Status == store.CampaignStatusCompleted {
		t.Fatal("failed campaign must not be marked completed")
	}
	want := now.Add(10 * time.Minute)
	if final.NextExecution == nil || !final.NextExecution.Equal(want) {
		t.Fatalf("expected failure backoff to %v, got %v", want, final.NextExecution)
	}
}

func TestClaimCampaignIsExclusive(t *testing.T) {
	campaigns := newFakeCampaignStore()
	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	c := scheduledCampaign(due)
	campaigns.put(c, nil)

	now := due.Add(time.Minute)
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := campaigns.ClaimCampaign(context.Background(), c.ID, now, 2*time.Minute)
			if err != nil {
				t.Errorf("claim error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
}
