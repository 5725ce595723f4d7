package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"outreach-server/internal/observability"
)

// Scheduler drives the polling loop. Each tick re-arms a timer at the
// configured interval plus a random jitter so multiple instances sharing a
// database drift apart instead of polling in lockstep.
type Scheduler struct {
	service      *Service
	logger       *observability.Logger
	tickInterval time.Duration
	tickJitter   time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
	running      atomic.Bool
}

// NewScheduler creates the campaign scheduler loop
func NewScheduler(service *Service, logger *observability.Logger, tickInterval, tickJitter time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	if tickJitter < 0 {
		tickJitter = 0
	}
	return &Scheduler{
		service:      service,
		logger:       logger,
		tickInterval: tickInterval,
		tickJitter:   tickJitter,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the scheduler loop. It blocks until the context is cancelled
// or Stop is called, so callers run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn(ctx, "Campaign scheduler already running, ignoring second Start")
		return
	}
	defer s.running.Store(false)

	s.logger.Info(ctx, fmt.Sprintf("Starting campaign scheduler with %v interval (jitter up to %v)", s.tickInterval, s.tickJitter))

	// Run a tick immediately on start
	s.service.ProcessPendingCampaigns(ctx)

	timer := time.NewTimer(s.nextTickDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Campaign scheduler stopping: context cancelled")
			return
		case <-s.stopChan:
			s.logger.Info(ctx, "Campaign scheduler stopping: stop signal received")
			return
		case <-timer.C:
			s.service.ProcessPendingCampaigns(ctx)
			timer.Reset(s.nextTickDelay())
		}
	}
}

// Stop signals the scheduler to stop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) nextTickDelay() time.Duration {
	delay := s.tickInterval
	if s.tickJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(s.tickJitter)))
	}
	return delay
}
