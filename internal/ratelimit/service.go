package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"outreach-server/internal/clients/redis"
	"outreach-server/internal/observability"
)

// Result represents the outcome of a launch rate limit check
type Result struct {
	Allowed      bool      `json:"allowed"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	ResetAt      time.Time `json:"reset_at"`
	RetryAfterMs int       `json:"retry_after_ms,omitempty"`
}

// Service throttles manual campaign launches with a sliding one-hour window
// in Redis. When Redis is unavailable the launch is allowed: throttling is a
// guard rail, not a correctness requirement.
type Service struct {
	redis  *redis.Client
	logger *observability.Logger
	window time.Duration
	limit  int
}

// NewService creates a launch rate limiter
func NewService(redisClient *redis.Client, logger *observability.Logger, limit int) *Service {
	if limit <= 0 {
		limit = 10
	}
	return &Service{
		redis:  redisClient,
		logger: logger,
		window: time.Hour,
		limit:  limit,
	}
}

// CheckLaunch records a launch attempt for the campaign and reports whether
// it is within the limit.
func (s *Service) CheckLaunch(ctx context.Context, campaignID string) (Result, error) {
	if !s.redis.IsEnabled() {
		return Result{Allowed: true, Limit: s.limit, Remaining: s.limit}, nil
	}

	key := "launch:" + campaignID
	now := time.Now()
	windowStart := now.Add(-s.window)

	if err := s.redis.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10)); err != nil {
		s.logger.InfoWithError(ctx, "failed to trim launch window, allowing launch", err)
		return Result{Allowed: true, Limit: s.limit, Remaining: s.limit}, nil
	}

	count, err := s.redis.ZCard(ctx, key)
	if err != nil {
		s.logger.InfoWithError(ctx, "failed to count launches, allowing launch", err)
		return Result{Allowed: true, Limit: s.limit, Remaining: s.limit}, nil
	}

	if int(count) >= s.limit {
		resetAt := now.Add(s.window)
		retryAfter := s.window
		if oldest, err := s.redis.ZRange(ctx, key, 0, 0); err == nil && len(oldest) > 0 {
			if ts, perr := strconv.ParseInt(oldest[0], 10, 64); perr == nil {
				resetAt = time.UnixMilli(ts).Add(s.window)
				retryAfter = time.Until(resetAt)
				if retryAfter < 0 {
					retryAfter = 0
				}
			}
		}
		return Result{
			Allowed:      false,
			Limit:        s.limit,
			Remaining:    0,
			ResetAt:      resetAt,
			RetryAfterMs: int(retryAfter.Milliseconds()),
		}, nil
	}

	member := strconv.FormatInt(now.UnixMilli(), 10)
	if err := s.redis.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member}); err != nil {
		return Result{}, fmt.Errorf("failed to record launch: %w", err)
	}
	// Let idle keys fall out of Redis on their own.
	if err := s.redis.Expire(ctx, key, s.window+time.Minute); err != nil {
		s.logger.InfoWithError(ctx, "failed to set launch key expiry", err)
	}

	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - int(count) - 1,
		ResetAt:   now.Add(s.window),
	}, nil
}
