package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"outreach-server/internal/clients/mailgun"
	"outreach-server/internal/observability"
	"outreach-server/internal/store"
)

const (
	cooldownLogInterval = 60 * time.Second
	retryJitterBound    = 150 * time.Millisecond
)

// ProviderClient is the network-level delivery client
type ProviderClient interface {
	SendMessage(ctx context.Context, params mailgun.SendMessageParams) (mailgun.SendMessageResponse, error)
}

// LeadStatusChecker looks up a recipient's stored status for the
// suppression guard
type LeadStatusChecker interface {
	GetLeadByEmail(ctx context.Context, email string) (store.Lead, error)
}

// Config holds gateway tunables
type Config struct {
	From           string
	ReplyTo        string
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	AuthCooldown   time.Duration
	BodyMaxBytes   int
	TestMode       bool
}

// Gateway is the reliable wrapper around the delivery provider: suppression
// guard, auth-failure cooldown, bounded retries with backoff and jitter, and
// payload shaping. All mutable state is owned by the instance.
type Gateway struct {
	provider ProviderClient
	leads    LeadStatusChecker
	logger   *observability.Logger
	config   Config

	mu            sync.Mutex
	cooldownUntil time.Time
	lastCooldownLog time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a delivery gateway
func New(provider ProviderClient, leads LeadStatusChecker, config Config, logger *observability.Logger) *Gateway {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 300 * time.Millisecond
	}
	if config.RetryMaxDelay <= 0 {
		config.RetryMaxDelay = 1500 * time.Millisecond
	}
	if config.AuthCooldown <= 0 {
		config.AuthCooldown = 5 * time.Minute
	}
	if config.BodyMaxBytes <= 0 {
		config.BodyMaxBytes = 500000
	}

	return &Gateway{
		provider: provider,
		leads:    leads,
		logger:   logger,
		config:   config,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Send delivers one message. A nil error means the provider accepted it.
// Failure classes are distinguishable by the caller: ErrSuppressed,
// ErrAuthCooldown and ErrInvalidRecipient fail fast; a *ProviderError is the
// provider's last non-2xx reply after retries; any other error is a transport
// failure after retries.
func (g *Gateway) Send(ctx context.Context, to, subject, html string) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "recipient", Value: to},
	)

	to = strings.TrimSpace(to)
	if to == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}

	// Suppression guard runs before any network I/O.
	if err := g.checkSuppression(ctx, to); err != nil {
		return err
	}

	if err := g.checkAuthCooldown(ctx); err != nil {
		return err
	}

	params := mailgun.SendMessageParams{
		From:     g.config.From,
		To:       to,
		Subject:  subject,
		HTML:     CapHTML(html, g.config.BodyMaxBytes),
		ReplyTo:  g.config.ReplyTo,
		TestMode: g.config.TestMode,
	}
	params.Text = PlainText(params.HTML)

	var lastTransportErr error
	var lastResponse *mailgun.SendMessageResponse

	for attempt := 1; attempt <= g.config.MaxRetries; attempt++ {
		resp, err := g.provider.SendMessage(ctx, params)
		if err != nil {
			lastTransportErr = err
			lastResponse = nil
			if attempt < g.config.MaxRetries {
				if werr := g.backoff(ctx, attempt); werr != nil {
					return werr
				}
				continue
			}
			break
		}

		if resp.Accepted() {
			return nil
		}

		if resp.StatusCode == 401 {
			g.armAuthCooldown(ctx)
			return &ProviderError{StatusCode: resp.StatusCode, Body: resp.Body}
		}

		if !transientStatus(resp.StatusCode) {
			// Permanent provider rejection, no retry.
			return &ProviderError{StatusCode: resp.StatusCode, Body: resp.Body}
		}

		lastTransportErr = nil
		lastResponse = &resp
		if attempt < g.config.MaxRetries {
			if werr := g.backoff(ctx, attempt); werr != nil {
				return werr
			}
		}
	}

	// Exhausted retries. A transient provider status comes back as the last
	// failing reply; a transport failure propagates as the last error.
	if lastResponse != nil {
		return &ProviderError{StatusCode: lastResponse.StatusCode, Body: lastResponse.Body}
	}
	return fmt.Errorf("send failed after %d attempts: %w", g.config.MaxRetries, lastTransportErr)
}

// checkSuppression fails fast when the recipient's stored status is in the
// suppression set. Unknown recipients are allowed through.
func (g *Gateway) checkSuppression(ctx context.Context, to string) error {
	lead, err := g.leads.GetLeadByEmail(ctx, to)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		// A status lookup failure must not block delivery.
		g.logger.InfoWithError(ctx, "suppression lookup failed, allowing send", err)
		return nil
	}
	if store.IsSuppressedLeadStatus(lead.Status) {
		return fmt.Errorf("%w: lead status is %s", ErrSuppressed, lead.Status)
	}
	return nil
}

func (g *Gateway) checkAuthCooldown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Before(g.cooldownUntil) {
		// Log at most once per minute so a hot loop cannot flood the log.
		if now.Sub(g.lastCooldownLog) >= cooldownLogInterval {
			g.lastCooldownLog = now
			g.logger.Warn(ctx, fmt.Sprintf("delivery auth cooldown active until %s, skipping sends",
				g.cooldownUntil.Format(time.RFC3339)))
		}
		return ErrAuthCooldown
	}
	return nil
}

func (g *Gateway) armAuthCooldown(ctx context.Context) {
	g.mu.Lock()
	g.cooldownUntil = g.now().Add(g.config.AuthCooldown)
	until := g.cooldownUntil
	g.mu.Unlock()

	g.logger.Error(ctx, fmt.Sprintf("provider rejected credentials, cooling down sends until %s",
		until.Format(time.RFC3339)), ErrAuthCooldown)
}

// backoff sleeps min(maxDelay, base*2^(attempt-1)) plus up to 150ms of jitter
func (g *Gateway) backoff(ctx context.Context, attempt int) error {
	delay := g.config.RetryBaseDelay << (attempt - 1)
	if delay > g.config.RetryMaxDelay {
		delay = g.config.RetryMaxDelay
	}
	delay += time.Duration(rand.Int63n(int64(retryJitterBound)))
	return g.sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
