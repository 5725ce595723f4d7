package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach-server/internal/clients/mailgun"
	"outreach-server/internal/observability"
	"outreach-server/internal/store"
)

// fakeProvider replays a scripted sequence of responses and errors
type fakeProvider struct {
	responses []mailgun.SendMessageResponse
	errs      []error
	calls     int
}

func (f *fakeProvider) SendMessage(ctx context.Context, params mailgun.SendMessageParams) (mailgun.SendMessageResponse, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], f.errs[i]
}

// fakeLeads returns a fixed lead per email
type fakeLeads struct {
	leads map[string]store.Lead
}

func (f *fakeLeads) GetLeadByEmail(ctx context.Context, email string) (store.Lead, error) {
	lead, ok := f.leads[email]
	if !ok {
		return store.Lead{}, store.ErrNotFound
	}
	return lead, nil
}

func newTestGateway(provider ProviderClient, leads LeadStatusChecker) *Gateway {
	g := New(provider, leads, Config{
		From:       "sales@dealer.example",
		MaxRetries: 3,
	}, observability.NewLogger())
	// No real sleeping in tests.
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return g
}

func repeat(resp mailgun.SendMessageResponse, err error, n int) *fakeProvider {
	f := &fakeProvider{}
	for i := 0; i < n; i++ {
		f.responses = append(f.responses, resp)
		f.errs = append(f.errs, err)
	}
	return f
}

func TestSendSuccess(t *testing.T) {
	provider := repeat(mailgun.SendMessageResponse{StatusCode: 200, MessageID: "m-1"}, nil, 1)
	g := newTestGateway(provider, &fakeLeads{})

	if err := g.Send(context.Background(), "buyer@example.com", "Hi", "<p>hello</p>"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls)
	}
}

func TestSendSuppressedLeadNeverReachesProvider(t *testing.T) {
	provider := repeat(mailgun.SendMessageResponse{StatusCode: 200}, nil, 1)
	leads := &fakeLeads{leads: map[string]store.Lead{
		"bounced@example.com": {Email: "bounced@example.com", Status: store.LeadStatusBounced},
	}}
	g := newTestGateway(provider, leads)

	err := g.Send(context.Background(), "bounced@example.com", "Hi", "<p>hello</p>")
	if !errors.Is(err, ErrSuppressed) {
		t.Fatalf("expected ErrSuppressed, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("suppressed recipient reached the provider (%d calls)", provider.calls)
	}
}

func TestSendInvalidRecipient(t *testing.T) {
	provider := repeat(mailgun.SendMessageResponse{StatusCode: 200}, nil, 1)
	g := newTestGateway(provider, &fakeLeads{})

	for _, to := range []string{"", "   ", "not-an-email"} {
		err := g.Send(context.Background(), to, "Hi", "<p>hello</p>")
		if !errors.Is(err, ErrInvalidRecipient) {
			t.Errorf("Send(%q): expected ErrInvalidRecipient, got %v", to, err)
		}
	}
	if provider.calls != 0 {
		t.Errorf("invalid recipient reached the provider (%d calls)", provider.calls)
	}
}

func TestSendTransientStatusExhaustsToProviderError(t *testing.T) {
	provider := repeat(mailgun.SendMessageResponse{StatusCode: 500, Body: "boom"}, nil, 3)
	g := newTestGateway(provider, &fakeLeads{})

	err := g.Send(context.Background(), "buyer@example.com", "Hi", "<p>hello</p>")

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if provErr.StatusCode != 500 {
		t.Errorf("expected last status 500, got %d", provErr.StatusCode)
	}
	if provider.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", provider.calls)
	}
}

func TestSendTransportErrorExhaustsToTransportError(t *testing.T) {
	transportErr := errors.New("connection reset")
	provider := repeat(mailgun.SendMessageResponse{}, transportErr, 3)
	g := newTestGateway(provider, &fakeLeads{})

	err := g.Send(context.Background(), "buyer@example.com", "Hi", "<p>hello</p>")

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		t.Fatalf("transport exhaustion must not produce a ProviderError, got %v", err)
	}
	if !errors.Is(err, transportErr) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if provider.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", provider.calls)
	}
}

func TestSendRecoversAfterTransientFailure(t *testing.T) {
	provider := &fakeProvider{
		responses: []mailgun.SendMessageResponse{
			{StatusCode: 429},
			{StatusCode: 200, MessageID: "m-2"},
		},
		errs: []error{nil, nil},
	}
	g := newTestGateway(provider, &fakeLeads{})

	if err := g.Send(context.Background(), "buyer@example.com", "Hi", "<p>hello</p>"); err != nil {
		t.Fatalf("expected recovery on second attempt, got %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", provider.calls)
	}
}

func TestSendPermanentStatusDoesNotRetry(t *testing.T) {
	provider := repeat(mailgun.SendMessageResponse{StatusCode: 400, Body: "bad request"}, nil, 3)
	g := newTestGateway(provider, &fakeLeads{})

	err := g.Send(context.Background(), "buyer@example.com", "Hi", "<p>hello</p>")

	var provErr *ProviderError
	if !errors.As(err, &provErr) || provErr.StatusCode != 400 {
		t.Fatalf("expected ProviderError 400, got %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("permanent rejection must not retry, got %d attempts", provider.calls)
	}
}

func TestSendAuthFailureArmsCooldown(t *testing.T) {
	provider := repeat(mailgun.SendMessageResponse{StatusCode: 401}, nil, 2)
	g := newTestGateway(provider, &fakeLeads{})

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	err := g.Send(context.Background(), "buyer@example.com", "Hi", "<p>hello</p>")
	var provErr *ProviderError
	if !errors.As(err, &provErr) || provErr.StatusCode != 401 {
		t.Fatalf("expected ProviderError 401, got %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("401 must not retry, got %d attempts", provider.calls)
	}

	// Within the cooldown window every send short-circuits.
	now = now.Add(time.Minute)
	err = g.Send(context.Background(), "other@example.com", "Hi", "<p>hello</p>")
	if !errors.Is(err, ErrAuthCooldown) {
		t.Fatalf("expected ErrAuthCooldown, got %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("cooldown send reached the provider (%d calls)", provider.calls)
	}

	// After the window elapses sends go through again.
	now = now.Add(10 * time.Minute)
	_ = g.Send(context.Background(), "third@example.com", "Hi", "<p>hello</p>")
	if provider.calls != 2 {
		t.Errorf("expected provider call after cooldown elapsed, got %d", provider.calls)
	}
}
