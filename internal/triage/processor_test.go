package triage

import (
	"context"
	"testing"

	"outreach-server/internal/observability"
	"outreach-server/internal/store"
)

type fakeLeadUpdater struct {
	statuses map[string]string
}

func (f *fakeLeadUpdater) UpdateLeadStatusByEmail(_ context.Context, email, status string) error {
	f.statuses[email] = status
	return nil
}

func TestProcessReplyKeywordFallback(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantIntent string
		wantStatus string
	}{
		{"unsubscribe request", "Please unsubscribe me from these emails", "unsubscribe", store.LeadStatusUnsubscribed},
		{"declined", "Not interested, thanks", "not_interested", store.LeadStatusResponded},
		{"interested", "I'd love a test drive this weekend", "interested", store.LeadStatusResponded},
		{"unrelated", "Out of office until Monday", "other", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			leads := &fakeLeadUpdater{statuses: make(map[string]string)}
			// nil client forces the keyword path.
			processor := NewProcessor(nil, leads, observability.NewLogger())

			classification, err := processor.ProcessReply(context.Background(), "lead@example.com", tc.body)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if classification.Intent != tc.wantIntent {
				t.Fatalf("expected intent %q, got %q", tc.wantIntent, classification.Intent)
			}
			got := leads.statuses["lead@example.com"]
			if got != tc.wantStatus {
				t.Fatalf("expected status %q, got %q", tc.wantStatus, got)
			}
		})
	}
}
