package mailgun

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"outreach-server/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("key-test", "mg.example.com", srv.URL, observability.NewLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client, srv
}

func TestSendMessagePostsFormWithBasicAuth(t *testing.T) {
	var gotPath, gotUser, gotFrom, gotTo string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		r.ParseForm()
		gotFrom = r.PostFormValue("from")
		gotTo = r.PostFormValue("to")
		json.NewEncoder(w).Encode(map[string]string{"id": "<msg-1@mg.example.com>", "message": "Queued. Thank you."})
	})

	resp, err := client.SendMessage(context.Background(), SendMessageParams{
		From:    "sales@mg.example.com",
		To:      "lead@example.com",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Accepted() {
		t.Fatalf("expected accepted response, got status %d", resp.StatusCode)
	}
	if resp.MessageID != "<msg-1@mg.example.com>" {
		t.Fatalf("unexpected message id %q", resp.MessageID)
	}
	if gotPath != "/mg.example.com/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUser != "api" {
		t.Fatalf("expected basic auth user api, got %q", gotUser)
	}
	if gotFrom != "sales@mg.example.com" || gotTo != "lead@example.com" {
		t.Fatalf("form not posted correctly: from=%q to=%q", gotFrom, gotTo)
	}
}

func TestSendMessageReturnsProviderStatusWithoutError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limit exceeded"}`))
	})

	resp, err := client.SendMessage(context.Background(), SendMessageParams{
		From: "sales@mg.example.com", To: "lead@example.com", Subject: "Hello", HTML: "<p>Hi</p>",
	})
	// Provider rejections are data, not transport errors.
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Accepted() {
		t.Fatal("429 must not report accepted")
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient("", "mg.example.com", "https://api.mailgun.net/v3", observability.NewLogger()); err == nil {
		t.Fatal("expected error for missing API key")
	}
	if _, err := NewClient("key", "", "https://api.mailgun.net/v3", observability.NewLogger()); err == nil {
		t.Fatal("expected error for missing domain")
	}
}
