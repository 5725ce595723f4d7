package mailgun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"outreach-server/internal/observability"
)

// Client is a thin REST client for the Mailgun messages API. It reports the
// provider's HTTP status to callers instead of collapsing everything into an
// error, because the gateway classifies statuses into transient and permanent
// failures.
type Client struct {
	baseURL string
	domain  string
	apiKey  string
	http    *http.Client
	logger  *observability.Logger
}

// SendMessageParams holds one outbound message
type SendMessageParams struct {
	From     string
	To       string
	Subject  string
	HTML     string
	Text     string
	ReplyTo  string
	Headers  map[string]string
	TestMode bool
}

// SendMessageResponse is the provider's reply. StatusCode is always set when
// the transport round-trip succeeded, whether or not the provider accepted
// the message.
type SendMessageResponse struct {
	StatusCode int
	MessageID  string
	Body       string
}

// Accepted reports whether the provider accepted the message for delivery
func (r SendMessageResponse) Accepted() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient creates a new Mailgun client
func NewClient(apiKey, domain, baseURL string, logger *observability.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mailgun API key is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("mailgun domain is required")
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		domain:  domain,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}, nil
}

// SendMessage posts one message to the provider. A non-nil error means the
// transport failed (connection, timeout); a provider rejection comes back as
// a response with a non-2xx StatusCode and a nil error.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (SendMessageResponse, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_to", Value: params.To},
	)

	form := url.Values{}
	form.Set("from", params.From)
	form.Set("to", params.To)
	form.Set("subject", params.Subject)
	form.Set("html", params.HTML)
	if params.Text != "" {
		form.Set("text", params.Text)
	}
	if params.ReplyTo != "" {
		form.Set("h:Reply-To", params.ReplyTo)
	}
	for key, value := range params.Headers {
		form.Set("h:"+key, value)
	}
	if params.TestMode {
		form.Set("o:testmode", "yes")
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendMessageResponse{}, fmt.Errorf("failed to build mailgun request: %w", err)
	}
	req.SetBasicAuth("api", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error(ctx, "mailgun request failed", err)
		return SendMessageResponse{}, fmt.Errorf("mailgun request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	result := SendMessageResponse{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	if result.Accepted() {
		var payload struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			result.MessageID = payload.ID
		}
		c.logger.Info(ctx, "email accepted by provider")
	}

	return result, nil
}
