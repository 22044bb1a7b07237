// Package leads submits qualified lead records to the downstream lead
// storage backend. Submission is fire-and-forget from the orchestrator's
// point of view: the only observable effect of success is the session's
// submitted flag, and failures are logged, never shown to the visitor.
package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/convia/go-leadchat-backend/internal/domain"
)

// TranscriptEntry is one message in the submitted conversation log.
type TranscriptEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Submission is the lead record sent to the storage backend.
type Submission struct {
	SessionID   string            `json:"session_id"`
	Lead        domain.LeadInfo   `json:"lead"`
	Transcript  []TranscriptEntry `json:"transcript"`
	Page        string            `json:"page,omitempty"`
	Referrer    string            `json:"referrer,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// Client posts lead records to a configured HTTP endpoint. A nil Client is a
// valid "lead capture disabled" configuration; callers must check for it.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds a submission client. Timeout bounds the whole request;
// values <= 0 fall back to 5s so a hung backend can never pin a turn.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Transcript converts a message log into submission entries, preserving order.
func Transcript(messages []domain.Message) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(messages))
	for _, m := range messages {
		out = append(out, TranscriptEntry{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}
	return out
}

// Submit posts the lead record. Any non-2xx status is an error. The
// orchestrator flips the session's submitted flag only on success, so a
// failed delivery is retried on the next qualifying turn.
func (c *Client) Submit(ctx context.Context, sub Submission) error {
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("lead submit: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("lead submit: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lead submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("lead submit: backend rejected with status %d", resp.StatusCode)
	}
	return nil
}
