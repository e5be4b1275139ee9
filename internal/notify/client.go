// Package notify delivers best-effort notifications to an external channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Notifier delivers user summaries and operator alerts. Delivery is
// fire-and-forget; failures are logged, never surfaced to callers.
type Notifier interface {
	Notify(userID, summary string)
	Alert(severity, message string)
}

// Client posts notifications to a webhook.
type Client struct {
	webhookURL  string
	httpClient  *http.Client
	callTimeout time.Duration
}

// NewClient creates a webhook notifier. An empty URL disables delivery.
func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL:  webhookURL,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		callTimeout: 5 * time.Second,
	}
}

type payload struct {
	Kind     string `json:"kind"`
	UserID   string `json:"user_id,omitempty"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message"`
	Ts       int64  `json:"ts"`
}

// Notify sends a user-facing summary. Errors are swallowed.
func (c *Client) Notify(userID, summary string) {
	go c.post(payload{Kind: "user_summary", UserID: userID, Message: summary, Ts: time.Now().UnixMilli()})
}

// Alert sends an operator alert for containment escalations.
func (c *Client) Alert(severity, message string) {
	go c.post(payload{Kind: "alert", Severity: severity, Message: message, Ts: time.Now().UnixMilli()})
}

func (c *Client) post(p payload) {
	if c.webhookURL == "" {
		return
	}
	body, err := json.Marshal(p)
	if err != nil {
		log.Printf("WARN: failed to marshal notification: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("WARN: failed to create notification request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("WARN: notification delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("WARN: notification webhook returned status %d", resp.StatusCode)
	}
}

var _ Notifier = (*Client)(nil)

// TaskSummary renders the standard completion summary line.
func TaskSummary(taskID string, taskType string, cost int) string {
	if cost > 0 {
		return fmt.Sprintf("Task %s (%s) completed, %d credits spent", taskID, taskType, cost)
	}
	return fmt.Sprintf("Task %s (%s) completed", taskID, taskType)
}
