package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sendrec/devicelab/internal/database"
)

const maxResponseBodyBytes = 1024

const (
	EventSessionEnded   = "session.ended"
	EventReportExported = "report.exported"
)

// Event is a diagnostic session notification.
type Event struct {
	Name      string         `json:"event"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Client posts signed events to one endpoint with retries. Attempts are
// logged to webhook_deliveries when a database is configured.
type Client struct {
	db          database.DBTX
	http        *http.Client
	retryDelays []time.Duration
	url         string
	secret      string
}

func New(db database.DBTX, url, secret string) *Client {
	return &Client{
		db:          db,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{1 * time.Second, 4 * time.Second},
		url:         url,
		secret:      secret,
	}
}

// SignPayload computes HMAC-SHA256 of the payload using the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatch sends event with up to 1+len(retryDelays) attempts.
func (c *Client) Dispatch(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	signature := SignPayload(c.secret, body)
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		statusCode, respBody, err := c.doPost(ctx, body, signature)
		c.logDelivery(ctx, event, body, statusCode, respBody, attempt)

		if err == nil && statusCode != nil && *statusCode >= 200 && *statusCode < 300 {
			return nil
		}

		if err != nil {
			lastErr = err
		} else if statusCode != nil {
			lastErr = fmt.Errorf("webhook returned status %d", *statusCode)
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

func (c *Client) doPost(ctx context.Context, body []byte, signature string) (*int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err.Error(), err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1))
	respBody := string(respBytes)
	if len(respBody) > maxResponseBodyBytes {
		respBody = respBody[:maxResponseBodyBytes]
	}

	return &resp.StatusCode, respBody, nil
}

func (c *Client) logDelivery(ctx context.Context, event Event, payload []byte, statusCode *int, responseBody string, attempt int) {
	if c.db == nil {
		return
	}
	if _, err := c.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (session_id, event, payload, status_code, response_body, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.SessionID, event.Name, payload, statusCode, responseBody, attempt,
	); err != nil {
		slog.Error("webhook: failed to log delivery", "session_id", event.SessionID, "event", event.Name, "error", err)
	}
}
