package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sendrec/devicelab/internal/webhook"
)

// Client posts diagnostic session notifications to a Slack incoming webhook.
type Client struct {
	webhookURL string
	http       *http.Client
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type payload struct {
	Blocks []block `json:"blocks"`
}

func (c *Client) postMessage(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

// Dispatch renders event as a Slack message. Unknown events are ignored.
func (c *Client) Dispatch(ctx context.Context, event webhook.Event) error {
	p, ok := messageFor(event)
	if !ok {
		return nil
	}
	return c.postMessage(ctx, p)
}

func messageFor(event webhook.Event) (payload, bool) {
	deviceType := fmt.Sprint(event.Data["deviceType"])
	switch event.Name {
	case webhook.EventSessionEnded:
		kind := "viewport"
		switch {
		case event.Data["isRealMobile"] == true:
			kind = "real mobile device"
		case event.Data["isSimulatedMobile"] == true:
			kind = "simulated mobile viewport"
		}
		return payload{Blocks: []block{
			{
				Type: "section",
				Text: &text{
					Type: "mrkdwn",
					Text: fmt.Sprintf(":iphone: *Diagnostic session ended*\nLast seen as *%s* (%s)", deviceType, kind),
				},
			},
			{
				Type: "context",
				Elements: []text{{
					Type: "mrkdwn",
					Text: fmt.Sprintf("%v snapshots over %vs, session `%s`", event.Data["snapshots"], event.Data["durationSeconds"], event.SessionID),
				}},
			},
		}}, true
	case webhook.EventReportExported:
		return payload{Blocks: []block{
			{
				Type: "section",
				Text: &text{
					Type: "mrkdwn",
					Text: fmt.Sprintf(":page_facing_up: *Diagnostic report exported*\n<%v|Download report> (%s)", event.Data["url"], deviceType),
				},
			},
			{
				Type: "context",
				Elements: []text{{
					Type: "mrkdwn",
					Text: fmt.Sprintf("Link expires %v, session `%s`", event.Data["expiresAt"], event.SessionID),
				}},
			},
		}}, true
	}
	return payload{}, false
}
