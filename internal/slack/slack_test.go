package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sendrec/devicelab/internal/webhook"
)

type capture struct {
	mu    sync.Mutex
	calls int
	body  map[string]any
}

func newSlackServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.calls++
		_ = json.Unmarshal(body, &c.body)
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func blockText(t *testing.T, body map[string]any, i int) string {
	t.Helper()
	blocks, ok := body["blocks"].([]any)
	if !ok || len(blocks) <= i {
		t.Fatalf("expected block %d, got %v", i, body)
	}
	b := blocks[i].(map[string]any)
	if txt, ok := b["text"].(map[string]any); ok {
		return txt["text"].(string)
	}
	elements := b["elements"].([]any)
	return elements[0].(map[string]any)["text"].(string)
}

func TestDispatch_SessionEnded(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		wantKind string
	}{
		{"real mobile", map[string]any{"deviceType": "mobile", "isRealMobile": true, "snapshots": 3, "durationSeconds": 42}, "real mobile device"},
		{"simulated", map[string]any{"deviceType": "mobile", "isSimulatedMobile": true, "snapshots": 3, "durationSeconds": 42}, "simulated mobile viewport"},
		{"desktop", map[string]any{"deviceType": "desktop", "snapshots": 3, "durationSeconds": 42}, "(viewport)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newSlackServer(t, http.StatusOK)

			err := New(srv.URL).Dispatch(context.Background(), webhook.Event{
				Name:      webhook.EventSessionEnded,
				SessionID: "abc123",
				Data:      tt.data,
			})
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}

			got.mu.Lock()
			defer got.mu.Unlock()
			header := blockText(t, got.body, 0)
			if !strings.HasPrefix(header, ":iphone: *Diagnostic session ended*") || !strings.Contains(header, tt.wantKind) {
				t.Errorf("unexpected header %q", header)
			}
			if ctx := blockText(t, got.body, 1); ctx != "3 snapshots over 42s, session `abc123`" {
				t.Errorf("unexpected context %q", ctx)
			}
		})
	}
}

func TestDispatch_ReportExported(t *testing.T) {
	srv, got := newSlackServer(t, http.StatusOK)

	err := New(srv.URL).Dispatch(context.Background(), webhook.Event{
		Name:      webhook.EventReportExported,
		SessionID: "abc123",
		Data: map[string]any{
			"url":        "https://files.example.com/reports/abc123/1.json",
			"expiresAt":  "2026-03-01T13:00:00Z",
			"deviceType": "tablet",
		},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	got.mu.Lock()
	defer got.mu.Unlock()
	want := ":page_facing_up: *Diagnostic report exported*\n<https://files.example.com/reports/abc123/1.json|Download report> (tablet)"
	if header := blockText(t, got.body, 0); header != want {
		t.Errorf("unexpected header %q", header)
	}
}

func TestDispatch_IgnoresUnknownEvents(t *testing.T) {
	srv, got := newSlackServer(t, http.StatusOK)

	if err := New(srv.URL).Dispatch(context.Background(), webhook.Event{Name: "session.resized"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	got.mu.Lock()
	defer got.mu.Unlock()
	if got.calls != 0 {
		t.Errorf("expected no Slack request, got %d", got.calls)
	}
}

func TestDispatch_ReturnsErrorOnNon200(t *testing.T) {
	srv, _ := newSlackServer(t, http.StatusForbidden)

	err := New(srv.URL).Dispatch(context.Background(), webhook.Event{Name: webhook.EventSessionEnded, Data: map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status error, got %v", err)
	}
}
