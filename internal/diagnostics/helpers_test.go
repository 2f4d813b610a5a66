package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sendrec/devicelab/internal/database"
	"github.com/sendrec/devicelab/internal/geoip"
	"github.com/sendrec/devicelab/internal/webhook"
)

const (
	testSecret = "test-session-secret"

	iPhoneUA    = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	chromeWinUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

type mockStorage struct {
	putKey      string
	putBody     []byte
	putErr      error
	downloadURL string
	presignErr  error
}

func (m *mockStorage) PutObject(_ context.Context, key string, body []byte, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.putKey = key
	m.putBody = body
	return nil
}

func (m *mockStorage) GenerateDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return m.downloadURL + "/" + key, nil
}

type staticGeo struct{ loc geoip.Location }

func (g staticGeo) Lookup(string) geoip.Location { return g.loc }

type recordingNotifier struct {
	mu     sync.Mutex
	events []webhook.Event
}

func (n *recordingNotifier) Dispatch(_ context.Context, e webhook.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) recorded() []webhook.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]webhook.Event(nil), n.events...)
}

var errStorageDown = errors.New("storage down")

func newTestHandler(t *testing.T, db database.DBTX, storage ReportStorage) *Handler {
	t.Helper()
	cfg := Config{
		DB:            db,
		Geo:           staticGeo{loc: geoip.Location{Country: "DE", City: "Berlin"}},
		SessionSecret: testSecret,
		ViewerHashKey: "test-hash-key",
		SessionTTL:    time.Minute,
	}
	if storage != nil {
		cfg.Storage = storage
	}
	h := NewHandler(cfg)
	h.async = func(f func()) { f() }
	t.Cleanup(h.sessions.closeAll)
	return h
}

func newTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/diagnostics", h.DiagnosticsPage)
	r.Get("/api/classify", h.ClassifyHeaders)
	r.Post("/api/classify", h.ClassifyProbe)
	r.Get("/api/stats", h.Stats)
	r.Post("/api/sessions", h.CreateSession)
	r.Delete("/api/sessions/{id}", h.EndSession)
	r.Post("/api/sessions/{id}/snapshots", h.ReportSnapshot)
	r.Get("/api/sessions/{id}/events", h.Events)
	r.Post("/api/sessions/{id}/report", h.ExportReport)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createSession(t *testing.T, r http.Handler) createSessionResponse {
	t.Helper()
	rec := serve(r, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return resp
}

func boolPtr(b bool) *bool { return &b }
