package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestSlogMiddleware_LogsRequest(t *testing.T) {
	buf := captureLogs(t)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Post("/api/classify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/classify", nil))

	output := buf.String()
	for _, field := range []string{
		"method=POST",
		"path=/api/classify",
		"status=200",
		"remote_addr=",
		"duration_ms=",
		"request_id=",
	} {
		if !strings.Contains(output, field) {
			t.Errorf("expected log to contain %q, got: %s", field, output)
		}
	}
	if strings.Contains(output, "request_id= ") || strings.Contains(output, "request_id=\"\"") {
		t.Errorf("expected a populated request id, got: %s", output)
	}
}

func TestSlogMiddleware_SkipsHealthCheck(t *testing.T) {
	buf := captureLogs(t)

	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output for /api/health, got: %s", buf.String())
	}
}

func TestSlogMiddleware_LogsErrorStatus(t *testing.T) {
	buf := captureLogs(t)

	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Get("/api/sessions/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/events", nil))

	if !strings.Contains(buf.String(), "status=401") {
		t.Errorf("expected log to contain status=401, got: %s", buf.String())
	}
}

func TestStatusRecorder_Flushes(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	_, _ = recorder.Write([]byte("data: x\n\n"))
	recorder.Flush()

	if !rec.Flushed {
		t.Error("expected Flush to reach the underlying writer")
	}
	if recorder.Unwrap() != rec {
		t.Error("expected Unwrap to return the wrapped writer")
	}
}
