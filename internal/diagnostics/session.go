package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/sendrec/devicelab/internal/auth"
	"github.com/sendrec/devicelab/internal/device"
	"github.com/sendrec/devicelab/internal/httputil"
	"github.com/sendrec/devicelab/internal/validate"
	"github.com/sendrec/devicelab/internal/webhook"
)

type createSessionResponse struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type snapshotRequest struct {
	Kind  device.EventKind `json:"kind"`
	Probe device.Probe     `json:"probe"`
}

type reportDocument struct {
	SessionID   string                `json:"sessionId"`
	CreatedAt   time.Time             `json:"createdAt"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Current     device.Classification `json:"current"`
	Entries     []historyEntry        `json:"entries"`
}

type reportResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.create()
	if errors.Is(err, ErrTooManySessions) {
		slog.Warn("diagnostics: session limit reached", "max", h.sessions.limit)
		httputil.WriteError(w, http.StatusServiceUnavailable, "too many open sessions, try again later")
		return
	}
	if err != nil {
		slog.Error("diagnostics: failed to create session", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	token, expiresAt, err := auth.GenerateSessionToken(h.sessionSecret, s.id, h.sessions.ttl)
	if err != nil {
		h.sessions.remove(s.id)
		slog.Error("diagnostics: failed to sign session token", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createSessionResponse{
		ID:        s.id,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// authorizedSession resolves the {id} session and checks the request's token
// was issued for it.
func (h *Handler) authorizedSession(w http.ResponseWriter, r *http.Request) (*session, bool) {
	id := chi.URLParam(r, "id")
	claims, err := auth.ValidateSessionToken(h.sessionSecret, auth.TokenFromRequest(r))
	if err != nil || claims.SessionID != id {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return nil, false
	}
	s, err := h.sessions.get(id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func (h *Handler) ReportSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}

	var req snapshotRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Probe.UserAgent == "" {
		req.Probe.UserAgent = r.UserAgent()
	}
	if msg := validate.EventKind(req.Kind); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Probe(req.Probe); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	snapshot := req.Probe.Snapshot()
	classification := device.Classify(snapshot)
	s.record(historyEntry{
		At:             h.sessions.now(),
		Kind:           req.Kind,
		Snapshot:       snapshot,
		Classification: classification,
	})
	s.feed.Publish(device.Event{Kind: req.Kind, Snapshot: snapshot})
	h.recordEvent(h.newDeviceEvent(r, s.id, req.Kind, snapshot, classification))

	httputil.WriteJSON(w, http.StatusOK, classification)
}

// Events streams the session's live classification as datastar "device"
// signals: the current value first, then every change until the client
// disconnects or the session expires.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}

	updates := make(chan device.Classification, 1)
	remove := s.tracker.OnChange(func(c device.Classification) { offerLatest(updates, c) })
	defer remove()

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("diagnostics: cannot clear write deadline", "session_id", s.id, "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if err := patchDevice(sse, s.tracker.Current()); err != nil {
		return
	}

	// An open stream keeps the session from expiring.
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-keepAlive.C:
			s.touch(h.sessions.now())
		case c := <-updates:
			s.touch(h.sessions.now())
			if err := patchDevice(sse, c); err != nil {
				slog.Debug("diagnostics: event stream closed", "session_id", s.id, "error", err)
				return
			}
		}
	}
}

func patchDevice(sse *datastar.ServerSentEventGenerator, c device.Classification) error {
	data, err := json.Marshal(map[string]any{"device": c})
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	return sse.PatchSignals(data)
}

// offerLatest replaces any undelivered value so a slow reader only ever sees
// the newest classification.
func offerLatest(ch chan device.Classification, c device.Classification) {
	for {
		select {
		case ch <- c:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}
	if h.storage == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "report export is not configured")
		return
	}

	now := h.sessions.now().UTC()
	doc := reportDocument{
		SessionID:   s.id,
		CreatedAt:   s.createdAt.UTC(),
		GeneratedAt: now,
		Current:     s.tracker.Current(),
		Entries:     s.entries(),
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	key := fmt.Sprintf("reports/%s/%d.json", s.id, now.Unix())
	if err := h.storage.PutObject(r.Context(), key, body, "application/json"); err != nil {
		slog.Error("diagnostics: failed to upload report", "session_id", s.id, "key", key, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to store report")
		return
	}
	url, err := h.storage.GenerateDownloadURL(r.Context(), key, reportURLExpiry)
	if err != nil {
		slog.Error("diagnostics: failed to presign report", "session_id", s.id, "key", key, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to generate report link")
		return
	}

	resp := reportResponse{
		Key:       key,
		URL:       url,
		ExpiresAt: now.Add(reportURLExpiry).Format(time.RFC3339),
	}
	h.notify(webhook.EventReportExported, s.id, map[string]any{
		"key":        resp.Key,
		"url":        resp.URL,
		"expiresAt":  resp.ExpiresAt,
		"deviceType": doc.Current.DeviceType,
		"snapshots":  len(doc.Entries),
	})
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}
	current := s.tracker.Current()
	h.sessions.remove(s.id)
	h.notify(webhook.EventSessionEnded, s.id, map[string]any{
		"deviceType":        current.DeviceType,
		"isRealMobile":      current.IsRealMobile,
		"isSimulatedMobile": current.IsSimulatedMobile,
		"snapshots":         len(s.entries()),
		"durationSeconds":   int(h.sessions.now().Sub(s.createdAt).Seconds()),
	})
	w.WriteHeader(http.StatusNoContent)
}
