package diagnostics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sendrec/devicelab/internal/device"
	"github.com/sendrec/devicelab/internal/httputil"
)

type deviceEvent struct {
	sessionID      string
	viewerHash     string
	kind           device.EventKind
	snapshot       device.Snapshot
	classification device.Classification
	client         device.Client
	ip             string
}

func (h *Handler) newDeviceEvent(r *http.Request, sessionID string, kind device.EventKind, s device.Snapshot, c device.Classification) deviceEvent {
	ip := httputil.ClientIP(r)
	return deviceEvent{
		sessionID:      sessionID,
		viewerHash:     httputil.ViewerHash(h.viewerHashKey, ip, s.UserAgent),
		kind:           kind,
		snapshot:       s,
		classification: c,
		client:         device.DescribeClient(s.UserAgent),
		ip:             ip,
	}
}

// recordEvent stores a classified snapshot for analytics. Bots are skipped.
// Inserts run off the request path and only log on failure.
func (h *Handler) recordEvent(e deviceEvent) {
	if h.db == nil || e.client.Bot {
		return
	}
	h.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		loc := h.geo.Lookup(e.ip)
		if _, err := h.db.Exec(ctx,
			`INSERT INTO device_events (session_id, viewer_hash, kind, device_type, is_real_mobile, is_simulated_mobile, has_touch, supports_hover, width, height, browser, os, country, city)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			e.sessionID, e.viewerHash, string(e.kind), string(e.classification.DeviceType),
			e.classification.IsRealMobile, e.classification.IsSimulatedMobile,
			e.classification.HasTouch, e.classification.SupportsHover,
			e.snapshot.Width, e.snapshot.Height,
			e.client.Browser, e.client.OS, loc.Country, loc.City,
		); err != nil {
			slog.Error("diagnostics: failed to record device event", "session_id", e.sessionID, "kind", e.kind, "error", err)
		}
	})
}
