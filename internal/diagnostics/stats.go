package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sendrec/devicelab/internal/httputil"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
	maxBrowserRows   = 10
)

type statsSummary struct {
	TotalEvents     int64 `json:"totalEvents"`
	UniqueViewers   int64 `json:"uniqueViewers"`
	RealMobile      int64 `json:"realMobile"`
	SimulatedMobile int64 `json:"simulatedMobile"`
	HoverCapable    int64 `json:"hoverCapable"`
	TouchCapable    int64 `json:"touchCapable"`
}

type breakdownItem struct {
	Name       string  `json:"name"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type statsResponse struct {
	Days     int             `json:"days"`
	Summary  statsSummary    `json:"summary"`
	Tiers    []breakdownItem `json:"tiers"`
	Browsers []breakdownItem `json:"browsers"`
}

func parseDays(raw string) (int, error) {
	if raw == "" {
		return defaultStatsDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxStatsDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxStatsDays)
	}
	return days, nil
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "analytics database is not configured")
		return
	}
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	resp := statsResponse{Days: days}
	err = h.db.QueryRow(r.Context(),
		`SELECT COUNT(*),
		        COUNT(DISTINCT viewer_hash),
		        COUNT(*) FILTER (WHERE is_real_mobile),
		        COUNT(*) FILTER (WHERE is_simulated_mobile),
		        COUNT(*) FILTER (WHERE supports_hover),
		        COUNT(*) FILTER (WHERE has_touch)
		 FROM device_events WHERE created_at >= $1`,
		since,
	).Scan(&resp.Summary.TotalEvents, &resp.Summary.UniqueViewers,
		&resp.Summary.RealMobile, &resp.Summary.SimulatedMobile,
		&resp.Summary.HoverCapable, &resp.Summary.TouchCapable)
	if err != nil {
		slog.Error("diagnostics: failed to query stats summary", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp.Tiers, err = h.breakdown(r.Context(),
		`SELECT device_type, COUNT(*) FROM device_events WHERE created_at >= $1
		 GROUP BY device_type ORDER BY COUNT(*) DESC, device_type`,
		since, resp.Summary.TotalEvents)
	if err != nil {
		slog.Error("diagnostics: failed to query tier breakdown", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp.Browsers, err = h.breakdown(r.Context(),
		`SELECT browser, COUNT(*) FROM device_events WHERE created_at >= $1
		 GROUP BY browser ORDER BY COUNT(*) DESC, browser LIMIT `+strconv.Itoa(maxBrowserRows),
		since, resp.Summary.TotalEvents)
	if err != nil {
		slog.Error("diagnostics: failed to query browser breakdown", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) breakdown(ctx context.Context, query string, since time.Time, total int64) ([]breakdownItem, error) {
	rows, err := h.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []breakdownItem{}
	for rows.Next() {
		var item breakdownItem
		if err := rows.Scan(&item.Name, &item.Count); err != nil {
			return nil, err
		}
		item.Percentage = percentage(item.Count, total)
		items = append(items, item)
	}
	return items, rows.Err()
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
