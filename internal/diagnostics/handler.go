package diagnostics

import (
	"context"
	"log/slog"
	"time"

	"github.com/sendrec/devicelab/internal/database"
	"github.com/sendrec/devicelab/internal/geoip"
	"github.com/sendrec/devicelab/internal/webhook"
)

const (
	defaultSessionTTL  = 30 * time.Minute
	defaultMaxSessions = 10000
	reportURLExpiry    = time.Hour
	recordTimeout      = 30 * time.Second
	notifyTimeout      = 30 * time.Second
	streamKeepAlive    = 15 * time.Second
)

type ReportStorage interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type LocationResolver interface {
	Lookup(ip string) geoip.Location
}

type Notifier interface {
	Dispatch(ctx context.Context, event webhook.Event) error
}

type Config struct {
	DB            database.DBTX
	Storage       ReportStorage
	Geo           LocationResolver
	Notifier      Notifier
	SessionSecret string
	ViewerHashKey string
	SessionTTL    time.Duration
	// MaxSessions caps open sessions; creation fails with 503 once reached.
	MaxSessions int
	// Debounce coalesces resize bursts on the live event stream.
	Debounce     time.Duration
	DemoVideoURL string
}

type Handler struct {
	db            database.DBTX
	storage       ReportStorage
	geo           LocationResolver
	notifier      Notifier
	sessionSecret string
	viewerHashKey string
	demoVideoURL  string
	sessions      *registry
	async         func(func())
}

func NewHandler(cfg Config) *Handler {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	geo := cfg.Geo
	if geo == nil {
		geo = geoip.New("")
	}
	return &Handler{
		db:            cfg.DB,
		storage:       cfg.Storage,
		geo:           geo,
		notifier:      cfg.Notifier,
		sessionSecret: cfg.SessionSecret,
		viewerHashKey: cfg.ViewerHashKey,
		demoVideoURL:  cfg.DemoVideoURL,
		sessions:      newRegistry(ttl, cfg.Debounce, maxSessions),
		async:         func(f func()) { go f() },
	}
}

// StartSessionSweeper expires idle diagnostic sessions until ctx is done.
func (h *Handler) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.sessions.closeAll()
				return
			case <-ticker.C:
				if n := h.sessions.sweep(); n > 0 {
					slog.Info("diagnostics: expired idle sessions", "count", n, "active", h.sessions.count())
				}
			}
		}
	}()
}

func (h *Handler) notify(name, sessionID string, data map[string]any) {
	if h.notifier == nil {
		return
	}
	event := webhook.Event{
		Name:      name,
		SessionID: sessionID,
		Timestamp: h.sessions.now().UTC(),
		Data:      data,
	}
	h.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := h.notifier.Dispatch(ctx, event); err != nil {
			slog.Error("diagnostics: webhook delivery failed", "session_id", sessionID, "event", name, "error", err)
		}
	})
}
