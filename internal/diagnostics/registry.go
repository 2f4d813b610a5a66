package diagnostics

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sendrec/devicelab/internal/device"
)

const maxHistory = 200

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

type historyEntry struct {
	At             time.Time             `json:"at"`
	Kind           device.EventKind      `json:"kind"`
	Snapshot       device.Snapshot       `json:"snapshot"`
	Classification device.Classification `json:"classification"`
}

// session is one open diagnostic page. The page pushes snapshots into feed;
// tracker keeps the live classification streamed back to it.
type session struct {
	id        string
	createdAt time.Time
	feed      *device.Feed
	tracker   *device.Tracker
	done      chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
	history  []historyEntry
}

func (s *session) record(e historyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = e.At
	s.history = append(s.history, e)
	if len(s.history) > maxHistory {
		s.history = append([]historyEntry(nil), s.history[len(s.history)-maxHistory:]...)
	}
}

func (s *session) entries() []historyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]historyEntry, len(s.history))
	copy(out, s.history)
	return out
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *session) close() {
	s.tracker.Close()
	s.feed.Close()
	close(s.done)
}

type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	debounce time.Duration
	limit    int
	now      func() time.Time
}

func newRegistry(ttl, debounce time.Duration, limit int) *registry {
	return &registry{
		sessions: make(map[string]*session),
		ttl:      ttl,
		debounce: debounce,
		limit:    limit,
		now:      time.Now,
	}
}

func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (r *registry) create() (*session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}
	now := r.now()

	// Until the page reports, assume a desktop-width window with no
	// capabilities.
	feed := device.NewFeed(device.Snapshot{Width: device.DesktopBreakpoint})
	var opts []device.TrackerOption
	if r.debounce > 0 {
		opts = append(opts, device.WithDebounce(r.debounce))
	}
	s := &session{
		id:        id,
		createdAt: now,
		feed:      feed,
		tracker:   device.NewTracker(feed, opts...),
		done:      make(chan struct{}),
		lastSeen:  now,
	}

	r.mu.Lock()
	if len(r.sessions) >= r.limit {
		r.mu.Unlock()
		s.close()
		return nil, ErrTooManySessions
	}
	r.sessions[id] = s
	r.mu.Unlock()
	return s, nil
}

func (r *registry) get(id string) (*session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if r.now().Sub(s.idleSince()) > r.ttl {
		r.remove(id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
}

func (r *registry) sweep() int {
	now := r.now()
	var expired []*session

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	return len(expired)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
