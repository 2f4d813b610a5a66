package device

import (
	"sync"
	"time"
)

// Tracker keeps the classification of a provider's environment current.
// It recomputes on every event and notifies listeners only when the result
// changes. Close releases the provider subscription.
//
// One goroutine delivers to listeners at a time. A change that lands while a
// delivery is in flight is picked up by that goroutine once its listeners
// return, so the last value listeners see is always Current().
type Tracker struct {
	mu          sync.Mutex
	current     Classification
	delivered   Classification
	pending     bool
	delivering  bool
	listeners   []trackerListener
	nextID      uint64
	unsubscribe func()
	debounce    time.Duration
	timer       *time.Timer
	gen         uint64
	closed      bool
}

type trackerListener struct {
	id uint64
	fn func(Classification)
}

type TrackerOption func(*Tracker)

// WithDebounce coalesces resize events arriving within d of each other so only
// the last one is classified. Mount and orientation events apply immediately.
func WithDebounce(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.debounce = d }
}

func NewTracker(p EnvironmentProvider, opts ...TrackerOption) *Tracker {
	initial := Classify(p.Snapshot())
	t := &Tracker{current: initial, delivered: initial}
	for _, opt := range opts {
		opt(t)
	}
	t.unsubscribe = p.Subscribe(t.handle)
	return t
}

func (t *Tracker) Current() Classification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) OnChange(fn func(Classification)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, trackerListener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, l := range t.listeners {
				if l.id == id {
					t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (t *Tracker) handle(e Event) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.debounce > 0 && e.Kind == EventResize {
		s := e.Snapshot
		t.timer = time.AfterFunc(t.debounce, func() { t.apply(gen, s) })
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.apply(gen, e.Snapshot)
}

func (t *Tracker) apply(gen uint64, s Snapshot) {
	c := Classify(s)

	t.mu.Lock()
	if t.closed || gen != t.gen || c == t.current {
		t.mu.Unlock()
		return
	}
	t.current = c
	t.pending = true
	if t.delivering {
		t.mu.Unlock()
		return
	}
	t.delivering = true
	t.mu.Unlock()

	t.deliver()
}

// deliver runs until no change is pending. Listeners are called without the
// lock held, so they may read Current or remove themselves.
func (t *Tracker) deliver() {
	for {
		t.mu.Lock()
		if t.closed || !t.pending {
			t.delivering = false
			t.mu.Unlock()
			return
		}
		t.pending = false
		c := t.current
		if c == t.delivered {
			t.mu.Unlock()
			continue
		}
		t.delivered = c
		listeners := make([]trackerListener, len(t.listeners))
		copy(listeners, t.listeners)
		t.mu.Unlock()

		for _, l := range listeners {
			l.fn(c)
		}
	}
}

func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.listeners = nil
	unsubscribe := t.unsubscribe
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
