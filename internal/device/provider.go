package device

import "sync"

type EventKind string

const (
	EventMount       EventKind = "mount"
	EventResize      EventKind = "resize"
	EventOrientation EventKind = "orientation"
)

func ValidEventKind(k EventKind) bool {
	switch k {
	case EventMount, EventResize, EventOrientation:
		return true
	}
	return false
}

type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
}

// EnvironmentProvider supplies snapshots of the environment and notifies
// subscribers when it changes. The returned function removes the
// subscription and is safe to call more than once.
type EnvironmentProvider interface {
	Snapshot() Snapshot
	Subscribe(fn func(Event)) (unsubscribe func())
}

type StaticProvider struct {
	snapshot Snapshot
}

func NewStaticProvider(s Snapshot) *StaticProvider {
	return &StaticProvider{snapshot: s}
}

func (p *StaticProvider) Snapshot() Snapshot { return p.snapshot }

func (p *StaticProvider) Subscribe(func(Event)) func() { return func() {} }

// Feed is a provider driven by snapshots pushed from outside, such as the
// reports posted by the diagnostic page. Subscribers run synchronously on the
// publishing goroutine, in registration order.
type Feed struct {
	mu          sync.Mutex
	snapshot    Snapshot
	nextID      uint64
	subscribers []feedSubscriber
	closed      bool
}

type feedSubscriber struct {
	id uint64
	fn func(Event)
}

func NewFeed(initial Snapshot) *Feed {
	return &Feed{snapshot: initial}
}

func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *Feed) Subscribe(fn func(Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return func() {}
	}
	f.nextID++
	id := f.nextID
	f.subscribers = append(f.subscribers, feedSubscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subscribers {
		if s.id == id {
			f.subscribers = append(f.subscribers[:i:i], f.subscribers[i+1:]...)
			return
		}
	}
}

func (f *Feed) Publish(e Event) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.snapshot = e.Snapshot
	subs := make([]feedSubscriber, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}

func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.subscribers = nil
}
