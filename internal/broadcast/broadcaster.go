package broadcast

import (
	"sync"
	"time"

	"aurora-radio/internal/models"
)

// NowPlaying announces the segment currently on air.
type NowPlaying struct {
	ShowID    string
	ShowName  string
	SegmentID string
	Title     string
	Type      models.SegmentType
	StartTime time.Time
	EndTime   time.Time
}

// QueueUpdate announces a change in the buffered queue.
type QueueUpdate struct {
	ShowID        string
	QueuedMinutes float64
	SegmentCount  int
	MusicFraction float64
	TalkFraction  float64
}

// RequestPlayed announces that a listener request made it to air.
type RequestPlayed struct {
	RequestID uint
	SegmentID string
	Prompt    string
}

// ShowChange announces a transition between two shows.
type ShowChange struct {
	FromShowID string
	ToShowID   string
	At         time.Time
}

// Listener receives station updates. Callbacks run synchronously on the
// publisher's goroutine; a listener registered after an event is not
// retroactively notified. This is low-latency UI plumbing, not durable
// event sourcing.
type Listener interface {
	OnNowPlaying(NowPlaying)
	OnQueueUpdate(QueueUpdate)
	OnRequestPlayed(RequestPlayed)
	OnShowChange(ShowChange)
}

// Broadcaster fans station updates out to registered listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[Listener]struct{}
}

func New() *Broadcaster {
	return &Broadcaster{listeners: make(map[Listener]struct{})}
}

// Register adds a listener. Safe to call at any time.
func (b *Broadcaster) Register(l Listener) {
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
}

// Unregister removes a listener.
func (b *Broadcaster) Unregister(l Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
}

// ListenerCount returns the number of registered listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Broadcaster) PublishNowPlaying(ev NowPlaying) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		l.OnNowPlaying(ev)
	}
}

func (b *Broadcaster) PublishQueueUpdate(ev QueueUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		l.OnQueueUpdate(ev)
	}
}

func (b *Broadcaster) PublishRequestPlayed(ev RequestPlayed) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		l.OnRequestPlayed(ev)
	}
}

func (b *Broadcaster) PublishShowChange(ev ShowChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		l.OnShowChange(ev)
	}
}
