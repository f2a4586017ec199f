package middleware

import (
	"sync"
	"time"

	"MarkWatch/internal/domain/models"
)

const defaultFeedSize = 256

// EventFeed is a bounded in-memory ring of recent scheduler events
// (triggers, rounds, job failures) served by the events endpoint. Oldest
// entries are overwritten; nothing blocks on a slow reader.
type EventFeed struct {
	mu    sync.Mutex
	buf   []models.Event
	next  int
	count int
	now   func() time.Time
}

func NewEventFeed(size int) *EventFeed {
	if size <= 0 {
		size = defaultFeedSize
	}
	return &EventFeed{buf: make([]models.Event, size), now: time.Now}
}

func (f *EventFeed) Publish(kind, detail string, fields map[string]string) {
	f.mu.Lock()
	f.buf[f.next] = models.Event{At: f.now(), Kind: kind, Detail: detail, Fields: fields}
	f.next = (f.next + 1) % len(f.buf)
	if f.count < len(f.buf) {
		f.count++
	}
	f.mu.Unlock()
}

// Recent returns up to limit events, newest first.
func (f *EventFeed) Recent(limit int) []models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (f.next - 1 - i + len(f.buf)*2) % len(f.buf)
		out = append(out, f.buf[idx])
	}
	return out
}
