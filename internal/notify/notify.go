// Package notify carries the short success and failure messages the
// dashboard shows after a bed operation finishes.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/kingrea/wardboard/internal/logbook"
)

// Kind distinguishes success toasts from error toasts.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// DefaultTTL is how long a toast stays visible.
const DefaultTTL = 4 * time.Second

// Sink receives notifications.
type Sink interface {
	Notify(message string, kind Kind)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(message string, kind Kind)

// Notify calls f.
func (f SinkFunc) Notify(message string, kind Kind) { f(message, kind) }

// Multi fans a notification out to every non-nil sink.
type Multi []Sink

// Notify forwards to each sink in order.
func (m Multi) Notify(message string, kind Kind) {
	for _, s := range m {
		if s != nil {
			s.Notify(message, kind)
		}
	}
}

// Toast is a queued notification.
type Toast struct {
	Message string
	Kind    Kind
	At      time.Time
}

// Queue keeps recent toasts for the terminal UI. Expired toasts drop out of
// Active.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
	ttl    time.Duration
	limit  int
	clock  func() time.Time
}

// NewQueue creates a queue that shows toasts for ttl and holds at most limit.
func NewQueue(ttl time.Duration, limit int) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if limit <= 0 {
		limit = 3
	}
	return &Queue{ttl: ttl, limit: limit, clock: time.Now}
}

// Notify appends a toast, evicting the oldest past the limit.
func (q *Queue) Notify(message string, kind Kind) {
	message = strings.TrimSpace(message)
	if q == nil || message == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = append(q.toasts, Toast{Message: message, Kind: kind, At: q.clock()})
	if len(q.toasts) > q.limit {
		q.toasts = q.toasts[len(q.toasts)-q.limit:]
	}
}

// Active returns unexpired toasts, oldest first.
func (q *Queue) Active() []Toast {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	kept := q.toasts[:0]
	for _, t := range q.toasts {
		if now.Sub(t.At) < q.ttl {
			kept = append(kept, t)
		}
	}
	q.toasts = kept
	out := make([]Toast, len(kept))
	copy(out, kept)
	return out
}

// Latest returns the newest unexpired toast.
func (q *Queue) Latest() (Toast, bool) {
	active := q.Active()
	if len(active) == 0 {
		return Toast{}, false
	}
	return active[len(active)-1], true
}

// Journal records notifications in the logbook so they survive the session.
type Journal struct {
	book *logbook.Logbook
}

// NewJournal wraps book.
func NewJournal(book *logbook.Logbook) Journal {
	return Journal{book: book}
}

// Notify appends the message at INFO for success and ERROR for failures.
func (j Journal) Notify(message string, kind Kind) {
	level := logbook.LevelInfo
	if kind == KindError {
		level = logbook.LevelError
	}
	j.book.Append(level, "toast: "+message)
}
