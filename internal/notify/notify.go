// Package notify delivers transient, dismissible messages to the customer.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/shrimpzone/internal/ids"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Notification is one user-facing message.
type Notification struct {
	ID      string
	Level   Level
	Message string
	At      time.Time
}

// Sink receives notifications.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// Multi fans a notification out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(n Notification) {
		for _, s := range sinks {
			s.Notify(n)
		}
	})
}

// LogSink writes notifications to a slog logger. A nil Logger means slog.Default().
type LogSink struct {
	Logger *slog.Logger
}

// Notify logs n at the level matching its severity.
func (s LogSink) Notify(n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "notification", "id", n.ID, "message", n.Message)
}

// Tray keeps recent notifications until they are dismissed or expire.
//
// Thread-safety: Tray is safe for concurrent use.
type Tray struct {
	mu    sync.Mutex
	items []Notification
	ttl   time.Duration
	max   int
	now   func() time.Time
	ids   ids.Generator
}

// TrayOption configures a Tray.
type TrayOption func(*Tray)

// WithTTL sets how long a notification stays active. Zero keeps it until dismissed.
func WithTTL(ttl time.Duration) TrayOption {
	return func(t *Tray) { t.ttl = ttl }
}

// WithCapacity bounds how many notifications are kept; the oldest go first.
func WithCapacity(n int) TrayOption {
	return func(t *Tray) { t.max = n }
}

// WithClock overrides the wall clock (for testing).
func WithClock(now func() time.Time) TrayOption {
	return func(t *Tray) { t.now = now }
}

// WithIDGenerator overrides the notification id generator (for testing).
func WithIDGenerator(g ids.Generator) TrayOption {
	return func(t *Tray) { t.ids = g }
}

// NewTray creates an empty tray. Defaults: 5s lifetime, 10 notifications.
func NewTray(opts ...TrayOption) *Tray {
	t := &Tray{
		ttl: 5 * time.Second,
		max: 10,
		now: time.Now,
		ids: ids.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Notify adds n, filling in ID and At when unset.
func (t *Tray) Notify(n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.ID == "" {
		n.ID = t.ids.Generate()
	}
	if n.At.IsZero() {
		n.At = t.now()
	}
	t.items = append(t.items, n)
	if t.max > 0 && len(t.items) > t.max {
		t.items = append([]Notification(nil), t.items[len(t.items)-t.max:]...)
	}
}

// Active returns notifications that are neither dismissed nor expired,
// oldest first. Expired ones are dropped.
func (t *Tray) Active() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	kept := t.items[:0]
	for _, n := range t.items {
		if t.ttl > 0 && now.Sub(n.At) >= t.ttl {
			continue
		}
		kept = append(kept, n)
	}
	t.items = kept
	return append([]Notification(nil), kept...)
}

// Dismiss removes the notification with the given id.
func (t *Tray) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, n := range t.items {
		if n.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}
