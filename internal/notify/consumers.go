package notify

import "sync"

// DefaultHistorySize is used when NewHistory gets a non-positive size.
const DefaultHistorySize = 200

// History keeps the most recent notifications in a ring.
type History struct {
	mu    sync.RWMutex
	items []Notification
	next  int
	full  bool
}

// NewHistory creates a History holding up to size notifications.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{items: make([]Notification, size)}
}

// Consume records n, evicting the oldest entry when full.
func (h *History) Consume(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.next] = n
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns the stored notifications, oldest first.
func (h *History) Recent() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		return append([]Notification(nil), h.items[:h.next]...)
	}
	out := make([]Notification, 0, len(h.items))
	out = append(out, h.items[h.next:]...)
	return append(out, h.items[:h.next]...)
}

// InfoLogger is the logging surface of LogConsumer.
type InfoLogger interface {
	Info(msg string, args ...any)
}

// LogConsumer writes every notification to the structured log.
type LogConsumer struct {
	Logger InfoLogger
}

// Consume logs n.
func (l LogConsumer) Consume(n Notification) {
	l.Logger.Info("notification", "message", n.Message, "time", n.Time)
}
