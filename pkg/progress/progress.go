// Package progress multiplexes per-worker scan progress onto stable terminal rows.
//
// Workers never touch the terminal. They send Events through a Reporter; a
// single Renderer goroutine owns the display and applies them in order.
package progress

import "time"

// EventKind tells the renderer what happened on a slot.
type EventKind uint8

const (
	// EventStart announces a new job on a slot.
	EventStart EventKind = iota
	// EventAdvance reports how many items of the current job are done.
	EventAdvance
	// EventFinish closes the current job of a slot.
	EventFinish
)

// Event is one progress message from a worker slot.
type Event struct {
	Slot    int
	Kind    EventKind
	Label   string
	Total   int64
	Done    int64
	Message string
	Err     error
}

// Reporter receives progress for worker slots.
type Reporter interface {
	Start(slot int, label string, total int64)
	Advance(slot int, done int64)
	Finish(slot int, message string, err error)
}

// Nop discards all progress.
type Nop struct{}

// Start implements Reporter.
func (Nop) Start(int, string, int64) {}

// Advance implements Reporter.
func (Nop) Advance(int, int64) {}

// Finish implements Reporter.
func (Nop) Finish(int, string, error) {}

// Channel forwards progress as Events to a single consumer.
type Channel struct {
	events chan<- Event
}

// NewChannel returns a Reporter writing to events.
func NewChannel(events chan<- Event) *Channel {
	return &Channel{events: events}
}

// Start implements Reporter.
func (c *Channel) Start(slot int, label string, total int64) {
	c.events <- Event{Slot: slot, Kind: EventStart, Label: label, Total: total}
}

// Advance implements Reporter.
func (c *Channel) Advance(slot int, done int64) {
	c.events <- Event{Slot: slot, Kind: EventAdvance, Done: done}
}

// Finish implements Reporter.
func (c *Channel) Finish(slot int, message string, err error) {
	c.events <- Event{Slot: slot, Kind: EventFinish, Message: message, Err: err}
}

// Throttle lets an action through at most once per interval.
// It is not safe for concurrent use; each worker owns its own.
type Throttle struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewThrottle creates a throttle. A non-positive interval allows every call.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Allow reports whether the action may run now, and if so records the time.
func (t *Throttle) Allow() bool {
	now := t.now()
	if t.interval > 0 && !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}

	t.last = now

	return true
}

// Reset forgets the last allowed time so the next call passes.
func (t *Throttle) Reset() {
	t.last = time.Time{}
}
