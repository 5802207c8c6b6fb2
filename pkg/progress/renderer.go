package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

const (
	// eventBuffer lets workers run ahead of the terminal a little.
	eventBuffer = 256

	trackerLength   = 30
	updateFrequency = 100 * time.Millisecond
	renderPoll      = 10 * time.Millisecond
	idleLabel       = "idle"
)

// Renderer draws one progress row per worker slot. Rows keep their position
// for the whole run; each job reuses the row of the slot it runs on.
// Completed jobs are logged above the rows.
type Renderer struct {
	writer   progress.Writer
	trackers []*progress.Tracker
	events   chan Event
	applied  chan struct{}
	rendered chan struct{}
	drained  sync.Once
	finished int
	failed   int
}

// NewRenderer creates a renderer for slots worker rows writing to out.
// Call Run before sending events and Close when every worker has stopped.
func NewRenderer(out io.Writer, slots int) *Renderer {
	writer := progress.NewWriter()
	writer.SetOutputWriter(out)
	writer.SetAutoStop(false)
	writer.SetTrackerLength(trackerLength)
	writer.SetUpdateFrequency(updateFrequency)
	writer.SetSortBy(progress.SortByNone)
	writer.SetStyle(progress.StyleDefault)
	writer.Style().Visibility.ETA = true
	writer.Style().Visibility.Speed = true
	writer.Style().Visibility.Value = true

	trackers := make([]*progress.Tracker, slots)
	for i := range trackers {
		trackers[i] = &progress.Tracker{Message: slotLabel(i, idleLabel), Units: progress.UnitsDefault}
		writer.AppendTracker(trackers[i])
	}

	return &Renderer{
		writer:   writer,
		trackers: trackers,
		events:   make(chan Event, eventBuffer),
		applied:  make(chan struct{}),
		rendered: make(chan struct{}),
	}
}

// Reporter returns a Reporter feeding this renderer.
func (r *Renderer) Reporter() *Channel {
	return NewChannel(r.events)
}

// Run starts drawing and consuming events in the background.
func (r *Renderer) Run() {
	go func() {
		defer close(r.rendered)

		r.writer.Render()
	}()

	go func() {
		defer close(r.applied)

		for ev := range r.events {
			r.apply(ev)
		}
	}()
}

// Close drains pending events, logs the job tally and stops drawing.
// No Reporter of this renderer may be used afterwards.
func (r *Renderer) Close() {
	r.drain()

	r.writer.Log("%d jobs done, %d failed", r.finished, r.failed)

	// MarkAsDone collapses each total onto the current value; the final
	// frame shows every row complete.
	for _, tracker := range r.trackers {
		tracker.MarkAsDone()
	}

	// Stop is a no-op until Render has set up its context, so repeat it
	// until the render goroutine returns.
	for {
		r.writer.Stop()

		select {
		case <-r.rendered:
			return
		case <-time.After(renderPoll):
		}
	}
}

// drain waits until every sent event has been applied.
func (r *Renderer) drain() {
	r.drained.Do(func() {
		close(r.events)
		<-r.applied
	})
}

func (r *Renderer) apply(ev Event) {
	if ev.Slot < 0 || ev.Slot >= len(r.trackers) {
		return
	}

	tracker := r.trackers[ev.Slot]

	switch ev.Kind {
	case EventStart:
		tracker.Reset()
		tracker.UpdateMessage(slotLabel(ev.Slot, ev.Label))
		tracker.UpdateTotal(ev.Total)
	case EventAdvance:
		// A tracker reaching its total is moved off the active rows for good,
		// so the row stays one short until the job finishes.
		done := ev.Done
		if tracker.Total > 0 && done >= tracker.Total {
			done = tracker.Total - 1
		}

		tracker.SetValue(done)
	case EventFinish:
		tracker.Reset()
		tracker.UpdateTotal(0)
		tracker.UpdateMessage(slotLabel(ev.Slot, idleLabel))

		if ev.Err != nil {
			r.failed++
			r.writer.Log("FAIL %s: %v", ev.Message, ev.Err)
		} else {
			r.finished++
			r.writer.Log("done %s", ev.Message)
		}
	}
}

func slotLabel(slot int, label string) string {
	return fmt.Sprintf("[w%02d] %s", slot, label)
}
