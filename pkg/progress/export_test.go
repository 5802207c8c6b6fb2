package progress

import "time"

// SetClock replaces the time source of a throttle.
func (t *Throttle) SetClock(now func() time.Time) {
	t.now = now
}

// Counts returns how many jobs finished cleanly and with an error.
func (r *Renderer) Counts() (finished, failed int) {
	return r.finished, r.failed
}

// Drain applies every event sent so far. Reporters must not be used afterwards.
func (r *Renderer) Drain() {
	r.drain()
}

// TrackerState returns the value and total of a slot's row and whether
// go-pretty considers it done.
func (r *Renderer) TrackerState(slot int) (value, total int64, done bool) {
	tracker := r.trackers[slot]
	value = tracker.Value()
	done = tracker.IsDone()

	// Total is only written under the tracker's lock by the apply goroutine,
	// which has finished once Drain or Close returned.
	return value, tracker.Total, done
}
