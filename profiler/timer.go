// Package profiler - Wall-clock timing for the detection pipeline.
package profiler

import "time"

// Timer is a simple stopwatch that accumulates elapsed time across
// Tic/Toc intervals.
//
// Calling Toc without a preceding Tic measures from the zero time and is not
// guarded against.
type Timer struct {
	// TotalTime is the sum of all intervals measured so far.
	TotalTime time.Duration
	// Calls is the number of completed Tic/Toc intervals.
	Calls int
	// Diff is the length of the most recent interval.
	Diff time.Duration

	start time.Time
	now   func() time.Time
}

// NewTimer creates a Timer backed by the wall clock.
func NewTimer() *Timer {
	return &Timer{now: time.Now}
}

// Tic records the start of an interval.
func (t *Timer) Tic() {
	t.start = t.clock()()
}

// Toc closes the interval opened by the last Tic, adds it to TotalTime and
// returns its length.
//
// Arguments:
//   - None.
//
// Returns:
//   - time.Duration: The elapsed time since the matching Tic.
func (t *Timer) Toc() time.Duration {
	t.Diff = t.clock()().Sub(t.start)
	t.TotalTime += t.Diff
	t.Calls++
	return t.Diff
}

// AverageTime is TotalTime divided by the number of completed intervals.
func (t *Timer) AverageTime() time.Duration {
	if t.Calls == 0 {
		return 0
	}
	return t.TotalTime / time.Duration(t.Calls)
}

func (t *Timer) clock() func() time.Time {
	if t.now == nil {
		return time.Now
	}
	return t.now
}
