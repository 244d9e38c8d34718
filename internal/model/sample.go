package model

// Status is the classification of one connection event.
type Status int

const (
	// Unclassified events are logged but never enter the time series.
	Unclassified Status = iota
	Down
	Up
)

// String returns "up", "down" or "unclassified".
func (s Status) String() string {
	switch s {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unclassified"
	}
}

// Value returns the numeric series value: 1 for Up, 0 otherwise.
func (s Status) Value() int {
	if s == Up {
		return 1
	}
	return 0
}

// Sample is a single (timestamp, status) point. Timestamps are in the unit the
// server uses; the series never converts them.
type Sample struct {
	Timestamp int64
	Status    Status
}

// TimeSeries holds two index-aligned sequences. Statuses are 0 (down) or 1 (up).
type TimeSeries struct {
	Timestamps []int64
	Statuses   []int
}

// Len returns the number of samples.
func (ts TimeSeries) Len() int {
	return len(ts.Timestamps)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (ts TimeSeries) Clone() TimeSeries {
	out := TimeSeries{
		Timestamps: make([]int64, len(ts.Timestamps)),
		Statuses:   make([]int, len(ts.Statuses)),
	}
	copy(out.Timestamps, ts.Timestamps)
	copy(out.Statuses, ts.Statuses)
	return out
}
