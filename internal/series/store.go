package series

import (
	"errors"
	"fmt"
	"sync"

	"github.com/crimson-sun/updash/internal/model"
)

// ErrLengthMismatch is returned by ReplaceAll when the two sequences differ in length.
var ErrLengthMismatch = errors.New("series: timestamps and statuses differ in length")

// Store is the append-only time series behind the chart.
// ReplaceAll is the only operation that may shrink or reorder it.
type Store struct {
	mu         sync.RWMutex
	timestamps []int64
	statuses   []int
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// ReplaceAll swaps the stored sequences for copies of the given ones.
// Inputs of different length are rejected and leave the store untouched.
func (s *Store) ReplaceAll(timestamps []int64, statuses []int) error {
	if len(timestamps) != len(statuses) {
		return fmt.Errorf("%w: %d timestamps, %d statuses", ErrLengthMismatch, len(timestamps), len(statuses))
	}
	for i, v := range statuses {
		if v != 0 && v != 1 {
			return fmt.Errorf("series: status %d at index %d is not 0 or 1", v, i)
		}
	}

	ts := make([]int64, len(timestamps))
	copy(ts, timestamps)
	st := make([]int, len(statuses))
	copy(st, statuses)

	s.mu.Lock()
	s.timestamps = ts
	s.statuses = st
	s.mu.Unlock()
	return nil
}

// Append adds one sample at the end. Unclassified samples are rejected.
func (s *Store) Append(sample model.Sample) error {
	if sample.Status != model.Up && sample.Status != model.Down {
		return fmt.Errorf("series: cannot append %s sample", sample.Status)
	}

	s.mu.Lock()
	s.timestamps = append(s.timestamps, sample.Timestamp)
	s.statuses = append(s.statuses, sample.Status.Value())
	s.mu.Unlock()
	return nil
}

// Len returns the current number of samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.timestamps)
}

// CurrentSeries returns a copy of the stored series reflecting every mutation
// applied before the call.
func (s *Store) CurrentSeries() model.TimeSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.TimeSeries{
		Timestamps: s.timestamps,
		Statuses:   s.statuses,
	}.Clone()
}
