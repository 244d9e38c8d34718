package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/crimson-sun/updash/internal/model"
)

// EncodeSnapshot builds the bulk replay frame: [["t0",...],["true"|"false",...]].
func EncodeSnapshot(timestamps []int64, statuses []model.Status) (string, error) {
	if len(timestamps) != len(statuses) {
		return "", fmt.Errorf("protocol encode: %w: %d timestamps, %d statuses", ErrLengthMismatch, len(timestamps), len(statuses))
	}

	times := make([]string, len(timestamps))
	flags := make([]string, len(statuses))
	for i, ts := range timestamps {
		times[i] = strconv.FormatInt(ts, 10)
		switch statuses[i] {
		case model.Up:
			flags[i] = "true"
		case model.Down:
			flags[i] = "false"
		default:
			return "", fmt.Errorf("protocol encode: index %d: status %s has no wire form", i, statuses[i])
		}
	}

	b, err := json.Marshal([][]string{times, flags})
	if err != nil {
		return "", fmt.Errorf("protocol encode: %w", err)
	}
	return string(b), nil
}

// EncodeIncremental builds a single-event frame, e.g.
// "At 1718000000000 the connection came up."
func EncodeIncremental(ts int64, up bool) string {
	verb := "went down."
	if up {
		verb = "came up."
	}
	return fmt.Sprintf("At %d the connection %s", ts, verb)
}
