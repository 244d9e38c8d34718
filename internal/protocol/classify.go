package protocol

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/updash/internal/model"
)

const (
	downMarker = "down"
	upMarker   = "up"
)

// Classify maps label text to Up, Down or Unclassified by substring search.
// A label containing both markers is rejected with ErrAmbiguousLabel.
func Classify(label string) (model.Status, error) {
	down := strings.Contains(label, downMarker)
	up := strings.Contains(label, upMarker)

	switch {
	case down && up:
		return model.Unclassified, fmt.Errorf("%w: %q", ErrAmbiguousLabel, label)
	case down:
		return model.Down, nil
	case up:
		return model.Up, nil
	default:
		return model.Unclassified, nil
	}
}
