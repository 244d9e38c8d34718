package protocol

import (
	"errors"
	"testing"

	"github.com/crimson-sun/updash/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		label   string
		want    model.Status
		wantErr error
	}{
		{"server-down", model.Down, nil},
		{"link-up", model.Up, nil},
		{"At the connection came up.", model.Up, nil},
		{"At the connection went down.", model.Down, nil},
		{"heartbeat", model.Unclassified, nil},
		{"UP", model.Unclassified, nil},
		{"up and down", model.Unclassified, ErrAmbiguousLabel},
	}

	for _, tt := range tests {
		got, err := Classify(tt.label)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Classify(%q) err = %v, want %v", tt.label, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}
