package updash

// Update is one decoded frame.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Update struct {
	Snapshot   bool    `json:"snapshot,omitempty"`   // true for a full history replay
	Timestamps []int64 `json:"timestamps,omitempty"` // snapshot only
	Up         []bool  `json:"up,omitempty"`         // snapshot only, aligned with Timestamps

	Line      string `json:"line,omitempty"`      // incremental only: display text
	Status    string `json:"status,omitempty"`    // incremental only: "up", "down" or ""
	Timestamp int64  `json:"timestamp,omitempty"` // incremental only, 0 when unclassified
}
