package model

// EventKind tags the two ParsedEvent variants.
type EventKind int

const (
	KindSnapshot EventKind = iota + 1
	KindIncremental
)

// ParsedEvent is the decoded form of one inbound frame.
// Snapshot events carry Timestamps/Statuses; incremental events carry LogText
// and, when the label classified as up or down, a Sample.
type ParsedEvent struct {
	Kind EventKind

	Timestamps []int64
	Statuses   []int

	LogText string
	Sample  *Sample
}

// Snapshot builds a full-replacement event.
func Snapshot(timestamps []int64, statuses []int) ParsedEvent {
	return ParsedEvent{Kind: KindSnapshot, Timestamps: timestamps, Statuses: statuses}
}

// Incremental builds a single-event variant. sample may be nil.
func Incremental(logText string, sample *Sample) ParsedEvent {
	return ParsedEvent{Kind: KindIncremental, LogText: logText, Sample: sample}
}

// LogEntry is one already-formatted line of the log view.
// Notice entries (connection lifecycle, errors) are rendered emphasised.
type LogEntry struct {
	Text   string
	Notice bool
}
