package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/updash/internal/model"
)

var (
	ErrMalformedFrame      = errors.New("malformed frame")
	ErrLengthMismatch      = errors.New("snapshot timestamps and statuses differ in length")
	ErrUnrecognizedBoolean = errors.New("unrecognized boolean token")
	ErrAmbiguousLabel      = errors.New("label is both up and down")
	ErrBadTimestamp        = errors.New("bad timestamp")
)

// DefaultTimeLayout renders timestamps the way a browser prints a Date.
const DefaultTimeLayout = "Mon Jan 02 2006 15:04:05 MST"

// Unit is the resolution of server timestamps.
type Unit int

const (
	Milliseconds Unit = iota
	Seconds
)

// ParseUnit maps "s"/"sec"/"seconds" to Seconds and anything else to Milliseconds.
func ParseUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "secs", "second", "seconds":
		return Seconds
	default:
		return Milliseconds
	}
}

// Time converts a raw server timestamp to a time.Time.
func (u Unit) Time(ts int64) time.Time {
	if u == Seconds {
		return time.Unix(ts, 0)
	}
	return time.UnixMilli(ts)
}

// Option configures a Parser.
type Option func(*Parser)

// WithUnit sets the timestamp unit used for display. Default: Milliseconds.
func WithUnit(u Unit) Option {
	return func(p *Parser) { p.unit = u }
}

// WithLayout sets the time.Format layout for log lines.
func WithLayout(layout string) Option {
	return func(p *Parser) {
		if layout != "" {
			p.layout = layout
		}
	}
}

// WithLocation sets the zone log timestamps are rendered in. Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// Parser classifies inbound frames as snapshots or incremental events.
// It holds no state between frames.
type Parser struct {
	unit   Unit
	layout string
	loc    *time.Location
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		unit:   Milliseconds,
		layout: DefaultTimeLayout,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes one raw frame. A frame whose first character is '[' is a
// snapshot; anything else is an incremental event.
func (p *Parser) Parse(frame string) (model.ParsedEvent, error) {
	if strings.HasPrefix(frame, "[") {
		return p.parseSnapshot(frame)
	}
	return p.parseIncremental(frame)
}

func (p *Parser) parseSnapshot(frame string) (model.ParsedEvent, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(frame), &parts); err != nil {
		return model.ParsedEvent{}, fmt.Errorf("%w: snapshot: %v", ErrMalformedFrame, err)
	}
	if len(parts) != 2 {
		return model.ParsedEvent{}, fmt.Errorf("%w: snapshot has %d elements, want 2", ErrMalformedFrame, len(parts))
	}

	var rawTimes []json.RawMessage
	if err := json.Unmarshal(parts[0], &rawTimes); err != nil {
		return model.ParsedEvent{}, fmt.Errorf("%w: snapshot timestamps: %v", ErrMalformedFrame, err)
	}
	if rawTimes == nil {
		return model.ParsedEvent{}, fmt.Errorf("%w: snapshot timestamps are not an array", ErrMalformedFrame)
	}
	var rawStatuses []json.RawMessage
	if err := json.Unmarshal(parts[1], &rawStatuses); err != nil {
		return model.ParsedEvent{}, fmt.Errorf("%w: snapshot statuses: %v", ErrMalformedFrame, err)
	}
	if rawStatuses == nil {
		return model.ParsedEvent{}, fmt.Errorf("%w: snapshot statuses are not an array", ErrMalformedFrame)
	}
	if len(rawTimes) != len(rawStatuses) {
		return model.ParsedEvent{}, fmt.Errorf("%w: %d timestamps, %d statuses", ErrLengthMismatch, len(rawTimes), len(rawStatuses))
	}

	timestamps := make([]int64, len(rawTimes))
	for i, raw := range rawTimes {
		ts, err := decodeTimestamp(raw)
		if err != nil {
			return model.ParsedEvent{}, fmt.Errorf("snapshot index %d: %w", i, err)
		}
		timestamps[i] = ts
	}

	statuses := make([]int, len(rawStatuses))
	for i, raw := range rawStatuses {
		var tok string
		if err := json.Unmarshal(raw, &tok); err != nil {
			return model.ParsedEvent{}, fmt.Errorf("%w %s at index %d", ErrUnrecognizedBoolean, raw, i)
		}
		switch tok {
		case "true":
			statuses[i] = 1
		case "false":
			statuses[i] = 0
		default:
			return model.ParsedEvent{}, fmt.Errorf("%w %q at index %d", ErrUnrecognizedBoolean, tok, i)
		}
	}

	return model.Snapshot(timestamps, statuses), nil
}

// decodeTimestamp accepts a JSON number or a JSON string holding an integer.
func decodeTimestamp(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrBadTimestamp, raw)
		}
	}
	ts, err := parseTimestamp(text)
	if err != nil {
		return 0, err
	}
	return ts, nil
}

func parseTimestamp(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if ts, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ts, nil
	}
	// Numbers like 1.7e12 are still integers.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, text)
	}
	return int64(f), nil
}

func (p *Parser) parseIncremental(frame string) (model.ParsedEvent, error) {
	tokens := strings.Fields(frame)
	if len(tokens) < 2 {
		return model.ParsedEvent{}, fmt.Errorf("%w: want \"<label> <timestamp> ...\", got %q", ErrMalformedFrame, frame)
	}

	ts, err := parseTimestamp(tokens[1])
	if err != nil {
		return model.ParsedEvent{}, err
	}

	// Classification reads every token except the timestamp, NFC-normalised.
	// The log line keeps the tokens as received.
	label := tokens[0]
	if len(tokens) > 2 {
		label += " " + strings.Join(tokens[2:], " ")
	}
	status, err := Classify(norm.NFC.String(label))
	if err != nil {
		return model.ParsedEvent{}, err
	}

	tokens[1] = p.unit.Time(ts).In(p.loc).Format(p.layout)
	logText := strings.Join(tokens, " ")

	if status == model.Unclassified {
		return model.Incremental(logText, nil), nil
	}
	return model.Incremental(logText, &model.Sample{Timestamp: ts, Status: status}), nil
}
