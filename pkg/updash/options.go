package updash

import "time"

type options struct {
	seconds   bool
	layout    string
	location  *time.Location
	handshake string
}

// Option configures a Decoder or Watch.
type Option func(*options)

// WithSeconds declares that the feed's timestamps are Unix seconds rather
// than milliseconds.
func WithSeconds() Option {
	return func(o *options) { o.seconds = true }
}

// WithLayout sets the time.Format layout used in Update.Line.
func WithLayout(layout string) Option {
	return func(o *options) { o.layout = layout }
}

// WithLocation sets the zone Update.Line timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithHandshake sets the first message Watch sends. Default: "init".
func WithHandshake(text string) Option {
	return func(o *options) { o.handshake = text }
}

func defaultOptions() options {
	return options{handshake: "init"}
}
