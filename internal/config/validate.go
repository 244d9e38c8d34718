package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the client section. It does not mutate cfg.
func (c ClientConfig) Validate() error {
	var errs []error

	u, err := url.Parse(c.Endpoint)
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		errs = append(errs, errors.New("endpoint is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("endpoint %q: %w", c.Endpoint, err))
	case u.Scheme == "" || u.Host == "":
		errs = append(errs, fmt.Errorf("endpoint %q must be an absolute URL", c.Endpoint))
	}

	switch strings.ToLower(c.TimestampUnit) {
	case "ms", "s":
	default:
		errs = append(errs, fmt.Errorf("timestamp_unit must be \"ms\" or \"s\", got %q", c.TimestampUnit))
	}

	if strings.TrimSpace(c.TimeLayout) == "" {
		errs = append(errs, errors.New("time_layout must not be empty"))
	}
	if strings.TrimSpace(c.Handshake) == "" {
		errs = append(errs, errors.New("handshake must not be empty"))
	}
	if c.TranscriptMax < 0 {
		errs = append(errs, fmt.Errorf("transcript_max_bytes must not be negative, got %d", c.TranscriptMax))
	}
	if !c.Headless && c.LogFile == "" {
		errs = append(errs, errors.New("log_file is required in interactive mode"))
	}

	return errors.Join(errs...)
}

// Validate checks the server section. It does not mutate cfg.
func (s ServerConfig) Validate() error {
	var errs []error

	if s.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if s.DBPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if s.Target == "" {
		errs = append(errs, errors.New("probe target is required"))
	}
	if s.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("probe_interval must be positive, got %v", s.ProbeInterval))
	}
	if s.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("probe_timeout must be positive, got %v", s.ProbeTimeout))
	}
	if s.WebhookURL != "" {
		if u, err := url.Parse(s.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("webhook_url %q must be an http(s) URL", s.WebhookURL))
		}
	}
	if s.Keepalive <= 0 {
		errs = append(errs, fmt.Errorf("keepalive must be positive, got %v", s.Keepalive))
	}

	return errors.Join(errs...)
}
