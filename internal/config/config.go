package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all updash and updashd configuration.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
}

// ClientConfig holds dashboard settings.
type ClientConfig struct {
	Endpoint      string `yaml:"endpoint"`
	TimestampUnit string `yaml:"timestamp_unit"` // "ms" or "s"
	TimeLayout    string `yaml:"time_layout"`
	ChartPath     string `yaml:"chart_path"` // empty disables the PNG chart
	Headless      bool   `yaml:"headless"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	Handshake     string `yaml:"handshake"`
	Transcript    string `yaml:"transcript"` // NDJSON copy of the log; empty disables
	TranscriptMax int64  `yaml:"transcript_max_bytes"`
}

// ServerConfig holds status server settings.
type ServerConfig struct {
	Listen        string        `yaml:"listen"`
	DBPath        string        `yaml:"db"`
	Target        string        `yaml:"target"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	Keepalive     time.Duration `yaml:"keepalive"`
	Privileged    bool          `yaml:"privileged"`
	LogLevel      string        `yaml:"log_level"`
	WebhookURL    string        `yaml:"webhook_url"` // empty disables change notifications
	WebhookToken  string        `yaml:"webhook_token"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Client: ClientConfig{
			Endpoint:      "ws://127.0.0.1:9000/status",
			TimestampUnit: "ms",
			TimeLayout:    "Mon Jan 02 2006 15:04:05 MST",
			LogLevel:      "info",
			LogFile:       "updash.log",
			Handshake:     "init",
			TranscriptMax: 10 << 20,
		},
		Server: ServerConfig{
			Listen:        "127.0.0.1:9000",
			DBPath:        "uptime.db",
			Target:        "8.8.8.8",
			ProbeInterval: 500 * time.Millisecond,
			ProbeTimeout:  time.Second,
			Keepalive:     300 * time.Second,
			LogLevel:      "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// UPDASH_CONFIG (if set), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("UPDASH_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	c := &cfg.Client
	c.Endpoint = getenv("UPDASH_ENDPOINT", c.Endpoint)
	c.TimestampUnit = getenv("UPDASH_TIMESTAMP_UNIT", c.TimestampUnit)
	c.TimeLayout = getenv("UPDASH_TIME_LAYOUT", c.TimeLayout)
	c.ChartPath = getenv("UPDASH_CHART_PATH", c.ChartPath)
	c.Headless = getenvBool("UPDASH_HEADLESS", c.Headless)
	c.LogLevel = getenv("UPDASH_LOG_LEVEL", c.LogLevel)
	c.LogFile = getenv("UPDASH_LOG_FILE", c.LogFile)
	c.Handshake = getenv("UPDASH_HANDSHAKE", c.Handshake)
	c.Transcript = getenv("UPDASH_TRANSCRIPT", c.Transcript)
	c.TranscriptMax = getenvInt64("UPDASH_TRANSCRIPT_MAX_BYTES", c.TranscriptMax)

	s := &cfg.Server
	s.Listen = getenv("UPDASHD_LISTEN", s.Listen)
	s.DBPath = getenv("UPDASHD_DB", s.DBPath)
	s.Target = getenv("UPDASHD_TARGET", s.Target)
	s.ProbeInterval = getenvDuration("UPDASHD_PROBE_INTERVAL", s.ProbeInterval)
	s.ProbeTimeout = getenvDuration("UPDASHD_PROBE_TIMEOUT", s.ProbeTimeout)
	s.Keepalive = getenvDuration("UPDASHD_KEEPALIVE", s.Keepalive)
	s.Privileged = getenvBool("UPDASHD_PRIVILEGED", s.Privileged)
	s.LogLevel = getenv("UPDASHD_LOG_LEVEL", s.LogLevel)
	s.WebhookURL = getenv("UPDASHD_WEBHOOK_URL", s.WebhookURL)
	s.WebhookToken = getenv("UPDASHD_WEBHOOK_TOKEN", s.WebhookToken)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
