package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

/* =========================
   Types
   ========================= */

// Mode selects how the daemon moves data off the instrument.
const (
	ModeOnDemand = "ondemand" // measure X/Y/Z channel by channel each tick
	ModePoll     = "poll"     // one aggregate ALLF? query per tick, cached
	ModeExtended = "extended" // ondemand plus enable/range controls
)

type Config struct {
	Instrument        string     `json:"instrument"`        // device name, used in MQTT topics
	Link              LinkConfig `json:"link"`              // GPIB bus connection
	Mode              string     `json:"mode"`              // ondemand | poll | extended
	PollIntervalMs    int        `json:"pollIntervalMs"`    // measurement cadence
	HeartbeatInterval int        `json:"heartbeatInterval"` // seconds between forced republish
	CommandBufferSize int        `json:"commandBufferSize"`
}

// LinkConfig describes how to reach the Prologix GPIB controller that the
// gaussmeter hangs off: either a USB controller on a serial port or a
// GPIB-ETHERNET controller on a TCP address.
type LinkConfig struct {
	Type      string `json:"type"` // "serial" | "tcp"
	Port      string `json:"port"`
	TCPAddr   string `json:"tcpAddr"`
	Baud      int    `json:"baud"`
	Pad       int    `json:"pad"` // GPIB primary address of the instrument
	TimeoutMs int    `json:"timeoutMs"`
	Debug     bool   `json:"debug"`
}

/* =========================
   Helpers
   ========================= */

func (l LinkConfig) Timeout() time.Duration { return time.Duration(l.TimeoutMs) * time.Millisecond }

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// CacheFields reports whether readings come from the aggregate-query cache
// instead of per-channel round trips.
func (c Config) CacheFields() bool { return c.Mode == ModePoll }

// ExtendedControls reports whether the per-channel enable flags and the
// measurement range are exposed for reading and writing.
func (c Config) ExtendedControls() bool { return c.Mode == ModeExtended }

/* =========================
   Strict load + validate
   ========================= */

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(raw)
}

func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	clean := stripJSONComments(raw)

	dec := json.NewDecoder(strings.NewReader(string(clean)))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs multiErr

	if strings.TrimSpace(c.Instrument) == "" {
		errs.add("instrument name is required")
	}

	/* Link */
	l := &c.Link
	switch strings.ToLower(l.Type) {
	case "tcp":
		if strings.TrimSpace(l.TCPAddr) == "" {
			errs.add("link: tcpAddr is required for type=tcp")
		}
	case "serial":
		if strings.TrimSpace(l.Port) == "" {
			errs.add("link: port is required for type=serial")
		}
		if l.Baud == 0 {
			l.Baud = 115200
		}
	default:
		errs.add("link: type must be 'serial' or 'tcp'")
	}
	if l.Pad < 1 || l.Pad > 30 {
		errs.addf("link: pad must be 1..30, got %d", l.Pad)
	}
	if l.TimeoutMs <= 0 {
		l.TimeoutMs = 1000
	}

	/* Mode + cadence */
	if c.Mode == "" {
		c.Mode = ModeOnDemand
	}
	switch c.Mode {
	case ModeOnDemand, ModePoll, ModeExtended:
	default:
		errs.addf("mode must be one of %s, %s, %s", ModeOnDemand, ModePoll, ModeExtended)
	}
	if c.PollIntervalMs <= 0 {
		errs.add("pollIntervalMs must be > 0 (e.g., 500)")
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 60
	}
	if c.CommandBufferSize <= 0 {
		c.CommandBufferSize = 8
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

/* =========================
   JSON comments + multi-error
   ========================= */

var (
	lineComments  = regexp.MustCompile(`(?m)//[^\n\r]*`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripJSONComments(in []byte) []byte {
	text := string(in)
	text = blockComments.ReplaceAllString(text, "")
	text = lineComments.ReplaceAllString(text, "")
	return []byte(text)
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
