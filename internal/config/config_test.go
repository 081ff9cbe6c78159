package config

import (
	"strings"
	"testing"
)

const validConfig = `{
	// bench magnet gaussmeter
	"instrument": "magnet1",
	"link": {
		"type": "tcp",
		"tcpAddr": "10.0.0.42:1234",
		"pad": 12
	},
	"mode": "poll",
	"pollIntervalMs": 500
}`

func TestLoad_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validConfig))
	if err != nil {
		t.Fatalf("LoadFromReader() err = %v", err)
	}
	if cfg.Instrument != "magnet1" {
		t.Fatalf("instrument = %q", cfg.Instrument)
	}
	if !cfg.CacheFields() {
		t.Fatal("mode=poll must enable the field cache")
	}
	if cfg.ExtendedControls() {
		t.Fatal("mode=poll must not enable extended controls")
	}
	// defaults
	if cfg.Link.TimeoutMs != 1000 {
		t.Fatalf("timeout default = %d, want 1000", cfg.Link.TimeoutMs)
	}
	if cfg.HeartbeatInterval != 60 {
		t.Fatalf("heartbeat default = %d, want 60", cfg.HeartbeatInterval)
	}
	if cfg.CommandBufferSize != 8 {
		t.Fatalf("command buffer default = %d, want 8", cfg.CommandBufferSize)
	}
}

func TestLoad_HeartbeatDefault(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want int
	}{
		"unset":    {`{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}, "pollIntervalMs": 1}`, 60},
		"zero":     {`{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}, "pollIntervalMs": 1, "heartbeatInterval": 0}`, 60},
		"negative": {`{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}, "pollIntervalMs": 1, "heartbeatInterval": -5}`, 60},
		"explicit": {`{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}, "pollIntervalMs": 1, "heartbeatInterval": 15}`, 15},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadFromReader(strings.NewReader(tc.raw))
			if err != nil {
				t.Fatalf("LoadFromReader() err = %v", err)
			}
			if cfg.HeartbeatInterval != tc.want {
				t.Fatalf("heartbeat = %d, want %d", cfg.HeartbeatInterval, tc.want)
			}
		})
	}
}

func TestLoad_ModeDefaultsToOnDemand(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`{
		"instrument": "m",
		"link": {"type": "serial", "port": "/dev/ttyUSB0", "pad": 12},
		"pollIntervalMs": 1000
	}`))
	if err != nil {
		t.Fatalf("LoadFromReader() err = %v", err)
	}
	if cfg.Mode != ModeOnDemand {
		t.Fatalf("mode = %q, want %q", cfg.Mode, ModeOnDemand)
	}
	if cfg.Link.Baud != 115200 {
		t.Fatalf("baud default = %d, want 115200", cfg.Link.Baud)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":    `{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}, "pollIntervalMs": 1, "bogus": true}`,
		"missing name":     `{"link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}, "pollIntervalMs": 1}`,
		"bad link type":    `{"instrument": "m", "link": {"type": "visa", "pad": 12}, "pollIntervalMs": 1}`,
		"tcp without addr": `{"instrument": "m", "link": {"type": "tcp", "pad": 12}, "pollIntervalMs": 1}`,
		"serial no port":   `{"instrument": "m", "link": {"type": "serial", "pad": 12}, "pollIntervalMs": 1}`,
		"pad out of range": `{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 99}, "pollIntervalMs": 1}`,
		"bad mode":         `{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}, "mode": "turbo", "pollIntervalMs": 1}`,
		"no poll interval": `{"instrument": "m", "link": {"type": "tcp", "tcpAddr": "a:1", "pad": 12}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFromReader(strings.NewReader(raw)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
