package gpib

import (
	"strings"
	"testing"

	"github.com/fieldprobe/gaussd/internal/config"
)

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(config.LinkConfig{Type: "gpio", Pad: 12})
	if err == nil {
		t.Fatal("expected error for unsupported link type")
	}
	if !strings.Contains(err.Error(), "unsupported link type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddress(t *testing.T) {
	l := &Link{cfg: config.LinkConfig{Type: "serial", Port: "/dev/ttyUSB0", TCPAddr: "10.0.0.5:1234"}}
	if got := l.Address(); got != "/dev/ttyUSB0" {
		t.Fatalf("serial address = %q", got)
	}
	l.cfg.Type = "tcp"
	if got := l.Address(); got != "10.0.0.5:1234" {
		t.Fatalf("tcp address = %q", got)
	}
}
