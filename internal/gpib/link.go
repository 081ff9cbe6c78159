// Package gpib owns the bus connection to the instrument: a Prologix GPIB
// controller reached over a serial port (USB controller) or a TCP socket
// (GPIB-ETHERNET controller).
package gpib

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/gotmc/prologix"

	"github.com/fieldprobe/gaussd/internal/config"
	"github.com/fieldprobe/gaussd/internal/logging"
)

// Link is the adapter's one connection to the gaussmeter. All traffic is
// serialized through a single mutex: the poll loop and a concurrent
// clear/reset must never interleave on the wire.
type Link struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	ctrl *prologix.Controller
	cfg  config.LinkConfig
}

// Open connects to the Prologix controller and addresses the instrument at
// the configured GPIB primary address.
func Open(cfg config.LinkConfig) (*Link, error) {
	var (
		port io.ReadWriteCloser
		err  error
	)
	switch strings.ToLower(cfg.Type) {
	case "serial":
		port, err = serial.Open(&serial.Config{
			Address:  cfg.Port,
			BaudRate: cfg.Baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  cfg.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("serial open %s: %w", cfg.Port, err)
		}
	case "tcp":
		var conn net.Conn
		conn, err = net.DialTimeout("tcp", cfg.TCPAddr, cfg.Timeout())
		if err != nil {
			return nil, fmt.Errorf("tcp dial %s: %w", cfg.TCPAddr, err)
		}
		port = conn
	default:
		return nil, fmt.Errorf("unsupported link type: %s", cfg.Type)
	}

	ctrl, err := prologix.NewController(port, cfg.Pad, false)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("prologix controller: %w", err)
	}

	return &Link{port: port, ctrl: ctrl, cfg: cfg}, nil
}

// Address returns the configured bus target, for logs and the info topic.
func (l *Link) Address() string {
	if strings.ToLower(l.cfg.Type) == "tcp" {
		return l.cfg.TCPAddr
	}
	return l.cfg.Port
}

// Query sends a single-line query and returns the response with the line
// termination stripped.
func (l *Link) Query(cmd string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	resp, err := l.ctrl.Query(cmd)
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if l.cfg.Debug {
		logging.Debug("gpib query", "cmd", cmd, "resp", resp)
	}
	return resp, nil
}

// Command sends a single-line write with no response expected.
func (l *Link) Command(cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.Debug {
		logging.Debug("gpib write", "cmd", cmd)
	}
	return l.ctrl.Command("%s", cmd)
}

// Clear sends Selected Device Clear, flushing the instrument's input and
// output buffers. Used at startup and to recover from a garbled response.
func (l *Link) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctrl.ClearDevice()
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Give the controller a moment to push out anything buffered before the
	// port goes away.
	time.Sleep(50 * time.Millisecond)
	return l.port.Close()
}
