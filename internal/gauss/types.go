package gauss

import (
	"context"
	"time"

	"github.com/fieldprobe/gaussd/internal/ls460"
)

// Snapshot is one published view of the instrument. Field values are in
// millitesla. M is only set when the daemon runs in cached-poll mode;
// the enable flags and range only when extended controls are on.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Mx        float64   `json:"mx"`
	My        float64   `json:"my"`
	Mz        float64   `json:"mz"`
	M         *float64  `json:"m,omitempty"`
	XEnable   *bool     `json:"xenable,omitempty"`
	YEnable   *bool     `json:"yenable,omitempty"`
	ZEnable   *bool     `json:"zenable,omitempty"`
	MeasRange string    `json:"measrange,omitempty"`
	Status    string    `json:"status"` // "ok", "error", "partial_error"
	Errors    []string  `json:"errors,omitempty"`
}

// InstrumentInfo is published retained on every broker (re)connect.
type InstrumentInfo struct {
	Name     string `json:"name"`
	Identity string `json:"identity"` // raw *IDN? response
	LinkType string `json:"linkType"`
	Address  string `json:"address"`
	Mode     string `json:"mode"`
}

// IncomingCommand is the wire shape on the cmd topic.
type IncomingCommand struct {
	ID         string `json:"id,omitempty"`
	Instrument string `json:"instrument,omitempty"` // overridden by topic
	Action     string `json:"action"`               // setEnable, setRange, reset, refresh
	Axis       string `json:"axis,omitempty"`       // X, Y or Z for setEnable
	Value      any    `json:"value,omitempty"`      // bool for setEnable, range name for setRange
}

// Command is a resolved, validated command handed to the instrument loop.
type Command struct {
	ID     string
	Action string
	Axis   ls460.Channel
	On     bool
	Range  ls460.Range
}

type CommandPusher interface {
	PushCommand(cmd Command) bool
}

type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap Snapshot) error
}

type CommandSubscriber interface {
	OnCommand(ctx context.Context, command IncomingCommand) error
}
