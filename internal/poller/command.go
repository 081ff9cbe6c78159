package poller

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldprobe/gaussd/internal/gauss"
	"github.com/fieldprobe/gaussd/internal/logging"
	"github.com/fieldprobe/gaussd/internal/ls460"
)

// OnCommand resolves an incoming cmd-topic message into a validated command
// and queues it for the instrument loop. Validation happens here so a bad
// payload never occupies the bus.
func (p *InstrumentPoller) OnCommand(ctx context.Context, command gauss.IncomingCommand) error {
	if command.Instrument != "" && command.Instrument != p.cfg.Instrument {
		return fmt.Errorf("instrument not served here: %s", command.Instrument)
	}

	cmd := gauss.Command{ID: command.ID, Action: strings.ToLower(command.Action)}

	switch cmd.Action {
	case "setenable":
		if !p.cfg.ExtendedControls() {
			return fmt.Errorf("setEnable rejected: extended controls disabled (mode=%s)", p.cfg.Mode)
		}
		ch, err := ls460.ParseChannel(command.Axis)
		if err != nil {
			return err
		}
		on, err := toBool(command.Value)
		if err != nil {
			return fmt.Errorf("setEnable value: %w", err)
		}
		cmd.Axis = ch
		cmd.On = on

	case "setrange":
		if !p.cfg.ExtendedControls() {
			return fmt.Errorf("setRange rejected: extended controls disabled (mode=%s)", p.cfg.Mode)
		}
		name, ok := command.Value.(string)
		if !ok {
			return fmt.Errorf("setRange value must be a range name, got %T", command.Value)
		}
		r, err := ls460.ParseRange(name)
		if err != nil {
			return err
		}
		cmd.Range = r

	case "reset", "refresh":

	default:
		return fmt.Errorf("unknown command action: %s", command.Action)
	}

	logging.Debug("Queueing command", "instrument", p.cfg.Instrument, "action", cmd.Action, "id", cmd.ID)
	if !p.PushCommand(cmd) {
		return fmt.Errorf("command buffer full for instrument: %s", p.cfg.Instrument)
	}
	return nil
}

func (p *InstrumentPoller) PushCommand(cmd gauss.Command) bool {
	select {
	case p.cmdCh <- cmd:
		return true
	default:
		return false
	}
}

func (p *InstrumentPoller) handleCommand(ctx context.Context, c gauss.Command) {
	switch c.Action {
	case "setenable":
		if err := p.dev.SetEnabled(c.Axis, c.On); err != nil {
			logging.Error("setEnable failed", "instrument", p.cfg.Instrument, "channel", c.Axis, "error", err)
			return
		}
		p.pollOnce(ctx) // republish so the new flag shows up promptly

	case "setrange":
		if err := p.dev.SetMeasRange(c.Range); err != nil {
			logging.Error("setRange failed", "instrument", p.cfg.Instrument, "range", c.Range, "error", err)
			return
		}
		p.pollOnce(ctx)

	case "reset":
		if err := p.dev.Reset(); err != nil {
			logging.Error("reset failed", "instrument", p.cfg.Instrument, "error", err)
		}

	case "refresh":
		p.pollOnce(ctx)

	default:
		logging.Warn("Unknown command action", "action", c.Action)
	}
}

// toBool accepts JSON true/false, 0/1 numbers and "0"/"1"/"true"/"false"
// strings, the shapes remote clients actually send.
func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		switch t {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "0", "false", "off":
			return false, nil
		case "1", "true", "on":
			return true, nil
		}
	}
	return false, fmt.Errorf("cannot interpret %v (%T) as bool", v, v)
}
