package main

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

// Instrument emulates a Lakeshore Model 460 well enough for gaussd to talk
// to it, including the Prologix controller chatter a real GPIB-ETHERNET
// adapter would swallow. One Instrument per connection; the protocol is
// stateful (selected channel, pending query reply).
type Instrument struct {
	mu sync.Mutex

	selected int        // 0..2 = X,Y,Z
	field    [3]float64 // Tesla
	enabled  [3]bool
	unit     [3]string // "T" or "G"
	auto     bool
	rng      int // range code 0..3

	autoRead bool   // Prologix ++auto state
	pending  string // queued query reply when autoRead is off

	drift *rand.Rand
}

const simIdentity = "LSCI,MODEL460,0,032801"

func NewInstrument(seed int64) *Instrument {
	ins := &Instrument{
		field: [3]float64{12.3e-3, -4.5e-3, 0.78e-3},
		auto:  true,
		drift: rand.New(rand.NewSource(seed)),
	}
	for i := range ins.enabled {
		ins.enabled[i] = true
		ins.unit[i] = "G" // factory default is Gauss; gaussd configures Tesla
	}
	return ins
}

// HandleLine consumes one received line and returns the reply to send, if
// any. Prologix "++" controller commands are handled here too, so the sim
// can sit behind a real prologix client.
func (ins *Instrument) HandleLine(line string) (string, bool) {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if strings.HasPrefix(line, "++") {
		return ins.handleController(line)
	}

	reply, has := ins.handleInstrument(line)
	if !has {
		return "", false
	}
	if ins.autoRead {
		return reply, true
	}
	ins.pending = reply
	return "", false
}

func (ins *Instrument) handleController(line string) (string, bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "++auto":
		if len(fields) > 1 {
			ins.autoRead = fields[1] == "1"
		}
	case "++read":
		if ins.pending != "" {
			reply := ins.pending
			ins.pending = ""
			return reply, true
		}
	case "++ver":
		return "Prologix GPIB-ETHERNET simulator 1.0", true
	case "++addr":
		if len(fields) == 1 {
			return "12", true
		}
	case "++clr":
		ins.pending = ""
	}
	// ++mode, ++eoi, ++eos, ++read_tmo_ms and friends: accept silently
	return "", false
}

func (ins *Instrument) handleInstrument(line string) (string, bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToUpper(cmd) {
	case "*IDN?":
		return simIdentity, true

	case "*RST":
		ins.selected = 0
		ins.auto = true
		ins.rng = 0
		for i := range ins.enabled {
			ins.enabled[i] = true
			ins.unit[i] = "G"
		}

	case "CHNL":
		switch strings.ToUpper(arg) {
		case "X":
			ins.selected = 0
		case "Y":
			ins.selected = 1
		case "Z":
			ins.selected = 2
		}
	case "CHNL?":
		return string("XYZ"[ins.selected]), true

	case "UNIT":
		if arg != "" {
			ins.unit[ins.selected] = strings.ToUpper(arg)
		}
	case "UNIT?":
		return ins.unit[ins.selected], true

	case "FIELDM?":
		return ins.multiplier(), true

	case "FIELD?":
		return ins.formatField(ins.readField(ins.selected)), true

	case "ALLF?":
		x := ins.readField(0)
		y := ins.readField(1)
		z := ins.readField(2)
		m := math.Sqrt(x*x + y*y + z*z)
		return fmt.Sprintf("%s,%s,%s,%s",
			ins.formatRaw(x), ins.formatRaw(y), ins.formatRaw(z), ins.formatRaw(m)), true

	case "ONOFF":
		if v, err := strconv.Atoi(arg); err == nil {
			ins.enabled[ins.selected] = v != 0
		}
	case "ONOFF?":
		// The real instrument reports the flag inverted; replicate it.
		if ins.enabled[ins.selected] {
			return "0", true
		}
		return "1", true

	case "AUTO":
		ins.auto = arg == "1"
	case "AUTO?":
		if ins.auto {
			return "1", true
		}
		return "0", true

	case "RANGE":
		if v, err := strconv.Atoi(arg); err == nil && v >= 0 && v <= 3 {
			ins.rng = v
			ins.auto = false
		}
	case "RANGE?":
		return strconv.Itoa(ins.rng), true
	}
	return "", false
}

// multiplier is the FIELDM? prefix for the selected channel, tied to the
// active range the way the hardware scales its display.
func (ins *Instrument) multiplier() string {
	code := ins.rng
	if ins.auto {
		code = 1
	}
	switch code {
	case 2:
		return "m"
	case 3:
		return "u"
	}
	return ""
}

func (ins *Instrument) multiplierScale() float64 {
	switch ins.multiplier() {
	case "m":
		return 1e-3
	case "u":
		return 1e-6
	}
	return 1
}

// readField returns the channel value in Tesla with a small random walk so
// watchers see the value move.
func (ins *Instrument) readField(ch int) float64 {
	ins.field[ch] += ins.field[ch] * 0.001 * (ins.drift.Float64() - 0.5)
	return ins.field[ch]
}

// formatField renders a reading in display units, i.e. divided by the
// multiplier prefix FIELDM? reports.
func (ins *Instrument) formatField(tesla float64) string {
	return ins.formatRaw(tesla / ins.multiplierScale())
}

func (ins *Instrument) formatRaw(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
