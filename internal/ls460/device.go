// Package ls460 speaks the Lakeshore Model 460 three-axis gaussmeter command
// protocol. The instrument keeps one globally selected channel; every
// channel-scoped operation here issues its own CHNL select first, so callers
// never have to reason about which channel a previous call left active.
package ls460

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Transport is the single-line command/query link to the instrument. It is
// implemented by gpib.Link; tests substitute a scripted fake.
type Transport interface {
	Query(cmd string) (string, error)
	Command(cmd string) error
	Clear() error
}

// Channel identifies one of the three probe inputs.
type Channel string

const (
	ChannelX Channel = "X"
	ChannelY Channel = "Y"
	ChannelZ Channel = "Z"
)

// Channels lists the probe inputs in instrument order.
var Channels = [3]Channel{ChannelX, ChannelY, ChannelZ}

func ParseChannel(s string) (Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return ChannelX, nil
	case "Y":
		return ChannelY, nil
	case "Z":
		return ChannelZ, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// ErrUnknownModel is returned by Identify when the *IDN? response does not
// name a Model 460.
var ErrUnknownModel = errors.New("not a Lakeshore Model 460")

const modelMarker = "MODEL460"

// unitMultipliers maps the FIELDM? prefix character to a scale factor. The
// table is total over everything the instrument can answer; anything else is
// an error, never silently scale 1.
var unitMultipliers = map[string]float64{
	"u": 1e-6,
	"m": 1e-3,
	"":  1,
	"k": 1e3,
}

func multiplierScale(prefix string) (float64, error) {
	scale, ok := unitMultipliers[strings.TrimSpace(prefix)]
	if !ok {
		return 0, fmt.Errorf("unknown field multiplier prefix %q", prefix)
	}
	return scale, nil
}

// Device is the protocol-level adapter for one Model 460.
type Device struct {
	tr Transport
}

func New(tr Transport) *Device {
	return &Device{tr: tr}
}

// Identify queries *IDN? and verifies the model marker. The full
// identification string is returned for logging and the info topic.
func (d *Device) Identify() (string, error) {
	idn, err := d.tr.Query("*IDN?")
	if err != nil {
		return "", fmt.Errorf("identification query: %w", err)
	}
	if !strings.Contains(idn, modelMarker) {
		return idn, fmt.Errorf("%w: %q", ErrUnknownModel, idn)
	}
	return idn, nil
}

// Configure sets every channel's unit to Tesla so numeric readings are
// unit-consistent. Idempotent; also re-run after Reset.
func (d *Device) Configure() error {
	for _, ch := range Channels {
		if err := d.selectChannel(ch); err != nil {
			return err
		}
		if err := d.tr.Command("UNIT T"); err != nil {
			return fmt.Errorf("channel %s: set unit: %w", ch, err)
		}
	}
	return nil
}

func (d *Device) selectChannel(ch Channel) error {
	if err := d.tr.Command("CHNL " + string(ch)); err != nil {
		return fmt.Errorf("select channel %s: %w", ch, err)
	}
	return nil
}

// Measure selects the channel and reads one field value in Tesla: the
// FIELDM? multiplier prefix times the FIELD? numeric reading. Two bus round
// trips per call, no caching.
func (d *Device) Measure(ch Channel) (float64, error) {
	if err := d.selectChannel(ch); err != nil {
		return 0, err
	}
	prefix, err := d.tr.Query("FIELDM?")
	if err != nil {
		return 0, fmt.Errorf("channel %s: field multiplier: %w", ch, err)
	}
	scale, err := multiplierScale(prefix)
	if err != nil {
		return 0, fmt.Errorf("channel %s: %w", ch, err)
	}
	raw, err := d.tr.Query("FIELD?")
	if err != nil {
		return 0, fmt.Errorf("channel %s: field reading: %w", ch, err)
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("channel %s: parse field reading %q: %w", ch, raw, err)
	}
	return scale * val, nil
}

// ReadAll issues the aggregate ALLF? query and returns the four
// comma-separated readings (X, Y, Z, magnitude) in Tesla. A short, empty or
// non-numeric response is a parse error; the caller decides what to do with
// the stale cache.
func (d *Device) ReadAll() ([4]float64, error) {
	var vals [4]float64
	raw, err := d.tr.Query("ALLF?")
	if err != nil {
		return vals, fmt.Errorf("aggregate field query: %w", err)
	}
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) != 4 {
		return vals, fmt.Errorf("aggregate field query: want 4 fields, got %d in %q", len(fields), raw)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return vals, fmt.Errorf("aggregate field query: parse field %d of %q: %w", i, raw, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// enabledFromReadback converts the raw ONOFF? bit to the documented enable
// state. The 460 reports the flag with the sense flipped relative to what it
// accepts on write; the inversion lives here and nowhere else. Do not "fix"
// it without re-validating against hardware.
func enabledFromReadback(raw string) (bool, error) {
	switch strings.TrimSpace(raw) {
	case "0":
		return true, nil
	case "1":
		return false, nil
	}
	return false, fmt.Errorf("parse on/off readback %q", raw)
}

// Enabled reads the channel's enable flag.
func (d *Device) Enabled(ch Channel) (bool, error) {
	if err := d.selectChannel(ch); err != nil {
		return false, err
	}
	raw, err := d.tr.Query("ONOFF?")
	if err != nil {
		return false, fmt.Errorf("channel %s: on/off query: %w", ch, err)
	}
	on, err := enabledFromReadback(raw)
	if err != nil {
		return false, fmt.Errorf("channel %s: %w", ch, err)
	}
	return on, nil
}

// SetEnabled writes the channel's enable flag. The value is sent as given;
// only the read path carries the inversion quirk.
func (d *Device) SetEnabled(ch Channel, on bool) error {
	if err := d.selectChannel(ch); err != nil {
		return err
	}
	v := "0"
	if on {
		v = "1"
	}
	if err := d.tr.Command("ONOFF " + v); err != nil {
		return fmt.Errorf("channel %s: set on/off: %w", ch, err)
	}
	return nil
}

// MeasRange reads the measurement range. The setting is uniform across
// channels, so channel X stands in for all three.
func (d *Device) MeasRange() (Range, error) {
	if err := d.selectChannel(ChannelX); err != nil {
		return 0, err
	}
	auto, err := d.tr.Query("AUTO?")
	if err != nil {
		return 0, fmt.Errorf("auto-range query: %w", err)
	}
	if strings.TrimSpace(auto) == "1" {
		return RangeAuto, nil
	}
	raw, err := d.tr.Query("RANGE?")
	if err != nil {
		return 0, fmt.Errorf("range query: %w", err)
	}
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse range code %q: %w", raw, err)
	}
	return RangeFromCode(code)
}

// SetMeasRange applies the range to all three channels: AUTO enables
// auto-ranging, anything else sets the explicit numeric code.
func (d *Device) SetMeasRange(r Range) error {
	for _, ch := range Channels {
		if err := d.selectChannel(ch); err != nil {
			return err
		}
		if r == RangeAuto {
			if err := d.tr.Command("AUTO 1"); err != nil {
				return fmt.Errorf("channel %s: enable auto-range: %w", ch, err)
			}
			continue
		}
		code, err := r.Code()
		if err != nil {
			return err
		}
		if err := d.tr.Command(fmt.Sprintf("RANGE %d", code)); err != nil {
			return fmt.Errorf("channel %s: set range: %w", ch, err)
		}
	}
	return nil
}

// Reset clears the bus connection, hard-resets the instrument and restores
// the Tesla unit configuration.
func (d *Device) Reset() error {
	if err := d.tr.Clear(); err != nil {
		return fmt.Errorf("clear connection: %w", err)
	}
	if err := d.tr.Command("*RST"); err != nil {
		return fmt.Errorf("instrument reset: %w", err)
	}
	return d.Configure()
}

// ClearLink discards pending bus state without resetting the instrument,
// the poll loop's recovery action after a malformed aggregate response.
func (d *Device) ClearLink() error {
	return d.tr.Clear()
}
