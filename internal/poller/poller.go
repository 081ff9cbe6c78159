package poller

import (
	"context"
	"sync"
	"time"

	"github.com/fieldprobe/gaussd/internal/config"
	"github.com/fieldprobe/gaussd/internal/gauss"
	"github.com/fieldprobe/gaussd/internal/logging"
	"github.com/fieldprobe/gaussd/internal/ls460"
)

type zeroSignal struct{}

// teslaToMilli converts instrument-native Tesla readings to the millitesla
// values the remote surface reports.
const teslaToMilli = 1e3

// InstrumentPoller drives all traffic to the gaussmeter from one loop: a
// ticker feeds the poll signal channel, remote commands arrive on the command
// channel, and a single select drains both. The instrument's globally
// selected channel makes interleaved access unsafe, so this loop is the only
// caller of the device.
type InstrumentPoller struct {
	cfg       *config.Config
	dev       *ls460.Device
	publisher gauss.SnapshotPublisher

	cmdCh  chan gauss.Command
	pollCh chan zeroSignal

	// Last successful aggregate parse (Tesla), cached-poll mode only.
	// Readers never touch the bus.
	mu         sync.RWMutex
	cache      [4]float64
	cacheValid bool
}

func New(cfg *config.Config, dev *ls460.Device, publisher gauss.SnapshotPublisher) *InstrumentPoller {
	return &InstrumentPoller{
		cfg:       cfg,
		dev:       dev,
		publisher: publisher,
		cmdCh:     make(chan gauss.Command, cfg.CommandBufferSize),
		pollCh:    make(chan zeroSignal, 1),
	}
}

// Start runs the poll loop until ctx is done. Call it from its own goroutine.
func (p *InstrumentPoller) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(p.cfg.PollInterval())
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				select {
				case p.pollCh <- zeroSignal{}: // drop the tick if one is queued
				default:
				}
			}
		}
	}()

	logging.Info("Instrument poller started",
		"instrument", p.cfg.Instrument,
		"mode", p.cfg.Mode,
		"poll", p.cfg.PollInterval().Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			logging.Info("Instrument poller stopped", "instrument", p.cfg.Instrument)
			return
		case cmd := <-p.cmdCh:
			p.handleCommand(ctx, cmd)
		case <-p.pollCh:
			p.pollOnce(ctx)
		}
	}
}

// FieldValues returns the cached [X, Y, Z, magnitude] readings in Tesla and
// whether any aggregate poll has succeeded yet.
func (p *InstrumentPoller) FieldValues() ([4]float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache, p.cacheValid
}

func (p *InstrumentPoller) pollOnce(ctx context.Context) {
	snap := gauss.Snapshot{
		Timestamp: time.Now(),
		Name:      p.cfg.Instrument,
		Status:    "ok",
	}

	if p.cfg.CacheFields() {
		p.refreshCache(&snap)
	} else {
		p.measureChannels(&snap)
	}

	if p.cfg.ExtendedControls() {
		p.readControls(&snap)
	}

	if err := p.publisher.PublishSnapshot(ctx, snap); err != nil {
		logging.Warn("Failed to publish snapshot", "instrument", p.cfg.Instrument, "error", err)
	}
}

// refreshCache runs one aggregate query and overwrites the cache wholesale.
// A malformed response (typically a bus timeout) is recovered locally: warn,
// clear the connection so the next tick can succeed, and fall back to the
// previous cache. No error reaches the snapshot readers.
func (p *InstrumentPoller) refreshCache(snap *gauss.Snapshot) {
	vals, err := p.dev.ReadAll()
	if err != nil {
		logging.Warn("Aggregate poll failed, clearing connection",
			"instrument", p.cfg.Instrument, "error", err)
		if cerr := p.dev.ClearLink(); cerr != nil {
			logging.Warn("Connection clear failed", "instrument", p.cfg.Instrument, "error", cerr)
		}
	} else {
		p.mu.Lock()
		p.cache = vals
		p.cacheValid = true
		p.mu.Unlock()
	}

	cached, ok := p.FieldValues()
	if !ok {
		snap.Status = "error"
		snap.Errors = append(snap.Errors, "no successful aggregate poll yet")
		return
	}
	snap.Mx = cached[0] * teslaToMilli
	snap.My = cached[1] * teslaToMilli
	snap.Mz = cached[2] * teslaToMilli
	m := cached[3] * teslaToMilli
	snap.M = &m
}

// measureChannels reads X, Y and Z one by one, two round trips each.
func (p *InstrumentPoller) measureChannels(snap *gauss.Snapshot) {
	targets := [3]*float64{&snap.Mx, &snap.My, &snap.Mz}
	failed := 0
	for i, ch := range ls460.Channels {
		v, err := p.dev.Measure(ch)
		if err != nil {
			logging.Error("Measurement failed", "instrument", p.cfg.Instrument, "channel", ch, "error", err)
			snap.Errors = append(snap.Errors, string(ch)+": "+err.Error())
			failed++
			continue
		}
		*targets[i] = v * teslaToMilli
	}
	if failed == len(ls460.Channels) {
		snap.Status = "error"
	} else if failed > 0 {
		snap.Status = "partial_error"
	}
}

// readControls fills in the enable flags and measurement range.
func (p *InstrumentPoller) readControls(snap *gauss.Snapshot) {
	targets := [3]**bool{&snap.XEnable, &snap.YEnable, &snap.ZEnable}
	for i, ch := range ls460.Channels {
		on, err := p.dev.Enabled(ch)
		if err != nil {
			logging.Error("Enable readback failed", "instrument", p.cfg.Instrument, "channel", ch, "error", err)
			snap.Errors = append(snap.Errors, string(ch)+" enable: "+err.Error())
			if snap.Status == "ok" {
				snap.Status = "partial_error"
			}
			continue
		}
		v := on
		*targets[i] = &v
	}

	r, err := p.dev.MeasRange()
	if err != nil {
		logging.Error("Range readback failed", "instrument", p.cfg.Instrument, "error", err)
		snap.Errors = append(snap.Errors, "measrange: "+err.Error())
		if snap.Status == "ok" {
			snap.Status = "partial_error"
		}
		return
	}
	snap.MeasRange = r.String()
}
