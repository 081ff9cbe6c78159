package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/fieldprobe/gaussd/internal/gauss"
	"github.com/fieldprobe/gaussd/internal/logging"
	"github.com/fieldprobe/gaussd/internal/state"
)

// InstrumentBroker is the daemon-facing broker: it publishes snapshots with
// change suppression and feeds cmd-topic messages to the instrument loop.
type InstrumentBroker interface {
	Broker
	gauss.SnapshotPublisher
	StartCommandSubscriber(ctx context.Context, subscriber gauss.CommandSubscriber) error
}

type instrumentBroker struct {
	*MsgBroker
	store             state.SnapshotStore
	heartbeatInterval time.Duration
	subscriber        gauss.CommandSubscriber
}

func NewInstrumentBroker(cfg BrokerConfig, info OnConnectPublisher, heartbeatInterval time.Duration) InstrumentBroker {
	b := &instrumentBroker{
		MsgBroker:         NewBroker(cfg),
		store:             state.NewSnapshotStore(),
		heartbeatInterval: heartbeatInterval,
	}
	b.AddOnConnectPublisher("info", info)
	return b
}

func (b *instrumentBroker) StartCommandSubscriber(ctx context.Context, subscriber gauss.CommandSubscriber) error {
	b.subscriber = subscriber
	_, err := b.Subscribe(ctx, b.Topic("cmd"), AtLeastOnce, b.onCommandMessage)
	return err
}

// PublishSnapshot sends the snapshot when it differs from the last published
// one, or when the heartbeat interval has elapsed without traffic.
func (b *instrumentBroker) PublishSnapshot(ctx context.Context, snap gauss.Snapshot) error {
	isChanged := b.store.HasChanged(snap)
	needsHeartbeat := false
	if !isChanged && b.heartbeatInterval > 0 {
		_, lastSent, hasPrev := b.store.GetLast()
		needsHeartbeat = !hasPrev || time.Since(lastSent) > b.heartbeatInterval
	}
	if !isChanged && !needsHeartbeat {
		return nil
	}

	logging.Debug("Publishing snapshot", "snapshot", snap)
	err := b.PublishJSON(ctx, b.Topic("state"), FireAndForget, true, snap)
	if err == nil {
		b.store.Update(snap)
	}
	return err
}

func (b *instrumentBroker) onCommandMessage(ctx context.Context, topic string, payload []byte) {
	logging.Debug("Received cmd message", "topic", topic)

	// gauss/<instrument>/cmd
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		logging.Warn("cmd topic malformed", "topic", topic)
		return
	}

	var cmd gauss.IncomingCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		logging.Warn("cmd json", "error", err)
		return
	}
	cmd.Instrument = parts[len(parts)-2]
	if err := b.subscriber.OnCommand(ctx, cmd); err != nil {
		logging.Warn("cmd handling", "error", err)
	}
}
