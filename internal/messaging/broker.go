package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldprobe/gaussd/internal/logging"
)

type BrokerConfig struct {
	BrokerURL        string
	ClientName       string
	TopicPrefix      string
	ConnectTimeout   time.Duration
	PublishTimeout   time.Duration
	SubscribeTimeout time.Duration
}

type MsgBroker struct {
	config         BrokerConfig
	client         mqtt.Client
	mu             sync.RWMutex
	onConnectFuncs map[string]OnConnectPublisher
}

func NewBroker(cfg BrokerConfig) *MsgBroker {
	return &MsgBroker{
		config:         cfg,
		onConnectFuncs: make(map[string]OnConnectPublisher),
	}
}

func (b *MsgBroker) Topic(parts ...string) string {
	return b.config.TopicPrefix + "/" + strings.Join(parts, "/")
}

func (b *MsgBroker) AddOnConnectPublisher(id string, fn OnConnectPublisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onConnectFuncs[id] = fn
}

func (b *MsgBroker) Connect(ctx context.Context) error {
	if b.client == nil {
		opts := mqtt.NewClientOptions().AddBroker(b.config.BrokerURL)
		opts.SetClientID("gaussd-" + b.config.ClientName)
		opts.SetAutoReconnect(true)
		opts.OnConnect = func(mqtt.Client) { b.runOnConnectPublishers() }
		b.client = mqtt.NewClient(opts)
	}
	if b.client.IsConnected() {
		return nil
	}

	token := b.client.Connect()
	timeout := b.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(timeout):
		return fmt.Errorf("mqtt connect timeout after %v", timeout)
	case <-ctx.Done():
		b.client.Disconnect(250)
		return ctx.Err()
	}
}

func (b *MsgBroker) runOnConnectPublishers() {
	b.mu.RLock()
	funcs := make(map[string]OnConnectPublisher, len(b.onConnectFuncs))
	for id, fn := range b.onConnectFuncs {
		funcs[id] = fn
	}
	b.mu.RUnlock()

	for id, fn := range funcs {
		req, err := fn()
		if err != nil {
			logging.Error("onConnect publisher failed", "client", b.config.ClientName, "id", id, "error", err)
			continue
		}
		ctx := req.Context
		if ctx == nil {
			ctx = context.Background()
		}
		if err := b.PublishJSON(ctx, req.Topic, req.Qos, req.Retain, req.Payload); err != nil {
			logging.Error("onConnect publish failed", "client", b.config.ClientName, "id", id, "topic", req.Topic, "error", err)
		}
	}
}

func (b *MsgBroker) IsConnected() bool {
	return b.client != nil && b.client.IsConnected()
}

func (b *MsgBroker) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		// 250 ms quiesce period
		b.client.Disconnect(250)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MsgBroker) Publish(ctx context.Context, topic string, qos QoS, retain bool, payload []byte) error {
	if b.client == nil {
		return errors.New("client not initialized")
	}
	token := b.client.Publish(topic, byte(qos), retain, payload)
	timeout := b.config.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(timeout):
		return fmt.Errorf("publish timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MsgBroker) PublishJSON(ctx context.Context, topic string, qos QoS, retain bool, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(ctx, topic, qos, retain, data)
}

// Subscribe registers the handler and waits for the SUBACK with a timeout.
// Handler panics are logged, not fatal.
func (b *MsgBroker) Subscribe(ctx context.Context, topic string, qos QoS, handler Handler) (Subscription, error) {
	if b.client == nil {
		return nil, errors.New("client not initialized")
	}
	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error("mqtt handler panic", "client", b.config.ClientName, "topic", msg.Topic(), "err", r)
				}
			}()
			handler(ctx, msg.Topic(), msg.Payload())
		}()
	}
	token := b.client.Subscribe(topic, byte(qos), onMessage)

	timeout := b.config.SubscribeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, err
		}
		return &msgSubscription{broker: b, topic: topic}, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("subscribe timeout for %s", topic)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type msgSubscription struct {
	broker *MsgBroker
	topic  string
}

func (s *msgSubscription) Unsubscribe(ctx context.Context) error {
	token := s.broker.client.Unsubscribe(s.topic)
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(3 * time.Second):
		return fmt.Errorf("unsubscribe timeout for %s", s.topic)
	case <-ctx.Done():
		return ctx.Err()
	}
}
