package messaging

import "context"

type QoS byte

const (
	AtMostOnce    QoS = 0
	FireAndForget QoS = 0
	AtLeastOnce   QoS = 1
	ExactlyOnce   QoS = 2
)

// Subscription is returned by Subscribe; you can Unsubscribe later.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}

type Handler func(ctx context.Context, topic string, payload []byte)

type Broker interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Publish(ctx context.Context, topic string, qos QoS, retain bool, payload []byte) error
	PublishJSON(ctx context.Context, topic string, qos QoS, retain bool, v interface{}) error
	Subscribe(ctx context.Context, topic string, qos QoS, handler Handler) (Subscription, error)
	IsConnected() bool
	Topic(parts ...string) string
}

// OnConnectPublisher builds a message to publish every time the MQTT session
// is (re)established, typically retained metadata.
type OnConnectPublisher func() (PublishRequest, error)

type PublishRequest struct {
	// If Context is nil, context.Background() is used
	Context context.Context
	Topic   string
	Qos     QoS
	Retain  bool
	Payload interface{}
}
