package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

var ErrPubSubProjectIDRequired = errors.New("messaging: pubsub project id is required")

// PubSubConfig configures the Google Pub/Sub driver. Client wins over
// ProjectID and ClientOptions when set.
type PubSubConfig struct {
	ProjectID     string
	Client        *pubsub.Client
	ClientOptions []option.ClientOption
}

// PubSub publishes to topics and consumes from subscriptions. The
// subscription defaults to the topic name unless WithSubscription is given.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	closed     bool
	publishers map[string]*pubsub.Publisher
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.Client != nil {
		return &PubSub{client: cfg.Client, publishers: map[string]*pubsub.Publisher{}}, nil
	}
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	c, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("messaging: pubsub new client: %w", err)
	}

	return &PubSub{client: c, publishers: map[string]*pubsub.Publisher{}}, nil
}

func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubs := p.publishers
	p.publishers = nil
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}

	return p.client.Close()
}

// Publish waits for the server id. Envelope.Key becomes the ordering key so
// events of one account stay in order.
func (p *PubSub) Publish(ctx context.Context, topic string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if env.Delay > 0 {
		return ErrUnsupported
	}

	pub, err := p.publisher(topic)
	if err != nil {
		return err
	}

	key := string(env.Key)
	res := pub.Publish(ctx, &pubsub.Message{
		Data:        env.Body,
		Attributes:  env.Headers,
		OrderingKey: key,
	})
	if _, err := res.Get(ctx); err != nil {
		if key != "" {
			pub.ResumePublish(key)
		}
		return fmt.Errorf("messaging: pubsub publish: %w", err)
	}

	return nil
}

func (p *PubSub) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if h == nil {
		return ErrHandlerRequired
	}
	if err := p.ensureOpen(); err != nil {
		return err
	}

	co := newConsumeOptions(opts...)
	name := co.subscription
	if name == "" {
		name = topic
	}

	sub := p.client.Subscriber(name)
	sub.ReceiveSettings.NumGoroutines = co.concurrency
	sub.ReceiveSettings.MaxOutstandingMessages = co.maxInFlight

	err := sub.Receive(ctx, func(mctx context.Context, m *pubsub.Message) {
		d := &pubsubDelivery{topic: topic, msg: m}
		herr := handleSafely(mctx, DriverPubSub, h, d)
		if !co.autoAck || d.isSettled() {
			return
		}
		if herr == nil {
			_ = d.Ack(mctx) //nolint:errcheck // pubsub redelivers after the ack deadline
		} else {
			_ = d.Nack(mctx) //nolint:errcheck // pubsub redelivers after the ack deadline
		}
	})
	if err != nil {
		return fmt.Errorf("messaging: pubsub receive: %w", err)
	}

	return ctx.Err()
}

func (p *PubSub) publisher(topic string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if pub, ok := p.publishers[topic]; ok {
		return pub, nil
	}

	pub := p.client.Publisher(topic)
	pub.EnableMessageOrdering = true
	p.publishers[topic] = pub
	return pub, nil
}

func (p *PubSub) ensureOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	return nil
}

type pubsubDelivery struct {
	settled
	topic string
	msg   *pubsub.Message
}

func (d *pubsubDelivery) Topic() string { return d.topic }
func (d *pubsubDelivery) Body() []byte  { return d.msg.Data }

func (d *pubsubDelivery) Header(key string) string {
	return d.msg.Attributes[key]
}

func (d *pubsubDelivery) Ack(ctx context.Context) error {
	return d.settle(ctx, func() error { d.msg.Ack(); return nil })
}

func (d *pubsubDelivery) Nack(ctx context.Context) error {
	return d.settle(ctx, func() error { d.msg.Nack(); return nil })
}
