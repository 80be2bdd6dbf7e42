package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

type NATSConfig struct {
	URL     string
	Options []nats.Option
}

type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	closed bool
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("messaging: nats url is required")
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	err := n.conn.Drain()
	n.conn.Close()
	return err
}

func (n *NATS) Publish(ctx context.Context, topic string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if env.Delay > 0 {
		return ErrUnsupported
	}

	msg := nats.NewMsg(topic)
	msg.Data = env.Body
	for k, v := range env.Headers {
		msg.Header.Set(k, v)
	}

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("messaging: nats publish: %w", err)
	}
	return n.conn.FlushWithContext(ctx)
}

func (n *NATS) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if h == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	in := make(chan Delivery, co.maxInFlight)
	wg := dispatch(ctx, DriverNATS, co.concurrency, in, h, co.autoAck)

	sub, err := n.conn.QueueSubscribe(topic, co.queueGroup, func(m *nats.Msg) {
		select {
		case in <- &natsDelivery{msg: m}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		close(in)
		wg.Wait()
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	<-ctx.Done()
	derr := sub.Drain()
	close(in)
	wg.Wait()

	return errors.Join(ctx.Err(), derr)
}

type natsDelivery struct {
	settled
	msg *nats.Msg
}

func (d *natsDelivery) Topic() string { return d.msg.Subject }
func (d *natsDelivery) Body() []byte  { return d.msg.Data }

func (d *natsDelivery) Header(key string) string {
	if d.msg.Header == nil {
		return ""
	}
	return d.msg.Header.Get(key)
}

// Core NATS has no acknowledgements; JetStream bound messages do.
func (d *natsDelivery) Ack(ctx context.Context) error {
	return d.settle(ctx, func() error { return ignoreNoReply(d.msg.Ack()) })
}

func (d *natsDelivery) Nack(ctx context.Context) error {
	return d.settle(ctx, func() error { return ignoreNoReply(d.msg.Nak()) })
}

func ignoreNoReply(err error) error {
	if errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound) {
		return nil
	}
	return err
}
