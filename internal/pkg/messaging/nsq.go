package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	nsq "github.com/nsqio/go-nsq"
)

// NSQConfig configures NSQ. Consumers connect to lookupd when LookupdAddrs is set,
// otherwise directly to NSQDAddrs.
type NSQConfig struct {
	ProducerAddr string
	NSQDAddrs    []string
	LookupdAddrs []string
}

// NSQ carries the message body only; Envelope headers are not transmitted.
type NSQ struct {
	cfg      NSQConfig
	producer *nsq.Producer

	mu        sync.Mutex
	consumers []*nsq.Consumer
	closed    bool
}

func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	n := &NSQ{cfg: cfg}
	if cfg.ProducerAddr == "" {
		return n, nil
	}

	p, err := nsq.NewProducer(cfg.ProducerAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq producer: %w", err)
	}
	p.SetLoggerLevel(nsq.LogLevelError)
	n.producer = p

	return n, nil
}

func (n *NSQ) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	consumers := n.consumers
	n.consumers = nil
	n.mu.Unlock()

	for _, c := range consumers {
		c.Stop()
		<-c.StopChan
	}
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

func (n *NSQ) Publish(ctx context.Context, topic string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if n.producer == nil {
		return errors.New("messaging: nsq producer address is required")
	}

	var err error
	if env.Delay > 0 {
		err = n.producer.DeferredPublish(topic, env.Delay, env.Body)
	} else {
		err = n.producer.Publish(topic, env.Body)
	}
	if err != nil {
		return fmt.Errorf("messaging: nsq publish: %w", err)
	}
	return nil
}

func (n *NSQ) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case topic == "":
		return ErrTopicRequired
	case h == nil:
		return ErrHandlerRequired
	case co.channel == "":
		return ErrConsumerRequired
	}

	cfg := nsq.NewConfig()
	cfg.MaxInFlight = co.maxInFlight

	c, err := nsq.NewConsumer(topic, co.channel, cfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq consumer: %w", err)
	}
	c.SetLoggerLevel(nsq.LogLevelError)

	c.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()
		d := &nsqDelivery{topic: topic, msg: m}
		herr := handleSafely(ctx, DriverNSQ, h, d)
		if co.autoAck && !d.isSettled() {
			if herr == nil {
				return d.Ack(ctx)
			}
			return d.Nack(ctx)
		}
		return nil
	}), co.concurrency)

	if err := n.track(c); err != nil {
		return err
	}

	if len(n.cfg.LookupdAddrs) > 0 {
		err = c.ConnectToNSQLookupds(n.cfg.LookupdAddrs)
	} else {
		err = c.ConnectToNSQDs(n.cfg.NSQDAddrs)
	}
	if err != nil {
		c.Stop()
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		c.Stop()
		<-c.StopChan
		return ctx.Err()
	case <-c.StopChan:
		return nil
	}
}

func (n *NSQ) track(c *nsq.Consumer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	n.consumers = append(n.consumers, c)
	return nil
}

type nsqDelivery struct {
	settled
	topic string
	msg   *nsq.Message
}

func (d *nsqDelivery) Topic() string        { return d.topic }
func (d *nsqDelivery) Body() []byte         { return d.msg.Body }
func (d *nsqDelivery) Header(string) string { return "" }

func (d *nsqDelivery) Ack(ctx context.Context) error {
	return d.settle(ctx, func() error { d.msg.Finish(); return nil })
}

func (d *nsqDelivery) Nack(ctx context.Context) error {
	return d.settle(ctx, func() error { d.msg.Requeue(-1); return nil })
}
