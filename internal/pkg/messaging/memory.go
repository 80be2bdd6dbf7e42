package messaging

import (
	"context"
	"maps"
	"sync"
)

// Memory is an in-process broker. Every Consume call on a topic receives every
// message published to it after the call registered. Unacked messages are dropped.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string][]chan Delivery
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: map[string][]chan Delivery{}}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *Memory) Publish(ctx context.Context, topic string, env Envelope) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if env.Delay > 0 {
		return ErrUnsupported
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	for _, ch := range m.subs[topic] {
		d := &memoryDelivery{topic: topic, body: append([]byte(nil), env.Body...), headers: maps.Clone(env.Headers)}
		select {
		case ch <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if h == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	in := make(chan Delivery, co.maxInFlight)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.subs[topic] = append(m.subs[topic], in)
	m.mu.Unlock()

	wg := dispatch(ctx, DriverMemory, co.concurrency, in, h, co.autoAck)
	<-ctx.Done()

	m.mu.Lock()
	subs := m.subs[topic]
	for i := range subs {
		if subs[i] == in {
			m.subs[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(in)
	m.mu.Unlock()

	wg.Wait()
	return ctx.Err()
}

// Subscribed reports how many consumers are registered on topic.
func (m *Memory) Subscribed(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[topic])
}

type memoryDelivery struct {
	settled
	topic   string
	body    []byte
	headers map[string]string
}

func (d *memoryDelivery) Topic() string            { return d.topic }
func (d *memoryDelivery) Body() []byte             { return d.body }
func (d *memoryDelivery) Header(key string) string { return d.headers[key] }

func (d *memoryDelivery) Ack(ctx context.Context) error {
	return d.settle(ctx, func() error { return nil })
}

func (d *memoryDelivery) Nack(ctx context.Context) error {
	return d.settle(ctx, func() error { return nil })
}
