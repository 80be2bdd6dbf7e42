package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
}

type Kafka struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("messaging: kafka brokers are required")
	}

	return &Kafka{brokers: cfg.Brokers, writers: map[string]*kafka.Writer{}}, nil
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true

	var err error
	for _, w := range k.writers {
		err = errors.Join(err, w.Close())
	}
	k.writers = nil
	return err
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = w
	return w, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, env Envelope) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if env.Delay > 0 {
		return ErrUnsupported
	}

	w, err := k.writer(topic)
	if err != nil {
		return err
	}

	msg := kafka.Message{Key: env.Key, Value: env.Body, Time: time.Now()}
	for key, v := range env.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(v)})
	}

	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return nil
}

// Consume reads with a consumer group. Acked messages are committed; nacked ones
// are left uncommitted and come back after a rebalance or restart.
func (k *Kafka) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case topic == "":
		return ErrTopicRequired
	case h == nil:
		return ErrHandlerRequired
	case co.group == "":
		return ErrConsumerRequired
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  co.group,
		Topic:    topic,
		MaxBytes: 10e6,
	})

	in := make(chan Delivery, co.maxInFlight)
	wg := dispatch(ctx, DriverKafka, co.concurrency, in, h, co.autoAck)

	var fetchErr error
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			fetchErr = err
			break
		}
		in <- &kafkaDelivery{reader: reader, msg: m}
	}

	close(in)
	wg.Wait()
	cerr := reader.Close()

	if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) {
		return errors.Join(fetchErr, cerr)
	}
	return errors.Join(fmt.Errorf("messaging: kafka consume: %w", fetchErr), cerr)
}

type kafkaDelivery struct {
	settled
	reader *kafka.Reader
	msg    kafka.Message
}

func (d *kafkaDelivery) Topic() string { return d.msg.Topic }
func (d *kafkaDelivery) Body() []byte  { return d.msg.Value }

func (d *kafkaDelivery) Header(key string) string {
	for _, h := range d.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (d *kafkaDelivery) Ack(ctx context.Context) error {
	return d.settle(ctx, func() error { return d.reader.CommitMessages(ctx, d.msg) })
}

func (d *kafkaDelivery) Nack(ctx context.Context) error {
	return d.settle(ctx, func() error { return nil })
}
