package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverNSQ    = "nsq"
	DriverNATS   = "nats"
	DriverKafka  = "kafka"
	DriverPubSub = "pubsub"
	DriverMemory = "memory"
)

var ErrUnknownDriver = errors.New("messaging: unknown driver")

type FactoryOptions struct {
	NSQ    NSQConfig
	NATS   NATSConfig
	Kafka  KafkaConfig
	PubSub PubSubConfig
}

func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverNSQ:
		return NewNSQ(opts.NSQ)
	case DriverNATS:
		return NewNATS(opts.NATS)
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverPubSub:
		return NewPubSub(ctx, opts.PubSub)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
