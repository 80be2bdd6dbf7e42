// Package messaging hides the message broker behind a small publish/consume API.
package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned when the broker cannot honour a publish setting, e.g. Delay.
	ErrUnsupported      = errors.New("messaging: unsupported operation")
	ErrTopicRequired    = errors.New("messaging: topic is required")
	ErrHandlerRequired  = errors.New("messaging: handler is required")
	ErrConsumerRequired = errors.New("messaging: consumer group or channel is required")
	ErrClosed           = errors.New("messaging: client closed")
)

type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}

type Consumer interface {
	// Consume blocks until ctx is cancelled or the broker connection fails.
	Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error
}

type Handler func(ctx context.Context, d Delivery) error

// Envelope is an outgoing message.
type Envelope struct {
	Key     []byte
	Body    []byte
	Headers map[string]string
	Delay   time.Duration
}

// Delivery is a received message. Ack and Nack are idempotent; the first call wins.
type Delivery interface {
	Topic() string
	Body() []byte
	Header(key string) string
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}
