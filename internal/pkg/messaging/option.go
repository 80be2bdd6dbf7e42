package messaging

type consumeOptions struct {
	concurrency  int
	maxInFlight  int
	autoAck      bool
	group        string // kafka
	channel      string // nsq
	queueGroup   string // nats
	subscription string // pubsub
}

type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{concurrency: 1, maxInFlight: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	if co.concurrency < 1 {
		co.concurrency = 1
	}
	if co.maxInFlight < co.concurrency {
		co.maxInFlight = co.concurrency
	}
	return co
}

func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

func WithMaxInFlight(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = n }
}

// WithAutoAck acks when the handler returns nil and nacks otherwise.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

func WithChannel(channel string) ConsumeOption {
	return func(o *consumeOptions) { o.channel = channel }
}

func WithQueueGroup(queueGroup string) ConsumeOption {
	return func(o *consumeOptions) { o.queueGroup = queueGroup }
}

func WithSubscription(name string) ConsumeOption {
	return func(o *consumeOptions) { o.subscription = name }
}
