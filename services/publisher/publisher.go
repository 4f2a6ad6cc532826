package publisher

import (
	"context"

	"sjsage522/cinemagoworker/config"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message under key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// New creates the publisher selected by cfg.Publisher
func New(cfg *config.Config) (Publisher, error) {
	switch cfg.Publisher {
	case "redis":
		return NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		), nil
	case "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	case "none", "":
		return NoopPublisher{}, nil
	default:
		return nil, apperrors.NewConfiguration("unknown publisher "+cfg.Publisher, nil)
	}
}

// NoopPublisher discards every message
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

// TrimStreams implements Publisher
func (NoopPublisher) TrimStreams(context.Context) error { return nil }

// Close implements Publisher
func (NoopPublisher) Close() error { return nil }
