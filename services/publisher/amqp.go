package publisher

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sjsage522/cinemagoworker/logger"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
)

// AMQPPublisher implements Publisher on a durable RabbitMQ queue. Messages
// go through the default exchange with the queue name as routing key.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   *logger.Logger
}

// NewAMQPPublisher dials the broker and declares the queue
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, apperrors.NewPublisher("amqp", "dial failed", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperrors.NewPublisher("amqp", "channel open failed", err)
	}

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, apperrors.NewPublisher("amqp", "queue declare failed", err)
	}

	return &AMQPPublisher{
		conn:  conn,
		ch:    ch,
		queue: queue,
		log:   logger.ForPublisher().WithField("queue", queue),
	}, nil
}

// Publish implements Publisher. key becomes the message type.
func (p *AMQPPublisher) Publish(ctx context.Context, key string, message []byte) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         key,
		Body:         message,
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn().Err(err).Msg("Publish failed")
		return apperrors.NewPublisher("amqp", "publish failed", err)
	}
	return nil
}

// TrimStreams implements Publisher. Queues are drained by consumers, there
// is nothing to trim.
func (p *AMQPPublisher) TrimStreams(context.Context) error {
	return nil
}

// Close implements Publisher
func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil && !p.conn.IsClosed() {
		p.log.Warn().Err(err).Msg("Channel close failed")
	}
	return p.conn.Close()
}
