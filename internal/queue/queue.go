// Package queue moves background jobs between the HTTP handlers and the
// worker pools. Jobs are at-most-once: a failed job is dropped, not requeued.
package queue

import (
	"context"
	"fmt"
	"sync"

	"stakevoice/internal/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one job body.
type Handler func(ctx context.Context, body []byte) error

type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

type Consumer interface {
	// Consume runs handler on the queue until ctx ends.
	Consume(ctx context.Context, handler Handler) error
}

// Producer publishes persistent messages to durable RabbitMQ queues.
type Producer struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

func NewProducer(url string) (*Producer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	return &Producer{conn: conn, ch: ch, declared: make(map[string]bool)}, nil
}

func (p *Producer) Publish(ctx context.Context, queueName string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queueName] {
		if _, err := declare(p.ch, queueName); err != nil {
			return err
		}
		p.declared[queueName] = true
	}

	return p.ch.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Body:         body,
		},
	)
}

func (p *Producer) Close() {
	p.ch.Close()
	p.conn.Close()
}

// AMQPConsumer spreads one queue over a fixed number of goroutines.
type AMQPConsumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	workers int
}

func NewConsumer(url, queue string, workers int) (*AMQPConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}

	return &AMQPConsumer{conn: conn, ch: ch, queue: queue, workers: workers}, nil
}

func (c *AMQPConsumer) Consume(ctx context.Context, handler Handler) error {
	log := logger.Component("queue").WithField("queue", c.queue)

	q, err := declare(c.ch, c.queue)
	if err != nil {
		return err
	}
	log.Infof("consuming queue (messages: %d)", q.Messages)

	tag := "stakevoice-" + uuid.NewString()
	msgs, err := c.ch.Consume(
		q.Name,
		tag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := c.ch.Cancel(tag, false); err != nil {
			log.WithError(err).Warn("cancel consumer")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range msgs {
				if err := handler(ctx, msg.Body); err != nil {
					log.WithError(err).WithField("message_id", msg.MessageId).Error("job failed")
					msg.Nack(false, false)
					continue
				}
				msg.Ack(false)
			}
		}()
	}
	wg.Wait()
	return nil
}

func (c *AMQPConsumer) Close() {
	c.ch.Close()
	c.conn.Close()
}

func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}
