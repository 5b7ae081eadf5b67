// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoison marks a message that can never succeed (bad payload, unknown
// recipient). Handlers wrap it to send the delivery straight to the DLQ.
var ErrPoison = errors.New("mq: poison message")

// Topology describes the queue a [Consumer] reads from.
type Topology struct {
	Exchange string
	Queue    string
	Bindings []string
	Prefetch int

	// DLXName and DLXQueue are optional; when set, rejected messages are
	// dead-lettered instead of dropped.
	DLXName  string
	DLXQueue string

	ConsumerTag string
}

// Handler processes one delivery. A nil return acknowledges it.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// Consumer reads deliveries from a durable queue bound to a topic exchange.
type Consumer struct {
	topology Topology
	logger   *slog.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConsumer returns an unconnected consumer; call [Consumer.Connect] before [Consumer.Run].
func NewConsumer(topology Topology, logger *slog.Logger) *Consumer {
	if topology.Prefetch <= 0 {
		topology.Prefetch = 8
	}
	return &Consumer{topology: topology, logger: logger}
}

// Connect dials the broker and declares exchange, queue, bindings and DLX.
func (consumer *Consumer) Connect(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("mq: dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mq: open channel: %w", err)
	}

	if err := declare(channel, consumer.topology); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return err
	}

	consumer.conn = conn
	consumer.channel = channel
	return nil
}

func declare(channel *amqp.Channel, topology Topology) error {
	if err := channel.ExchangeDeclare(topology.Exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("mq: declare exchange %s: %w", topology.Exchange, err)
	}

	// 1. Dead-letter side first so the main queue can reference it
	if topology.DLXName != "" {
		if err := channel.ExchangeDeclare(topology.DLXName, ExchangeKind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("mq: declare dlx %s: %w", topology.DLXName, err)
		}
		if _, err := channel.QueueDeclare(topology.DLXQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("mq: declare dlq %s: %w", topology.DLXQueue, err)
		}
		if err := channel.QueueBind(topology.DLXQueue, "#", topology.DLXName, false, nil); err != nil {
			return fmt.Errorf("mq: bind dlq: %w", err)
		}
	}

	// 2. Work queue and its bindings
	queue, err := channel.QueueDeclare(topology.Queue, true, false, false, false, queueArgs(topology))
	if err != nil {
		return fmt.Errorf("mq: declare queue %s: %w", topology.Queue, err)
	}

	for _, key := range topology.Bindings {
		if err := channel.QueueBind(queue.Name, key, topology.Exchange, false, nil); err != nil {
			return fmt.Errorf("mq: bind queue=%s key=%s: %w", queue.Name, key, err)
		}
	}

	if err := channel.Qos(topology.Prefetch, 0, false); err != nil {
		return fmt.Errorf("mq: set qos: %w", err)
	}
	return nil
}

func queueArgs(topology Topology) amqp.Table {
	args := amqp.Table{}
	if topology.DLXName != "" {
		args["x-dead-letter-exchange"] = topology.DLXName
	}
	return args
}

// Run consumes until context is cancelled or the channel closes.
//
// Failed deliveries are requeued once; a second failure, or an [ErrPoison]
// error, rejects the message to the dead-letter exchange.
func (consumer *Consumer) Run(context context.Context, handle Handler) error {
	deliveries, err := consumer.channel.ConsumeWithContext(context, consumer.topology.Queue,
		consumer.topology.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("mq: consume: %w", err)
	}

	for {
		select {
		case <-context.Done():
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("mq: delivery channel closed")
			}

			err := handle(context, delivery.RoutingKey, delivery.Body)
			if err == nil {
				_ = delivery.Ack(false)
				continue
			}

			requeue := shouldRequeue(err, delivery.Redelivered)
			consumer.logger.Warn("mq_delivery_failed",
				slog.String("routing_key", delivery.RoutingKey),
				slog.Bool("requeue", requeue),
				slog.Any("error", err),
			)
			_ = delivery.Nack(false, requeue)
		}
	}
}

func shouldRequeue(err error, redelivered bool) bool {
	if errors.Is(err, ErrPoison) {
		return false
	}
	return !redelivered
}

// Close releases the channel and connection.
func (consumer *Consumer) Close() {
	if consumer.channel != nil {
		_ = consumer.channel.Close()
	}
	if consumer.conn != nil {
		_ = consumer.conn.Close()
	}
}
