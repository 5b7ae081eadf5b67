// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package mq wraps RabbitMQ (amqp091) with the topic-exchange topology used
// to hand one-time codes from the API to the notifier worker.
//
// # Topology
//
//	API ──PublishJSON(otp.*)──▶ [topic exchange] ──▶ notify queue ──▶ notifier
//	                                                    │ (nack)
//	                                                    ▼
//	                                              [DLX] ──▶ DLQ
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeKind is the exchange type for every exchange this package declares.
const ExchangeKind = "topic"

// Publisher sends JSON events to a topic exchange.
//
// A single AMQP channel is not safe for concurrent publishing, so calls are serialized.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	appID    string
}

// NewPublisher dials the broker and declares the durable exchange.
func NewPublisher(url, exchange, appID string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("mq: dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mq: open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("mq: declare exchange %s: %w", exchange, err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange, appID: appID}, nil
}

// PublishJSON marshals value and publishes it as a persistent message under key.
func (publisher *Publisher) PublishJSON(context context.Context, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("mq: marshal %s: %w", key, err)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	err = publisher.channel.PublishWithContext(context, publisher.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		AppId:        publisher.appID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("mq: publish %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the broker connection is still open.
func (publisher *Publisher) Ping(context.Context) error {
	if publisher.conn == nil || publisher.conn.IsClosed() {
		return fmt.Errorf("mq: connection closed")
	}
	return nil
}

// Close releases the channel and connection.
func (publisher *Publisher) Close() error {
	if publisher.channel != nil {
		_ = publisher.channel.Close()
	}
	if publisher.conn != nil {
		return publisher.conn.Close()
	}
	return nil
}
