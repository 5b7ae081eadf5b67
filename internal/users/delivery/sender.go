// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
)

// Publisher is the slice of [mq.Publisher] the queue sender needs.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, value any) error
}

// QueueSender publishes codes to the notification exchange.
type QueueSender struct {
	publisher Publisher
	now       func() time.Time
}

// NewQueueSender builds a [Sender] on top of a broker publisher.
func NewQueueSender(publisher Publisher) *QueueSender {
	return &QueueSender{publisher: publisher, now: time.Now}
}

// Send publishes the message under its kind as routing key.
func (sender *QueueSender) Send(context context.Context, address string, message Message) error {
	event := Event{
		Address:   address,
		Kind:      message.Kind,
		Code:      message.Code,
		ExpiresAt: message.ExpiresAt.UTC(),
		SentAt:    sender.now().UTC(),
	}

	if err := sender.publisher.PublishJSON(context, string(message.Kind), event); err != nil {
		return apperr.DeliveryFailure(fmt.Errorf("delivery_publish: %w", err))
	}
	return nil
}

// LogSender writes codes to the log instead of delivering them.
//
// Only wired when no broker is configured, which config validation forbids in production.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a development [Sender].
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (sender *LogSender) Send(context context.Context, address string, message Message) error {
	sender.logger.DebugContext(context, "delivery_code_logged",
		slog.String("kind", string(message.Kind)),
		slog.String("address", address),
		slog.String("code", message.Code),
		slog.Time("expires_at", message.ExpiresAt),
	)
	return nil
}
