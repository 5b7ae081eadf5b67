// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/mq"
)

// Mailer sends a rendered e-mail.
type Mailer interface {
	Send(ctx context.Context, mail *Mail) error
}

// LogMailer records mail instead of sending it. Used by the notifier when no
// SMTP relay is configured outside production. The body, and so the code, is
// only written at debug level.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a development [Mailer].
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (mailer *LogMailer) Send(context context.Context, mail *Mail) error {
	mailer.logger.InfoContext(context, "delivery_mail_logged",
		slog.String("to", mail.To),
		slog.String("subject", mail.Subject),
	)
	mailer.logger.DebugContext(context, "delivery_mail_body",
		slog.String("to", mail.To),
		slog.String("body", mail.Text),
	)
	return nil
}

// Worker turns queued events into e-mails. Its Handle method is an [mq.Handler].
type Worker struct {
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time
}

// NewWorker creates a notifier worker.
func NewWorker(mailer Mailer, logger *slog.Logger) *Worker {
	return &Worker{mailer: mailer, logger: logger, now: time.Now}
}

/*
Handle processes one delivery.

Undecodable or unknown events are wrapped in [mq.ErrPoison] so they go straight
to the dead-letter queue. Codes that already expired are dropped. Mailer errors
are returned as-is and the message is retried once.
*/
func (worker *Worker) Handle(context context.Context, routingKey string, body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: decode %s: %v", mq.ErrPoison, routingKey, err)
	}
	if event.Kind == "" {
		event.Kind = Kind(routingKey)
	}
	if event.Address == "" || event.Code == "" {
		return fmt.Errorf("%w: %s without address or code", mq.ErrPoison, routingKey)
	}

	if !event.ExpiresAt.IsZero() && !worker.now().Before(event.ExpiresAt) {
		worker.logger.WarnContext(context, "delivery_dropped_expired",
			slog.String("kind", string(event.Kind)),
			slog.Time("expires_at", event.ExpiresAt),
		)
		return nil
	}

	mail, err := Render(event)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrPoison, err)
	}

	if err := worker.mailer.Send(context, mail); err != nil {
		return fmt.Errorf("delivery_send %s: %w", event.Kind, err)
	}

	worker.logger.InfoContext(context, "delivery_sent", slog.String("kind", string(event.Kind)))
	return nil
}
