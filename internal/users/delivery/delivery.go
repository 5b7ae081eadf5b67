// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package delivery moves one-time codes from the auth service to the user.

# Flow

	auth.Service ──Sender.Send──▶ QueueSender ──▶ RabbitMQ (otp.*) ──▶ Worker ──▶ Mailer (SMTP)
	                      └──────▶ LogSender (development, no broker)

The API only publishes; rendering and SMTP happen in the notifier process so a
slow mail relay never holds a request open.
*/
package delivery

import (
	"context"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
	"github.com/taibuivan/marketplace-auth/internal/users/otp"
)

// Kind is both the message type and its routing key on the exchange.
type Kind string

const (
	KindRegistration  Kind = constants.RoutingKeyOTPRegistration
	KindPasswordReset Kind = constants.RoutingKeyOTPPasswordReset
)

// BindingPattern subscribes the notifier to every code kind.
const BindingPattern = constants.RoutingKeyOTPAll

// KindFor maps an OTP purpose to its message kind.
func KindFor(purpose otp.Purpose) Kind {
	if purpose == otp.PurposePasswordReset {
		return KindPasswordReset
	}
	return KindRegistration
}

// Message is what the user must receive.
type Message struct {
	Kind      Kind
	Code      string
	ExpiresAt time.Time
}

// Sender hands a message to the delivery channel.
//
// Implementations return apperr.DeliveryFailure when the channel cannot take
// the message; the caller decides whether that fails the request.
type Sender interface {
	Send(ctx context.Context, address string, message Message) error
}

// Event is the wire form of a [Message] on the exchange.
type Event struct {
	Address   string    `json:"address"`
	Kind      Kind      `json:"kind"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	SentAt    time.Time `json:"sent_at"`
}
