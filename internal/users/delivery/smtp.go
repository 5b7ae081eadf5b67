// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/taibuivan/marketplace-auth/internal/platform/config"
	"github.com/taibuivan/marketplace-auth/pkg/uuid"
)

const smtpTimeout = 10 * time.Second

// SMTPMailer sends mail through an SMTP relay, upgrading with STARTTLS when
// the relay offers it.
type SMTPMailer struct {
	client   *gomail.Client
	fromName string
	from     string
}

// NewSMTPMailer builds a mailer from the notifier's mail settings.
// PLAIN authentication is only enabled when SMTP_USER is set.
func NewSMTPMailer(settings config.Mail) (*SMTPMailer, error) {
	options := []gomail.Option{
		gomail.WithPort(settings.SMTPPort),
		gomail.WithTimeout(smtpTimeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTLSConfig(&tls.Config{ServerName: settings.SMTPHost, MinVersion: tls.VersionTLS12}),
	}
	if settings.SMTPUser != "" {
		options = append(options,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(settings.SMTPUser),
			gomail.WithPassword(settings.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(settings.SMTPHost, options...)
	if err != nil {
		return nil, fmt.Errorf("smtp: client: %w", err)
	}

	return &SMTPMailer{client: client, fromName: settings.SMTPFromName, from: settings.SMTPFrom}, nil
}

// Send delivers one e-mail. The context bounds the whole SMTP conversation.
func (mailer *SMTPMailer) Send(ctx context.Context, message *Mail) error {
	msg, err := mailer.compose(message, time.Now())
	if err != nil {
		return err
	}
	if err := mailer.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp: send to %s: %w", message.To, err)
	}
	return nil
}

// compose builds a multipart/alternative message: plain text first, HTML as
// the preferred alternative.
func (mailer *SMTPMailer) compose(message *Mail, now time.Time) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(mailer.fromName, mailer.from); err != nil {
		return nil, fmt.Errorf("smtp: from %q: %w", mailer.from, err)
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("smtp: to %q: %w", message.To, err)
	}

	msg.Subject(message.Subject)
	msg.SetDateWithValue(now.UTC())
	msg.SetMessageIDWithValue(uuid.New() + "@" + domainOf(mailer.from))
	msg.SetBodyString(gomail.TypeTextPlain, message.Text)
	msg.AddAlternativeString(gomail.TypeTextHTML, message.HTML)
	return msg, nil
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 {
		return address[at+1:]
	}
	return "localhost"
}
