// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command notifier delivers one-time codes published by the API.
//
// # Startup Sequence
//
//  1. Initialize structured logger and load configuration.
//  2. Install the OpenTelemetry tracer provider.
//  3. Connect to RabbitMQ with exponential back-off and declare the topology.
//  4. Consume otp.* events and send them through SMTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/taibuivan/marketplace-auth/internal/platform/config"
	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
	"github.com/taibuivan/marketplace-auth/internal/platform/mq"
	"github.com/taibuivan/marketplace-auth/internal/platform/telemetry"
	"github.com/taibuivan/marketplace-auth/internal/users/delivery"
)

const (
	serviceName = constants.AppName + "-notifier"

	// connectTimeout bounds the broker dial retries at startup.
	connectTimeout = 2 * time.Minute
)

func main() {
	// ── 1. Logger & Configuration ─────────────────────────────────────────
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("app", serviceName))
	slog.SetDefault(log)

	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Error("startup_failure", slog.String("step", "load configuration"), slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Debug {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})).
			With(slog.String("app", serviceName))
		slog.SetDefault(log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifier_stopped", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("notifier_stopped_cleanly")
}

func run(ctx context.Context, cfg *config.NotifierConfig, log *slog.Logger) error {
	// ── 2. Tracing ────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, serviceName, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// ── 3. Broker ─────────────────────────────────────────────────────────
	consumer := mq.NewConsumer(mq.Topology{
		Exchange:    cfg.MQExchange,
		Queue:       cfg.NotifyQueue,
		Bindings:    []string{delivery.BindingPattern},
		Prefetch:    cfg.NotifyPrefetch,
		DLXName:     cfg.NotifyDLX,
		DLXQueue:    cfg.NotifyDLQ,
		ConsumerTag: serviceName,
	}, log)
	defer consumer.Close()

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, consumer.Connect(cfg.RabbitURL)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectTimeout),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("rabbitmq_connect_retry", slog.Duration("wait", wait), slog.Any("error", err))
		}),
	)
	if err != nil {
		return err
	}

	// ── 4. Delivery ───────────────────────────────────────────────────────
	var mailer delivery.Mailer
	if cfg.SMTPHost == "" {
		log.Warn("mail_to_log", slog.String("reason", "SMTP_HOST is empty"))
		mailer = delivery.NewLogMailer(log)
	} else {
		smtpMailer, err := delivery.NewSMTPMailer(cfg.Mail)
		if err != nil {
			return err
		}
		mailer = smtpMailer
	}

	log.Info("notifier_consuming",
		slog.String("queue", cfg.NotifyQueue),
		slog.String("binding", delivery.BindingPattern),
	)
	return consumer.Run(ctx, delivery.NewWorker(mailer, log).Handle)
}
