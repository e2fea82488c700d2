// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/tenpo/internal/logging"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev AuthEvent) error

// Consumer drains all topics through a Watermill router.
type Consumer struct {
	subscriber message.Subscriber
	handler    Handler
	logger     watermill.LoggerAdapter
}

// NewConsumer creates a consumer. A nil handler logs each event.
func NewConsumer(pub *Publisher, handler Handler) *Consumer {
	if handler == nil {
		handler = LogHandler
	}
	return &Consumer{subscriber: pub.Subscriber(), handler: handler, logger: pub.logger}
}

// LogHandler writes the event to the structured log.
func LogHandler(ctx context.Context, ev AuthEvent) error {
	logging.Ctx(ctx).Info().
		Str("event_id", ev.ID).
		Str("topic", ev.Topic).
		Str("user_id", ev.UserID).
		Str("email", ev.Email).
		Time("occurred_at", ev.OccurredAt).
		Interface("attributes", ev.Attributes).
		Msg("Auth event")
	return nil
}

// Serve runs the router until ctx is cancelled. Implements suture.Service.
func (c *Consumer) Serve(ctx context.Context) error {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, c.logger)
	if err != nil {
		return fmt.Errorf("create event router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	for _, topic := range Topics {
		router.AddNoPublisherHandler("log_"+topic, topic, c.subscriber, func(msg *message.Message) error {
			ev, err := Decode(msg)
			if err != nil {
				// Poison message; ack it so it is not redelivered forever.
				logging.Warn().Err(err).Msg("Dropping undecodable event")
				return nil
			}
			return c.handler(msg.Context(), ev)
		})
	}

	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (c *Consumer) String() string {
	return "event-consumer"
}
