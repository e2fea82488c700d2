// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package events publishes auth analytics events.
//
// Events go onto an in-process Watermill GoChannel. A Consumer drains every
// topic through a Watermill router and logs each event; it runs as a
// supervised service. When analytics is disabled Publish is a no-op.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
)

// Topics.
const (
	TopicLogin          = "auth.login"
	TopicSignup         = "auth.signup"
	TopicOTPVerified    = "auth.otp_verified"
	TopicPasswordReset  = "auth.password_reset"
	TopicInviteAccepted = "auth.invite_accepted"
)

// Topics lists every topic the consumer subscribes to.
var Topics = []string{TopicLogin, TopicSignup, TopicOTPVerified, TopicPasswordReset, TopicInviteAccepted}

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event publisher closed")

// AuthEvent is the payload of every topic. Email is always masked.
type AuthEvent struct {
	ID         string            `json:"id"`
	Topic      string            `json:"topic"`
	UserID     string            `json:"user_id,omitempty"`
	Email      string            `json:"email,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher publishes AuthEvents.
type Publisher struct {
	enabled bool
	pubsub  *gochannel.GoChannel
	logger  watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a publisher. A disabled publisher drops every event.
func NewPublisher(enabled bool) *Publisher {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	return &Publisher{
		enabled: enabled,
		logger:  logger,
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger),
	}
}

// Enabled reports whether events are published.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish sends ev on its topic. ID, OccurredAt and the email mask are
// filled in here.
func (p *Publisher) Publish(_ context.Context, ev AuthEvent) error {
	if !p.enabled {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if ev.Email != "" {
		ev.Email = logging.MaskEmail(ev.Email)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(ev.Topic, "error").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	if err := p.pubsub.Publish(ev.Topic, msg); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(ev.Topic, "error").Inc()
		return fmt.Errorf("publish %s: %w", ev.Topic, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(ev.Topic, "ok").Inc()
	return nil
}

// Subscriber exposes the underlying subscriber for consumers.
func (p *Publisher) Subscriber() message.Subscriber {
	return p.pubsub
}

// Close stops delivery. Further Publish calls fail with ErrClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pubsub.Close()
}

// Decode parses an event payload.
func Decode(msg *message.Message) (AuthEvent, error) {
	var ev AuthEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return AuthEvent{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return ev, nil
}
