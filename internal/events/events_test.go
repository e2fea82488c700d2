// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDisabledPublisherDropsEvents(t *testing.T) {
	p := NewPublisher(false)
	defer p.Close()

	if p.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if err := p.Publish(context.Background(), AuthEvent{Topic: TopicLogin}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestPublishDeliversMaskedEvent(t *testing.T) {
	p := NewPublisher(true)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := p.Subscriber().Subscribe(ctx, TopicSignup)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	go func() {
		_ = p.Publish(ctx, AuthEvent{Topic: TopicSignup, UserID: "u1", Email: "jane@example.com"})
	}()

	select {
	case msg := <-msgs:
		msg.Ack()
		ev, err := Decode(msg)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if ev.Email != "j***@example.com" {
			t.Errorf("Email = %q, want masked", ev.Email)
		}
		if ev.ID == "" || ev.OccurredAt.IsZero() {
			t.Errorf("ID/OccurredAt not filled: %+v", ev)
		}
		if ev.UserID != "u1" || ev.Topic != TopicSignup {
			t.Errorf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishAfterClose(t *testing.T) {
	p := NewPublisher(true)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Publish(context.Background(), AuthEvent{Topic: TopicLogin}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close = %v, want ErrClosed", err)
	}
}

func TestConsumerHandlesEvents(t *testing.T) {
	p := NewPublisher(true)
	defer p.Close()

	received := make(chan AuthEvent, 16)
	c := NewConsumer(p, func(_ context.Context, ev AuthEvent) error {
		received <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	// Subscriptions are set up asynchronously; republish until one lands.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var got AuthEvent
wait:
	for {
		select {
		case got = <-received:
			break wait
		case <-ticker.C:
			_ = p.Publish(ctx, AuthEvent{Topic: TopicInviteAccepted, UserID: "u2"})
		case <-deadline:
			cancel()
			t.Fatal("timed out waiting for consumer")
		}
	}

	if got.Topic != TopicInviteAccepted || got.UserID != "u2" {
		t.Errorf("event = %+v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestLogHandler(t *testing.T) {
	if err := LogHandler(context.Background(), AuthEvent{Topic: TopicLogin}); err != nil {
		t.Errorf("LogHandler() error = %v", err)
	}
	if NewConsumer(NewPublisher(false), nil).String() != "event-consumer" {
		t.Error("unexpected consumer name")
	}
}
