package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/utmlink/internal/app/model"
)

// StreamPublisher is the part of nats.JetStreamContext the publisher uses.
type StreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ClickPublisher publishes stored click events to NATS JetStream for the
// unique-visitor consumer.
type ClickPublisher struct {
	js StreamPublisher
}

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js StreamPublisher) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish sends event; the click id doubles as the JetStream dedupe key.
func (p *ClickPublisher) Publish(ctx context.Context, event model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if event.ID > 0 {
		opts = append(opts, nats.MsgId("click-"+strconv.FormatInt(event.ID, 10)))
	}
	if _, err := p.js.Publish(model.ClickStreamSubject, data, opts...); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}
