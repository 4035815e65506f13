package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/utmlink/internal/app/model"
	"go.uber.org/zap"
)

const (
	fetchBatch   = 10
	fetchMaxWait = 5 * time.Second
)

var errBadPayload = errors.New("bad click payload")

// UniqueVisitorUpdater applies the unique-visitor rule to one stored click.
type UniqueVisitorUpdater interface {
	UniqueVisitorUpdate(ctx context.Context, event model.ClickEvent) error
}

// ClickConsumer consumes click events from NATS JetStream
type ClickConsumer struct {
	js      nats.JetStreamContext
	logger  *zap.Logger
	updater UniqueVisitorUpdater
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, updater UniqueVisitorUpdater) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, logger: logger, updater: updater}
}

// EnsureStream creates the click stream when it does not exist yet.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       model.ClickStreamName,
		Subjects:   []string{model.ClickStreamSubject},
		MaxBytes:   model.ClickStreamMaxBytes,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Start begins consuming click events until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	// Create consumer if not exists
	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName, nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe click consumer", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			c.logger.Info("click consumer stopped")
			return
		}

		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Info("click consumer stopped", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := c.handle(ctx, msg.Data); err != nil {
				if errors.Is(err, errBadPayload) {
					_ = msg.Term()
				} else {
					_ = msg.Nak()
				}
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (c *ClickConsumer) handle(ctx context.Context, data []byte) error {
	var event model.ClickEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("failed to unmarshal click event", zap.Error(err))
		return fmt.Errorf("%w: %w", errBadPayload, err)
	}

	if err := c.updater.UniqueVisitorUpdate(ctx, event); err != nil {
		c.logger.Error("failed to update unique visitors",
			zap.Int64("id", event.ID),
			zap.String("link_code", event.LinkCode),
			zap.Error(err))
		return err
	}

	c.logger.Debug("click event processed",
		zap.Int64("id", event.ID),
		zap.String("link_code", event.LinkCode),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
