package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

type EventHandler interface {
	HandleCanonicalEvent(ctx context.Context, envelope contracts.EventEnvelope) error
}

// ConsumerWorker applies polled events and acknowledges each one only after
// it was handled or dead-lettered. Messages left over when an iteration
// stops early are held and retried before the next poll, so later commits
// never skip past them.
type ConsumerWorker struct {
	logger      *slog.Logger
	consumer    Consumer
	handler     EventHandler
	dlq         ports.DLQPublisher
	dlqTopic    string
	interval    time.Duration
	maxAttempts int
	backoff     time.Duration
	held        []Message
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler EventHandler, dlq ports.DLQPublisher, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{
		logger: logger, consumer: consumer, handler: handler, dlq: dlq, dlqTopic: DefaultDLQTopic,
		interval: interval, maxAttempts: 3, backoff: 200 * time.Millisecond,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce drains the held messages, or one poll when none are held. A
// message that cannot be decoded, or that still fails after the retry
// budget, is dead-lettered and acknowledged. Cancellation or a failed
// dead-letter stops the iteration without acknowledging the rest.
func (w *ConsumerWorker) ProcessOnce(ctx context.Context) error {
	msgs := w.held
	w.held = nil
	var pollErr error
	if len(msgs) == 0 {
		msgs, pollErr = w.consumer.Poll(ctx, 50)
	}
	for i, msg := range msgs {
		if err := w.process(ctx, msg); err != nil {
			w.held = msgs[i:]
			return err
		}
		// A failed ack keeps the message; handling it again is deduplicated.
		if err := msg.Ack(ctx); err != nil {
			w.held = msgs[i:]
			return fmt.Errorf("ack %s: %w", msg.Topic, err)
		}
	}
	return pollErr
}

func (w *ConsumerWorker) process(ctx context.Context, msg Message) error {
	firstSeen := time.Now().UTC()
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return w.deadLetter(ctx, msg, envelope, err, 1, firstSeen)
	}
	attempts, err := w.handle(ctx, envelope)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return w.deadLetter(ctx, msg, envelope, err, attempts, firstSeen)
}

func (w *ConsumerWorker) handle(ctx context.Context, envelope contracts.EventEnvelope) (int, error) {
	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err = w.handler.HandleCanonicalEvent(ctx, envelope)
		if err == nil || permanent(err) {
			return attempt, err
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
	return w.maxAttempts, err
}

func permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidEnvelope) || errors.Is(err, domain.ErrUnsupportedEventType) ||
		errors.Is(err, domain.ErrInvalidInput)
}

func (w *ConsumerWorker) deadLetter(ctx context.Context, msg Message, envelope contracts.EventEnvelope, cause error, attempts int, firstSeen time.Time) error {
	w.logger.WarnContext(ctx, "event dead-lettered",
		"module", "events.consumer_worker",
		"layer", "adapter",
		"operation", "dead_letter",
		"outcome", "failure",
		"topic", msg.Topic,
		"event_id", envelope.EventID,
		"attempts", attempts,
		"error", cause,
	)
	if w.dlq == nil {
		return nil
	}
	if envelope.EventID == "" && envelope.Data == nil {
		envelope.Data = json.RawMessage(msg.Payload)
	}
	record := contracts.DLQRecord{
		OriginalEvent: envelope,
		ErrorSummary:  cause.Error(),
		RetryCount:    attempts,
		FirstSeenAt:   firstSeen,
		LastErrorAt:   time.Now().UTC(),
		SourceTopic:   msg.Topic,
		DLQTopic:      w.dlqTopic,
		TraceID:       envelope.TraceID,
	}
	if err := w.dlq.PublishDLQ(ctx, record); err != nil {
		w.logger.ErrorContext(ctx, "dlq publish failed",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "dead_letter",
			"outcome", "failure",
			"event_id", envelope.EventID,
			"error", err,
		)
		return fmt.Errorf("dead-letter %s: %w", envelope.EventID, err)
	}
	return nil
}
