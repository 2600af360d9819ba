package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) log(ctx context.Context, operation string, event contracts.EventEnvelope) {
	p.logger.InfoContext(ctx, "event published",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", operation,
		"outcome", "success",
		"event_type", event.EventType,
		"event_id", event.EventID,
		"partition_key", event.PartitionKey,
		"payload_bytes", len(event.Data),
	)
}

func (p *LoggingPublisher) PublishDomain(ctx context.Context, event contracts.EventEnvelope) error {
	p.log(ctx, "publish_domain", event)
	return nil
}

func (p *LoggingPublisher) PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error {
	p.log(ctx, "publish_analytics", event)
	return nil
}

func (p *LoggingPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	p.logger.WarnContext(ctx, "event dead-lettered",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish_dlq",
		"outcome", "dead_letter",
		"event_type", record.OriginalEvent.EventType,
		"event_id", record.OriginalEvent.EventID,
		"error", record.ErrorSummary,
	)
	return nil
}

// MemoryPublisher keeps everything it is handed.
type MemoryPublisher struct {
	mu        sync.Mutex
	domain    []contracts.EventEnvelope
	analytics []contracts.EventEnvelope
	dlq       []contracts.DLQRecord
	failWith  error
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

// FailDomain makes every later PublishDomain return err; nil clears it.
func (p *MemoryPublisher) FailDomain(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}

func (p *MemoryPublisher) PublishDomain(_ context.Context, event contracts.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.domain = append(p.domain, event)
	return nil
}

func (p *MemoryPublisher) PublishAnalytics(_ context.Context, event contracts.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analytics = append(p.analytics, event)
	return nil
}

func (p *MemoryPublisher) PublishDLQ(_ context.Context, record contracts.DLQRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dlq = append(p.dlq, record)
	return nil
}

func (p *MemoryPublisher) Domain() []contracts.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.EventEnvelope(nil), p.domain...)
}

func (p *MemoryPublisher) Analytics() []contracts.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.EventEnvelope(nil), p.analytics...)
}

func (p *MemoryPublisher) DLQ() []contracts.DLQRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.DLQRecord(nil), p.dlq...)
}

var (
	_ ports.DomainPublisher    = (*LoggingPublisher)(nil)
	_ ports.AnalyticsPublisher = (*LoggingPublisher)(nil)
	_ ports.DLQPublisher       = (*LoggingPublisher)(nil)
	_ ports.DomainPublisher    = (*MemoryPublisher)(nil)
	_ ports.AnalyticsPublisher = (*MemoryPublisher)(nil)
	_ ports.DLQPublisher       = (*MemoryPublisher)(nil)
)
