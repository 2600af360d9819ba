package events

import (
	"context"
	"sync"
	"time"
)

// Message is one delivered record. Its offset is only committed by Ack, so
// a message that was never acknowledged is delivered again after a restart.
type Message struct {
	Topic     string
	Key       string
	Payload   []byte
	Timestamp time.Time

	commit func(ctx context.Context) error
}

// Ack commits the message. It is a no-op for sources without offsets.
func (m Message) Ack(ctx context.Context) error {
	if m.commit == nil {
		return nil
	}
	return m.commit(ctx)
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

type NoopConsumer struct{}

func NewNoopConsumer() *NoopConsumer { return &NoopConsumer{} }

func (c *NoopConsumer) Poll(context.Context, int) ([]Message, error) { return nil, nil }

// MemoryConsumer is a FIFO fed by Push. It backs local runs and tests and
// records every acknowledged message.
type MemoryConsumer struct {
	mu    sync.Mutex
	queue []Message
	acked []Message
}

func NewMemoryConsumer() *MemoryConsumer { return &MemoryConsumer{} }

func (c *MemoryConsumer) Push(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, msgs...)
}

func (c *MemoryConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if max <= 0 || max > len(c.queue) {
		max = len(c.queue)
	}
	out := make([]Message, 0, max)
	for _, msg := range c.queue[:max] {
		msg.commit = c.ackFunc(msg)
		out = append(out, msg)
	}
	c.queue = c.queue[max:]
	return out, nil
}

func (c *MemoryConsumer) ackFunc(msg Message) func(context.Context) error {
	return func(context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.acked = append(c.acked, msg)
		return nil
	}
}

func (c *MemoryConsumer) Acked() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.acked...)
}
