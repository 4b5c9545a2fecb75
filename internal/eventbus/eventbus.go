// Package eventbus implements the failure-event publication path the
// Failure Analyzer (C4) uses to notify the Skill Evolution Manager (C12) of
// new failures without the reporting call blocking. The in-process bus is a
// buffered channel; the Redis Streams bus is for deployments splitting the
// analyzer and evolution manager across processes.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/skillcore/skillcore/internal/failure"
	"github.com/skillcore/skillcore/pkg/observability"
)

// InProcessBus implements failure.EventBus over a buffered Go channel
// consumed by the same daemon's evolution manager.
type InProcessBus struct {
	events chan failure.Record
}

// NewInProcessBus creates a bus with the given channel capacity.
func NewInProcessBus(capacity int) *InProcessBus {
	if capacity <= 0 {
		capacity = 256
	}
	return &InProcessBus{events: make(chan failure.Record, capacity)}
}

// Publish enqueues rec, dropping it if the channel is full rather than
// blocking the caller's failure-recording path.
func (b *InProcessBus) Publish(_ context.Context, rec failure.Record) error {
	select {
	case b.events <- rec:
		return nil
	default:
		return fmt.Errorf("in-process failure bus full, dropping event for %s", rec.OperationName)
	}
}

// Events returns the channel the evolution manager's exploration loop
// should range over.
func (b *InProcessBus) Events() <-chan failure.Record {
	return b.events
}

// RedisBus implements failure.EventBus over a Redis Stream, for deployments
// where the analyzer and evolution manager run in separate processes.
type RedisBus struct {
	client    *redis.Client
	streamKey string
	logger    observability.Logger
}

// NewRedisBus creates a bus against addr, publishing to streamKey.
func NewRedisBus(addr, streamKey string, logger observability.Logger) *RedisBus {
	return &RedisBus{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		streamKey: streamKey,
		logger:    logger,
	}
}

// Publish XADDs a JSON-encoded record to the stream.
func (b *RedisBus) Publish(ctx context.Context, rec failure.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.streamKey,
		Values: map[string]interface{}{"record": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("xadd failure record: %w", err)
	}
	return nil
}

// Consume blocks, reading new stream entries after lastID ("$" for only-new)
// and invoking handler for each, until ctx is cancelled.
func (b *RedisBus) Consume(ctx context.Context, lastID string, handler func(failure.Record)) error {
	id := lastID
	if id == "" {
		id = "$"
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{b.streamKey, id},
			Block:   5 * time.Second,
			Count:   50,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if b.logger != nil {
				b.logger.Warn("redis failure bus read error", map[string]interface{}{"error": err.Error()})
			}
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				id = msg.ID
				raw, ok := msg.Values["record"].(string)
				if !ok {
					continue
				}
				var rec failure.Record
				if err := json.Unmarshal([]byte(raw), &rec); err != nil {
					continue
				}
				handler(rec)
			}
		}
	}
}

// Close releases the underlying Redis connection.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
