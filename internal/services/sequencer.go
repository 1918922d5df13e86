package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const orderSequenceKey = "orders:sequence"

// Sequencer yields the next candidate order sequence number. Values are not
// guaranteed unique; the order_number unique index is the final arbiter.
type Sequencer interface {
	Next(ctx context.Context) (int64, error)
}

type sequenceSource interface {
	LastSequence(ctx context.Context) (int64, error)
}

// CountSequencer derives the sequence as the highest stored order sequence
// plus one. Deleted orders leave gaps that are never refilled. Concurrent
// callers can observe the same value.
type CountSequencer struct {
	orders sequenceSource
}

// NewCountSequencer builds a CountSequencer.
func NewCountSequencer(orders sequenceSource) *CountSequencer {
	return &CountSequencer{orders: orders}
}

// Next implements Sequencer.
func (s *CountSequencer) Next(ctx context.Context) (int64, error) {
	last, err := s.orders.LastSequence(ctx)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

type counterStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisSequencer hands out sequence numbers with an atomic INCR. The counter
// is seeded from the highest stored sequence the first time it is used.
type RedisSequencer struct {
	store  counterStore
	orders sequenceSource
	key    string

	mu     sync.Mutex
	seeded bool
}

// NewRedisSequencer builds a RedisSequencer.
func NewRedisSequencer(store counterStore, orders sequenceSource) *RedisSequencer {
	return &RedisSequencer{store: store, orders: orders, key: orderSequenceKey}
}

// Next implements Sequencer.
func (s *RedisSequencer) Next(ctx context.Context) (int64, error) {
	if err := s.seed(ctx); err != nil {
		return 0, err
	}
	return s.store.Incr(ctx, s.key)
}

func (s *RedisSequencer) seed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded {
		return nil
	}

	last, err := s.orders.LastSequence(ctx)
	if err != nil {
		return fmt.Errorf("seed order sequence: %w", err)
	}
	if _, err := s.store.SetNX(ctx, s.key, last, 0); err != nil {
		return fmt.Errorf("seed order sequence: %w", err)
	}
	s.seeded = true
	return nil
}

// FormatOrderNumber renders ORD-YYYYMM-NNNNNN.
func FormatOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%04d%02d-%06d", at.Year(), int(at.Month()), seq)
}
