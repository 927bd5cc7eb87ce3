// Package idempotency remembers which events a consumer has already handled
// so at-least-once delivery does not repeat side effects.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"
)

const defaultTTL = 30 * 24 * time.Hour

// markerStore is the part of the redis client the guard needs.
type markerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager keeps one marker per (consumer, event) pair for ttl. The key is
// built by the store, e.g. sf:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store markerStore
	ttl   time.Duration
}

// NewManager returns a guard over store. A zero ttl selects 30 days.
func NewManager(store markerStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("idempotency ttl must not be negative")
	}
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed reports whether eventID was already seen by consumer.
// When it was not, the marker is written before returning false, so exactly
// one concurrent caller wins.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Delete drops the marker so a handler that failed after marking can be
// retried on redelivery.
func (m *Manager) Delete(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	consumer, eventID = strings.TrimSpace(consumer), strings.TrimSpace(eventID)
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == "":
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID), nil
}
