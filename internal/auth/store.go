package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orbitcrm/platform/internal/shared/config"
	"github.com/redis/go-redis/v9"
)

// Store persists session records keyed by session ID. A session exists if and
// only if its key does: login writes it, logout removes it, and a corrupt
// value reads back as "no session" rather than an error.
//
// Subscribers are notified with the session ID on every Set and Clear so
// connected consumers can refresh their view of the session.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Clear(ctx context.Context, id string) error
	Subscribe(fn func(sessionID string))
}

// --- In-memory store ---

// MemoryStore keeps sessions in process memory. It backs tests and the
// degraded mode where Redis is not reachable.
type MemoryStore struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	listeners []func(string)
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	blob, ok := m.blobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(blob, &s); err != nil {
		// Corrupt entry: treat as unauthenticated, drop the blob.
		m.Clear(ctx, id)
		return nil, nil
	}
	if s.IsExpired() {
		m.Clear(ctx, id)
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Set(ctx context.Context, s *Session) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	m.mu.Lock()
	m.blobs[s.ID] = blob
	listeners := m.listeners
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(s.ID)
	}
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, id string) error {
	m.mu.Lock()
	_, existed := m.blobs[id]
	delete(m.blobs, id)
	listeners := m.listeners
	m.mu.Unlock()

	if existed {
		for _, fn := range listeners {
			fn(id)
		}
	}
	return nil
}

func (m *MemoryStore) Subscribe(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// --- Redis store ---

// RedisStore persists sessions in Redis so they survive process restarts and
// are shared between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	mu        sync.RWMutex
	listeners []func(string)
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string {
	return "crm:session:" + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	blob, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(blob, &s); err != nil {
		r.Clear(ctx, id)
		return nil, nil
	}
	if s.IsExpired() {
		r.Clear(ctx, id)
		return nil, nil
	}
	return &s, nil
}

func (r *RedisStore) Set(ctx context.Context, s *Session) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	ttl := r.ttl
	if !s.ExpiresAt.IsZero() {
		if until := time.Until(s.ExpiresAt); until > 0 {
			ttl = until
		}
	}

	if err := r.client.Set(ctx, sessionKey(s.ID), blob, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	r.notify(s.ID)
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	r.notify(id)
	return nil
}

// Subscribe registers an in-process listener. Changes made by other instances
// are not propagated; cross-instance consumers re-read the store instead.
func (r *RedisStore) Subscribe(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *RedisStore) notify(id string) {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(id)
	}
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
