// Package redisstore keeps pastes in Redis hashes and lets Redis expire them
// natively, so DeleteExpired has nothing to sweep.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pastebin/internal/storage"
)

const (
	keyPrefix     = "paste:"
	contentField  = "content"
	metadataField = "metadata"
)

// Store implements storage.Store on top of a Redis client.
type Store struct {
	client  *redis.Client
	timeout time.Duration
}

// Open connects to the Redis server at url and verifies it answers a ping.
func Open(url string, timeout time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 50
	opt.MinIdleConns = 5
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.MaxRetries = 3

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, timeout), nil
}

// New wraps an existing client.
func New(client *redis.Client, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{client: client, timeout: timeout}
}

// Save replaces the hash stored for the paste and sets its expiry.
func (s *Store) Save(ctx context.Context, paste *storage.Paste) error {
	if paste == nil {
		return errors.New("paste is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	paste.Metadata.PostedAt = paste.Metadata.PostedAt.UTC()
	paste.Metadata.LastModified = paste.Metadata.LastModified.UTC()
	meta, err := json.Marshal(paste.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	key := keyPrefix + paste.Short
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, contentField, paste.Content, metadataField, meta)
		if paste.HasExpiration() {
			pipe.ExpireAt(ctx, key, paste.ExpiresAt())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save paste: %w", err)
	}
	return nil
}

// Get fetches a paste by short name.
func (s *Store) Get(ctx context.Context, short string) (*storage.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vals, err := s.client.HMGet(ctx, keyPrefix+short, contentField, metadataField).Result()
	if err != nil {
		return nil, fmt.Errorf("get paste: %w", err)
	}
	if len(vals) != 2 || vals[1] == nil {
		return nil, fmt.Errorf("%q: %w", short, storage.ErrNotFound)
	}

	paste := &storage.Paste{Short: short}
	if content, ok := vals[0].(string); ok {
		paste.Content = []byte(content)
	}
	meta, _ := vals[1].(string)
	if err := json.Unmarshal([]byte(meta), &paste.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return paste, nil
}

// Delete removes a paste.
func (s *Store) Delete(ctx context.Context, short string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.client.Del(ctx, keyPrefix+short).Result()
	if err != nil {
		return fmt.Errorf("delete paste: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%q: %w", short, storage.ErrNotFound)
	}
	return nil
}

// DeleteExpired is a no-op; Redis evicts expired keys itself.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
