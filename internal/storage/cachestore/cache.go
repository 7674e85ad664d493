// Package cachestore wraps a storage.Store with an in-process read cache.
//
// Writes and deletes made through the wrapper invalidate the local entry.
// Writes made by other processes sharing the backend are seen once the local
// entry ages out, which matches the eventual consistency the backends offer.
package cachestore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"pastebin/internal/storage"
)

// Store is a caching storage.Store decorator.
type Store struct {
	next  storage.Store
	cache *expirable.LRU[string, storage.Paste]
	group singleflight.Group

	// gen counts invalidations; a load that overlaps one is not cached.
	mu  sync.Mutex
	gen uint64

	// OnHit and OnMiss, if set, are called for every cache lookup.
	OnHit  func()
	OnMiss func()
}

// New wraps next with an LRU of at most size entries, each kept for ttl.
func New(next storage.Store, size int, ttl time.Duration) (*Store, error) {
	if next == nil {
		return nil, errors.New("next store required")
	}
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Store{
		next:  next,
		cache: expirable.NewLRU[string, storage.Paste](size, nil, ttl),
	}, nil
}

// Save writes through and drops the cached entry.
func (s *Store) Save(ctx context.Context, paste *storage.Paste) error {
	s.invalidate(paste.Short)
	err := s.next.Save(ctx, paste)
	s.invalidate(paste.Short)
	return err
}

func (s *Store) invalidate(short string) {
	s.mu.Lock()
	s.gen++
	s.cache.Remove(short)
	s.mu.Unlock()
	s.group.Forget(short)
}

// Get serves from the cache, coalescing concurrent misses for the same key.
func (s *Store) Get(ctx context.Context, short string) (*storage.Paste, error) {
	if p, ok := s.cache.Get(short); ok {
		if s.OnHit != nil {
			s.OnHit()
		}
		return clone(p), nil
	}
	if s.OnMiss != nil {
		s.OnMiss()
	}

	v, err, _ := s.group.Do(short, func() (any, error) {
		s.mu.Lock()
		gen := s.gen
		s.mu.Unlock()

		p, err := s.next.Get(ctx, short)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.gen == gen {
			s.cache.Add(short, *p)
		}
		s.mu.Unlock()
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.(storage.Paste)), nil
}

// Delete removes from the backend and the cache.
func (s *Store) Delete(ctx context.Context, short string) error {
	s.invalidate(short)
	err := s.next.Delete(ctx, short)
	s.invalidate(short)
	return err
}

// DeleteExpired sweeps the backend. Cached copies of swept pastes are already
// expired and callers treat them as absent.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	return s.next.DeleteExpired(ctx, before)
}

// Ping checks the backend when it supports health checks.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	s.cache.Purge()
	return s.next.Close()
}

func clone(p storage.Paste) *storage.Paste {
	p.Content = append([]byte(nil), p.Content...)
	return &p
}
