// Package memstore is a map-backed storage.Store, to be used for tests and
// throwaway single-process deployments.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pastebin/internal/storage"
)

// Store implements storage.Store in memory.
type Store struct {
	mu     sync.RWMutex
	pastes map[string]*storage.Paste
}

// New returns an empty Store.
func New() *Store {
	return &Store{pastes: make(map[string]*storage.Paste)}
}

// Save stores a copy of paste.
func (s *Store) Save(ctx context.Context, paste *storage.Paste) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pastes[paste.Short] = clone(paste)
	return nil
}

// Get returns a copy of the paste stored under short.
func (s *Store) Get(ctx context.Context, short string) (*storage.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pastes[short]
	if !ok {
		return nil, fmt.Errorf("%q: %w", short, storage.ErrNotFound)
	}
	return clone(p), nil
}

// Delete removes the paste stored under short.
func (s *Store) Delete(ctx context.Context, short string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pastes[short]; !ok {
		return fmt.Errorf("%q: %w", short, storage.ErrNotFound)
	}
	delete(s.pastes, short)
	return nil
}

// DeleteExpired removes every paste expired at before.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for short, p := range s.pastes {
		if p.Expired(before) {
			delete(s.pastes, short)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored pastes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pastes)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func clone(p *storage.Paste) *storage.Paste {
	cp := *p
	cp.Content = append([]byte(nil), p.Content...)
	return &cp
}
