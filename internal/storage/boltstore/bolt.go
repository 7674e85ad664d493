package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"pastebin/internal/storage"
)

var (
	metaBucket    = []byte("pastes")
	contentBucket = []byte("contents")
	expireBucket  = []byte("expires")
)

// Store implements storage.Store backed by BoltDB. Metadata is kept as JSON
// apart from the raw content so large pastes are never base64 encoded.
type Store struct {
	db *bolt.DB
}

// Open initializes a BoltDB-backed store located at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, contentBucket, expireBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

type buckets struct {
	meta, content, expire *bolt.Bucket
}

func open(tx *bolt.Tx) (buckets, error) {
	b := buckets{
		meta:    tx.Bucket(metaBucket),
		content: tx.Bucket(contentBucket),
		expire:  tx.Bucket(expireBucket),
	}
	if b.meta == nil || b.content == nil || b.expire == nil {
		return b, errors.New("buckets not initialized")
	}
	return b, nil
}

// Save persists or replaces a paste entry.
func (s *Store) Save(ctx context.Context, paste *storage.Paste) error {
	if paste == nil {
		return errors.New("paste is nil")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	paste.Metadata.PostedAt = paste.Metadata.PostedAt.UTC()
	paste.Metadata.LastModified = paste.Metadata.LastModified.UTC()

	data, err := json.Marshal(paste.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := open(tx)
		if err != nil {
			return err
		}
		key := []byte(paste.Short)

		if err := unindex(b, key); err != nil {
			return err
		}
		if err := b.meta.Put(key, data); err != nil {
			return fmt.Errorf("save metadata: %w", err)
		}
		content := paste.Content
		if content == nil {
			content = []byte{}
		}
		if err := b.content.Put(key, content); err != nil {
			return fmt.Errorf("save content: %w", err)
		}
		if paste.HasExpiration() {
			if err := b.expire.Put(expireKey(paste.ExpiresAt(), paste.Short), key); err != nil {
				return fmt.Errorf("index expiry: %w", err)
			}
		}
		return nil
	})
}

// Get retrieves a paste by its short name.
func (s *Store) Get(ctx context.Context, short string) (*storage.Paste, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out *storage.Paste
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := open(tx)
		if err != nil {
			return err
		}
		raw := b.meta.Get([]byte(short))
		if raw == nil {
			return fmt.Errorf("%q: %w", short, storage.ErrNotFound)
		}
		paste := &storage.Paste{Short: short}
		if err := json.Unmarshal(raw, &paste.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
		// bolt values are only valid for the life of the transaction
		paste.Content = append([]byte{}, b.content.Get([]byte(short))...)
		out = paste
		return nil
	})
	return out, err
}

// Delete removes a paste.
func (s *Store) Delete(ctx context.Context, short string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := open(tx)
		if err != nil {
			return err
		}
		key := []byte(short)
		if b.meta.Get(key) == nil {
			return fmt.Errorf("%q: %w", short, storage.ErrNotFound)
		}
		if err := unindex(b, key); err != nil {
			return err
		}
		if err := b.meta.Delete(key); err != nil {
			return fmt.Errorf("delete metadata: %w", err)
		}
		if err := b.content.Delete(key); err != nil {
			return fmt.Errorf("delete content: %w", err)
		}
		return nil
	})
}

// DeleteExpired removes all pastes whose expiry is before or equal to the provided time.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := open(tx)
		if err != nil {
			return err
		}

		cursor := b.expire.Cursor()
		cutoff := toTimestamp(before)
		for key, val := cursor.First(); key != nil; key, val = cursor.Next() {
			if binary.BigEndian.Uint64(key[:8]) > cutoff {
				break
			}
			short := append([]byte{}, val...)
			if err := b.meta.Delete(short); err != nil {
				return fmt.Errorf("delete expired paste %s: %w", short, err)
			}
			if err := b.content.Delete(short); err != nil {
				return fmt.Errorf("delete expired content %s: %w", short, err)
			}
			if err := cursor.Delete(); err != nil {
				return fmt.Errorf("delete expiry index: %w", err)
			}
			removed++
		}
		return nil
	})

	return removed, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// unindex drops the expiry index entry of the paste currently stored at key.
func unindex(b buckets, key []byte) error {
	existing := b.meta.Get(key)
	if existing == nil {
		return nil
	}
	prev := storage.Paste{Short: string(key)}
	if err := json.Unmarshal(existing, &prev.Metadata); err != nil || !prev.HasExpiration() {
		return nil
	}
	if err := b.expire.Delete(expireKey(prev.ExpiresAt(), prev.Short)); err != nil {
		return fmt.Errorf("remove previous expiry index: %w", err)
	}
	return nil
}

func expireKey(t time.Time, short string) []byte {
	key := make([]byte, 8+len(short))
	binary.BigEndian.PutUint64(key, toTimestamp(t))
	copy(key[8:], short)
	return key
}

func toTimestamp(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UTC().UnixNano())
}
