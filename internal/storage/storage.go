package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a paste does not exist.
var ErrNotFound = errors.New("paste not found")

// Metadata is persisted alongside a paste's content.
type Metadata struct {
	PostedAt      time.Time `json:"postedAt"`
	Passwd        string    `json:"passwd"`
	Filename      string    `json:"filename,omitempty"`
	LastModified  time.Time `json:"lastModified"`
	ExpirationTTL int64     `json:"expirationTtl,omitempty"` // seconds, 0 means never
}

// Paste represents a stored paste entry.
type Paste struct {
	Short    string
	Content  []byte
	Metadata Metadata
}

// HasExpiration reports whether the paste has an expiry set.
func (p Paste) HasExpiration() bool {
	return p.Metadata.ExpirationTTL > 0
}

// ExpiresAt returns the instant after which the paste is logically expired,
// or the zero time if it never expires.
func (p Paste) ExpiresAt() time.Time {
	if !p.HasExpiration() {
		return time.Time{}
	}
	return p.Metadata.LastModified.Add(time.Duration(p.Metadata.ExpirationTTL) * time.Second)
}

// Expired reports whether the paste is expired at now.
func (p Paste) Expired(now time.Time) bool {
	return p.HasExpiration() && now.After(p.ExpiresAt())
}

// Store defines the storage backend contract. Implementations return stored
// entries regardless of expiry; callers decide liveness.
type Store interface {
	Save(ctx context.Context, paste *Paste) error
	Get(ctx context.Context, short string) (*Paste, error)
	Delete(ctx context.Context, short string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
	Close() error
}
