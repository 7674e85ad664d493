// Package paste implements the paste lifecycle: creation under generated or
// custom names, reads with lazy expiry, and secret-gated updates and deletes.
//
// Names are checked and then written without a lock, so two concurrent creates
// may race for the same name and the later write wins; concurrent updates of a
// paste behave the same way. Both rely on the store's per-key atomicity only.
package paste

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pastebin/internal/id"
	"pastebin/internal/metrics"
	"pastebin/internal/storage"
)

const defaultMaxAttempts = 32

// Config captures service configuration.
type Config struct {
	Store       storage.Store
	IDs         *id.Generator
	MaxAttempts int
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service manages pastes in a Store.
type Service struct {
	store       storage.Store
	ids         *id.Generator
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.IDs == nil {
		cfg.IDs = id.New("")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:       cfg.Store,
		ids:         cfg.IDs,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}, nil
}

// Create stores a new paste under p.Name (prefixed with CustomPrefix) or under
// a freshly generated name.
func (s *Service) Create(ctx context.Context, p WriteParams) (*Result, error) {
	var short string
	if p.Name != "" {
		short = CustomPrefix + p.Name
		_, ok, err := s.live(ctx, short)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, Errorf(http.StatusConflict, "name '%s' is already used", p.Name)
		}
	} else {
		length := id.ShortLen
		if p.Private {
			length = id.PrivateLen
		}
		var err error
		if short, err = s.allocate(ctx, length); err != nil {
			return nil, err
		}
	}

	secret := p.Secret
	if secret == "" {
		var err error
		if secret, err = s.ids.Secret(ctx); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
	}

	now := s.now().UTC()
	paste := &storage.Paste{
		Short:   short,
		Content: p.Content,
		Metadata: storage.Metadata{
			PostedAt:      now,
			Passwd:        secret,
			Filename:      p.Filename,
			LastModified:  now,
			ExpirationTTL: p.Expire,
		},
	}
	if err := s.store.Save(ctx, paste); err != nil {
		return nil, fmt.Errorf("save paste: %w", err)
	}
	metrics.PastesCreated.Inc()
	s.logger.Debug("paste created", "short", short, "size", len(p.Content), "ttl", p.Expire)
	return resultFor(paste, p.Private), nil
}

// Read returns a live paste. An expired paste is deleted and reported as not found.
func (s *Service) Read(ctx context.Context, short string) (*storage.Paste, error) {
	paste, ok, err := s.live(ctx, short)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(short)
	}
	metrics.PastesRead.Inc()
	return paste, nil
}

// Update replaces the content of an existing paste. The secret must match the
// stored one; a missing paste is reported before a wrong secret.
func (s *Service) Update(ctx context.Context, short, secret string, p WriteParams) (*Result, error) {
	existing, err := s.authorize(ctx, short, secret)
	if err != nil {
		return nil, err
	}

	meta := existing.Metadata
	meta.LastModified = s.now().UTC()
	if p.Secret != "" {
		meta.Passwd = p.Secret
	}
	if p.Filename != "" {
		meta.Filename = p.Filename
	}
	if p.Expire > 0 {
		meta.ExpirationTTL = p.Expire
	}

	paste := &storage.Paste{Short: short, Content: p.Content, Metadata: meta}
	if err := s.store.Save(ctx, paste); err != nil {
		return nil, fmt.Errorf("save paste: %w", err)
	}
	metrics.PastesUpdated.Inc()
	s.logger.Debug("paste updated", "short", short, "size", len(p.Content))
	return resultFor(paste, p.Private), nil
}

// Delete removes a paste given its secret, with the same precedence as Update.
func (s *Service) Delete(ctx context.Context, short, secret string) error {
	if _, err := s.authorize(ctx, short, secret); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, short); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound(short)
		}
		return fmt.Errorf("delete paste: %w", err)
	}
	metrics.PastesDeleted.Inc()
	s.logger.Debug("paste deleted", "short", short)
	return nil
}

func (s *Service) authorize(ctx context.Context, short, secret string) (*storage.Paste, error) {
	existing, ok, err := s.live(ctx, short)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(short)
	}
	if subtle.ConstantTimeCompare([]byte(existing.Metadata.Passwd), []byte(secret)) != 1 {
		return nil, forbidden(short)
	}
	return existing, nil
}

// live fetches short and reports whether it exists and has not expired.
// Expired entries are deleted on the way.
func (s *Service) live(ctx context.Context, short string) (*storage.Paste, bool, error) {
	if short == "" {
		return nil, false, nil
	}
	paste, err := s.store.Get(ctx, short)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get paste: %w", err)
	}
	if paste.Expired(s.now()) {
		if err := s.store.Delete(ctx, short); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, false, fmt.Errorf("delete expired paste: %w", err)
		}
		metrics.PastesExpired.WithLabelValues("read").Inc()
		s.logger.Debug("expired paste removed", "short", short)
		return nil, false, nil
	}
	return paste, true, nil
}

// allocate draws names until one is free, giving up after maxAttempts.
func (s *Service) allocate(ctx context.Context, length int) (string, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		short, err := s.ids.Generate(ctx, length)
		if err != nil {
			return "", fmt.Errorf("generate name: %w", err)
		}
		_, taken, err := s.live(ctx, short)
		if err != nil {
			return "", err
		}
		if !taken {
			return short, nil
		}
		metrics.NameCollisions.Inc()
	}
	s.logger.Error("name allocation exhausted", "attempts", s.maxAttempts, "length", length)
	return "", Errorf(http.StatusInternalServerError, "unable to allocate a unique name after %d attempts", s.maxAttempts)
}

func resultFor(p *storage.Paste, private bool) *Result {
	return &Result{
		Short:    p.Short,
		Secret:   p.Metadata.Passwd,
		Filename: p.Metadata.Filename,
		Private:  private,
		Expire:   p.Metadata.ExpirationTTL,
		IsURL:    IsURL(p.Content),
	}
}
