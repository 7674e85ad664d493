package main

import (
	"fmt"
	"log/slog"

	"pastebin/internal/metrics"
	"pastebin/internal/storage"
	"pastebin/internal/storage/boltstore"
	"pastebin/internal/storage/cachestore"
	"pastebin/internal/storage/memstore"
	"pastebin/internal/storage/redisstore"
)

func openStore(cfg config, logger *slog.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Store {
	case "bolt":
		store, err = boltstore.Open(cfg.DataPath)
	case "memory":
		store = memstore.New()
	case "redis":
		store, err = redisstore.Open(cfg.RedisURL, cfg.RedisTimeout)
	case "sqlite":
		store, err = openSQLite(cfg.DataPath)
	default:
		err = fmt.Errorf("unknown store %q", cfg.Store)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("store opened", "store", cfg.Store)

	if cfg.CacheSize == 0 || cfg.Store == "memory" {
		return store, nil
	}
	cached, err := cachestore.New(store, cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		store.Close()
		return nil, err
	}
	cached.OnHit = metrics.CacheHits.Inc
	cached.OnMiss = metrics.CacheMisses.Inc
	return cached, nil
}
