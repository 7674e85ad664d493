package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pastebin/internal/httpserver"
	"pastebin/internal/id"
	"pastebin/internal/render"
	"pastebin/internal/security"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := loadDotenv(".env"); err != nil {
		slog.Error("failed loading .env", "error", err)
		os.Exit(2)
	}
	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// hashPassword reads a password line from r and writes its Argon2id hash, for
// use as the password part of a basic-auth entry.
func hashPassword(r io.Reader, w io.Writer) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	hash, err := security.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

func newLogger(cfg config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg config, logger *slog.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	renderer, err := render.New(cfg.HighlightStyle)
	if err != nil {
		return err
	}

	var limiter *httpserver.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = httpserver.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst, 15*time.Minute)
	}

	srv, err := httpserver.New(httpserver.Config{
		Store:              store,
		IDGenerator:        id.New(id.Alphabet),
		MaxBytes:           cfg.MaxBytes,
		MaxAttempts:        cfg.MaxAttempts,
		RateLimiter:        limiter,
		TrustProxy:         cfg.BehindProxy,
		BaseURL:            cfg.BaseURL,
		Logger:             logger,
		BasicAuth:          security.ParseCredentials(cfg.BasicAuth),
		Renderer:           renderer,
		CachePasteAge:      cfg.CachePasteAge,
		CacheStaticPageAge: cfg.CacheStaticPageAge,
		Favicon:            cfg.Favicon,
		Repo:               cfg.Repo,
		TOSMaintainer:      cfg.TOSMaintainer,
		TOSMail:            cfg.TOSMail,
		Metrics:            cfg.Metrics,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvHTTP := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srvHTTP.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return httpserver.RunJanitor(gctx, store, cfg.SweepInterval, logger)
	})
	return g.Wait()
}
