package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const usage = `Usage: pastebin [flags]

Configuration is read from defaults, then the TOML file given by -config or
PB_CONFIG, then a .env file and PB_* environment variables, then flags.

Flags:
`

type config struct {
	ConfigFile string `toml:"-"`

	Addr        string `toml:"addr"`
	BaseURL     string `toml:"base_url"`
	MaxBytes    int    `toml:"max_bytes"`
	MaxAttempts int    `toml:"max_attempts"`
	BehindProxy bool   `toml:"behind_proxy"`

	Store        string        `toml:"store"`
	DataPath     string        `toml:"data_path"`
	RedisURL     string        `toml:"redis_url"`
	RedisTimeout time.Duration `toml:"redis_timeout"`
	CacheSize    int           `toml:"cache_size"`
	CacheTTL     time.Duration `toml:"cache_ttl"`

	SweepInterval time.Duration `toml:"sweep_interval"`
	RateLimit     float64       `toml:"rate_limit"`
	RateBurst     int           `toml:"rate_burst"`

	BasicAuth []string `toml:"basic_auth"`

	CachePasteAge      int    `toml:"cache_paste_age"`
	CacheStaticPageAge int    `toml:"cache_static_page_age"`
	Favicon            string `toml:"favicon"`
	Repo               string `toml:"repo"`
	TOSMaintainer      string `toml:"tos_maintainer"`
	TOSMail            string `toml:"tos_mail"`
	HighlightStyle     string `toml:"highlight_style"`

	Metrics   bool   `toml:"metrics"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

func defaultConfig() config {
	return config{
		Addr:         ":8080",
		MaxBytes:     25 << 20,
		MaxAttempts:  32,
		Store:        "bolt",
		DataPath:     "./pastebin.db",
		RedisTimeout: 5 * time.Second,
		CacheSize:    1024,
		CacheTTL:     time.Minute,
		RateLimit:    5,
		RateBurst:    10,
		Metrics:      true,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

func bindFlags(fs *flag.FlagSet, c *config) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "path to a TOML configuration file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "canonical base URL used in responses (optional)")
	fs.IntVar(&c.MaxBytes, "max-bytes", c.MaxBytes, "maximum paste size in bytes")
	fs.IntVar(&c.MaxAttempts, "max-attempts", c.MaxAttempts, "attempts at finding a free random name")
	fs.BoolVar(&c.BehindProxy, "behind-proxy", c.BehindProxy, "trust proxy headers for rate limiting and scheme")
	fs.StringVar(&c.Store, "store", c.Store, "storage backend: bolt, memory, redis or sqlite")
	fs.StringVar(&c.DataPath, "data", c.DataPath, "path to the bolt or sqlite data file")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "redis URL for the redis store")
	fs.DurationVar(&c.RedisTimeout, "redis-timeout", c.RedisTimeout, "timeout of redis operations")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "entries in the read cache, 0 disables it")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "lifetime of read cache entries")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "interval of the expired paste sweeper, 0 disables it")
	fs.Float64Var(&c.RateLimit, "rate-limit", c.RateLimit, "requests per second per client, 0 disables limiting")
	fs.IntVar(&c.RateBurst, "rate-burst", c.RateBurst, "burst size of the rate limiter")
	seen := false
	fs.Func("basic-auth", "user:password allowed through the basic-auth gate (repeatable)", func(v string) error {
		if !seen {
			c.BasicAuth = nil
			seen = true
		}
		c.BasicAuth = append(c.BasicAuth, v)
		return nil
	})
	fs.IntVar(&c.CachePasteAge, "cache-paste-age", c.CachePasteAge, "Cache-Control max-age of pastes in seconds")
	fs.IntVar(&c.CacheStaticPageAge, "cache-static-page-age", c.CacheStaticPageAge, "Cache-Control max-age of static pages in seconds")
	fs.StringVar(&c.Favicon, "favicon", c.Favicon, "URL /favicon.ico redirects to")
	fs.StringVar(&c.Repo, "repo", c.Repo, "source repository linked from the index page")
	fs.StringVar(&c.TOSMaintainer, "tos-maintainer", c.TOSMaintainer, "maintainer named in the terms of service")
	fs.StringVar(&c.TOSMail, "tos-mail", c.TOSMail, "contact address in the terms of service")
	fs.StringVar(&c.HighlightStyle, "highlight-style", c.HighlightStyle, "chroma style for highlighted pastes")
	fs.BoolVar(&c.Metrics, "metrics", c.Metrics, "expose prometheus metrics on /metrics")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "text or json")
}

// loadConfig resolves the configuration from every source. Flags are parsed
// twice: once to find the config file, then over the merged values so that
// only flags given explicitly override them.
func loadConfig(args []string, getenv func(string) string) (config, error) {
	probe := defaultConfig()
	pre := flag.NewFlagSet("pastebin", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	bindFlags(pre, &probe)
	if err := pre.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
		}
		return config{}, err
	}

	cfg := defaultConfig()
	path := probe.ConfigFile
	if path == "" {
		path = getenv("PB_CONFIG")
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return config{}, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
		}
		cfg.ConfigFile = path
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return config{}, err
	}

	fs := flag.NewFlagSet("pastebin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bindFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	return cfg, cfg.validate()
}

func printUsage() {
	fs := flag.NewFlagSet("pastebin", flag.ContinueOnError)
	c := defaultConfig()
	bindFlags(fs, &c)
	fmt.Fprint(os.Stderr, usage)
	fs.SetOutput(os.Stderr)
	fs.PrintDefaults()
}

// loadDotenv reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("PB_ADDR", &c.Addr)
	str("PB_BASE_URL", &c.BaseURL)
	num("PB_MAX_BYTES", &c.MaxBytes)
	num("PB_MAX_ATTEMPTS", &c.MaxAttempts)
	boolean("PB_BEHIND_PROXY", &c.BehindProxy)
	str("PB_STORE", &c.Store)
	str("PB_DATA_PATH", &c.DataPath)
	str("PB_REDIS_URL", &c.RedisURL)
	dur("PB_REDIS_TIMEOUT", &c.RedisTimeout)
	num("PB_CACHE_SIZE", &c.CacheSize)
	dur("PB_CACHE_TTL", &c.CacheTTL)
	dur("PB_SWEEP_INTERVAL", &c.SweepInterval)
	float("PB_RATE_LIMIT", &c.RateLimit)
	num("PB_RATE_BURST", &c.RateBurst)
	if v := getenv("PB_BASIC_AUTH"); v != "" {
		c.BasicAuth = splitBasicAuth(v)
	}
	num("PB_CACHE_PASTE_AGE", &c.CachePasteAge)
	num("PB_CACHE_STATIC_PAGE_AGE", &c.CacheStaticPageAge)
	str("PB_FAVICON", &c.Favicon)
	str("PB_REPO", &c.Repo)
	str("PB_TOS_MAINTAINER", &c.TOSMaintainer)
	str("PB_TOS_MAIL", &c.TOSMail)
	str("PB_HIGHLIGHT_STYLE", &c.HighlightStyle)
	boolean("PB_METRICS", &c.Metrics)
	str("PB_LOG_LEVEL", &c.LogLevel)
	str("PB_LOG_FORMAT", &c.LogFormat)
	return errors.Join(errs...)
}

// splitBasicAuth splits a comma separated list of user:pass entries. A segment
// without a colon continues the previous entry, which keeps the parameter list
// of an Argon2id hash in one piece.
func splitBasicAuth(v string) []string {
	var out []string
	for _, seg := range strings.Split(v, ",") {
		if len(out) > 0 && !strings.Contains(seg, ":") {
			out[len(out)-1] += "," + seg
			continue
		}
		out = append(out, seg)
	}
	return out
}

func (c config) validate() error {
	if c.MaxBytes <= 0 {
		return errors.New("max-bytes must be positive")
	}
	if c.CacheSize < 0 {
		return errors.New("cache-size must not be negative")
	}
	switch c.Store {
	case "bolt", "sqlite":
		if c.DataPath == "" {
			return fmt.Errorf("%s store needs a data path", c.Store)
		}
	case "redis":
		if c.RedisURL == "" {
			return errors.New("redis store needs a redis url")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
