// Package config loads runtime settings from defaults, JSON5 files, .env and the
// environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"github.com/baxromumarov/tabscrape/internal/batch"
	"github.com/baxromumarov/tabscrape/internal/httpx"
)

const (
	DefaultFile     = "tabscrape.json5"
	DefaultHTTPAddr = ":8080"
	envPrefix       = "TABSCRAPE_"
)

type Config struct {
	Backend       string
	UserAgent     string
	Timeout       time.Duration
	MaxBodyBytes  int
	RespectRobots bool
	LogLevel      string
	HTTPAddr      string
	Concurrency   int
	RatePerSecond float64
}

func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = httpx.BackendColly
	}
	if c.UserAgent == "" {
		c.UserAgent = httpx.DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = httpx.DefaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = httpx.DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.Concurrency <= 0 {
		c.Concurrency = batch.DefaultConcurrency
	}
	return c
}

// file mirrors Config as written in JSON5. Durations are strings such as "30s".
type file struct {
	Backend       string  `json:"backend"`
	UserAgent     string  `json:"user_agent"`
	Timeout       string  `json:"timeout"`
	MaxBodyBytes  int     `json:"max_body_bytes"`
	RespectRobots bool    `json:"respect_robots"`
	LogLevel      string  `json:"log_level"`
	HTTPAddr      string  `json:"http_addr"`
	Concurrency   int     `json:"concurrency"`
	RatePerSecond float64 `json:"rate_per_second"`
}

// Load reads path (DefaultFile when empty) and its <name>.local.json5 sibling, then a
// .env file in the same directory, then TABSCRAPE_* environment variables. Missing
// files are skipped.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultFile
	}
	f, err := readFiles(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := f.config()
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

func readFiles(path string) (file, error) {
	var out file
	base, err := readFile(path)
	if err != nil {
		return out, err
	}
	if base != nil {
		out = *base
	}

	ext := filepath.Ext(path)
	local := strings.TrimSuffix(path, ext) + ".local" + ext
	override, err := readFile(local)
	if err != nil {
		return out, err
	}
	if override != nil {
		if err := mergo.Merge(&out, *override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", local, err)
		}
		slog.Debug("merged local config overrides", "local", local)
	}
	return out, nil
}

func readFile(path string) (*file, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f file
	if err := json5.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

func (f file) config() (Config, error) {
	cfg := Config{
		Backend:       f.Backend,
		UserAgent:     f.UserAgent,
		MaxBodyBytes:  f.MaxBodyBytes,
		RespectRobots: f.RespectRobots,
		LogLevel:      f.LogLevel,
		HTTPAddr:      f.HTTPAddr,
		Concurrency:   f.Concurrency,
		RatePerSecond: f.RatePerSecond,
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	parse := func(name string, set func(string) error) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		if err := set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		}
	}

	str("BACKEND", &cfg.Backend)
	str("USER_AGENT", &cfg.UserAgent)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("HTTP_ADDR", &cfg.HTTPAddr)
	if port, ok := lookup("PORT"); ok && port != "" && cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":" + port
	}
	parse("TIMEOUT", func(v string) (err error) {
		cfg.Timeout, err = time.ParseDuration(v)
		return err
	})
	parse("MAX_BODY_BYTES", func(v string) (err error) {
		cfg.MaxBodyBytes, err = strconv.Atoi(v)
		return err
	})
	parse("RESPECT_ROBOTS", func(v string) (err error) {
		cfg.RespectRobots, err = strconv.ParseBool(v)
		return err
	})
	parse("CONCURRENCY", func(v string) (err error) {
		cfg.Concurrency, err = strconv.Atoi(v)
		return err
	})
	parse("RATE_PER_SECOND", func(v string) (err error) {
		cfg.RatePerSecond, err = strconv.ParseFloat(v, 64)
		return err
	})
	return errors.Join(errs...)
}

// FetchOptions is the fetcher view of the config.
func (c Config) FetchOptions() httpx.Options {
	return httpx.Options{
		UserAgent:     c.UserAgent,
		Timeout:       c.Timeout,
		MaxBodyBytes:  c.MaxBodyBytes,
		RespectRobots: c.RespectRobots,
	}
}

// BatchOptions is the batch view of the config.
func (c Config) BatchOptions(logger *slog.Logger) batch.Options {
	return batch.Options{
		Concurrency:   c.Concurrency,
		RatePerSecond: c.RatePerSecond,
		Logger:        logger,
	}
}

// Level maps LogLevel to a slog level; unknown names mean info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger builds the JSON logger every binary installs as the default.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.Level()}))
}
