package client

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/famomatic/vodfetch/internal/config"
	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/job"
	"github.com/famomatic/vodfetch/internal/registry"
	"github.com/famomatic/vodfetch/internal/store"
)

// Config holds configuration for the client.
type Config struct {
	// Channels resolves channel ids. Required.
	Channels *registry.Registry

	// Fetcher serves manifests and segments.
	// If nil, an httpx client is built from UserAgent, ProxyURL and HTTPTimeout.
	Fetcher     httpx.Fetcher
	UserAgent   string
	ProxyURL    string
	HTTPTimeout time.Duration

	// Store keeps download records. Defaults to an in-memory store.
	Store store.Store

	// Remuxer produces the final file. Defaults to ffmpeg at FFmpegPath.
	Remuxer    job.Remuxer
	FFmpegPath string

	// DownloadDir receives finished files. Default is "downloads".
	DownloadDir string
	// TempDir holds per-job segment directories.
	TempDir string

	// Concurrency bounds in-flight segment downloads per job.
	Concurrency int
	// Cooldown is held after each segment before its permit is released.
	Cooldown time.Duration
	// RateLimit caps segment requests per second across a job; 0 disables it.
	RateLimit float64
	// Strategy forces one remux strategy for every channel. Empty lets the
	// channel choose.
	Strategy Strategy
	// CancelOnDetach cancels a job once all of its receivers are closed.
	CancelOnDetach bool

	// RequestTimeout bounds synchronous calls (metadata, search, playback
	// URL resolution). It does not apply to running jobs.
	RequestTimeout time.Duration

	Logger *log.Logger
}

// FromSettings maps loaded settings onto a Config. Channels and Store are
// left for the caller; Open fills both.
func FromSettings(s *config.Config) (Config, error) {
	strategy, err := job.ParseStrategy(s.Download.Strategy)
	if err != nil {
		return Config{}, err
	}
	return Config{
		UserAgent:      s.HTTP.UserAgent,
		ProxyURL:       s.HTTP.Proxy,
		HTTPTimeout:    s.HTTP.Timeout,
		FFmpegPath:     s.FFmpeg.Path,
		DownloadDir:    s.DownloadDir,
		TempDir:        s.TempRoot(),
		Concurrency:    s.Download.Concurrency,
		Cooldown:       s.Download.Cooldown,
		RateLimit:      s.Download.RateLimit,
		Strategy:       strategy,
		CancelOnDetach: s.Download.CancelOnDetach,
		RequestTimeout: s.HTTP.Timeout,
	}, nil
}

// Open builds a Client with its registry and record store from settings.
// A Redis store is used when store.redis_addr is set.
func Open(ctx context.Context, s *config.Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	cfg, err := FromSettings(s)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger

	channels, err := registry.FromConfig(s, logger)
	if err != nil {
		return nil, fmt.Errorf("build channel registry: %w", err)
	}
	cfg.Channels = channels

	if s.Store.RedisAddr != "" {
		rs, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:      s.Store.RedisAddr,
			Password:  s.Store.RedisPassword,
			DB:        s.Store.RedisDB,
			KeyPrefix: s.Store.KeyPrefix,
			Logger:    logger,
		})
		if err != nil {
			channels.Close()
			return nil, err
		}
		cfg.Store = rs
	}

	c, err := New(cfg)
	if err != nil {
		channels.Close()
		if cfg.Store != nil {
			_ = cfg.Store.Close()
		}
		return nil, err
	}
	c.ownsChannels = true
	return c, nil
}
