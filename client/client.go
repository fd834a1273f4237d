// Package client is the public entry point: it resolves channels, runs
// downloads and tracks their records.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/famomatic/vodfetch/internal/downloader"
	"github.com/famomatic/vodfetch/internal/hls"
	"github.com/famomatic/vodfetch/internal/job"
	"github.com/famomatic/vodfetch/internal/progress"
	"github.com/famomatic/vodfetch/internal/registry"
	"github.com/famomatic/vodfetch/internal/remux"
	"github.com/famomatic/vodfetch/internal/store"
)

const defaultDownloadDir = "downloads"

// Client is the high-level media client.
type Client struct {
	config       Config
	channels     *registry.Registry
	store        store.Store
	runner       *job.Runner
	logger       *log.Logger
	ownsChannels bool
}

// New creates a client. Only config.Channels is required.
func New(config Config) (*Client, error) {
	if config.Channels == nil {
		return nil, errors.New("client: channel registry is required")
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.DownloadDir == "" {
		config.DownloadDir = defaultDownloadDir
	}
	if config.Fetcher == nil {
		f, err := defaultFetcher(config)
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		config.Fetcher = f
	}
	if config.Store == nil {
		config.Store = store.NewMemory()
	}
	if config.Remuxer == nil {
		config.Remuxer = remux.NewFFmpeg(config.FFmpegPath)
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	c := &Client{
		config:   config,
		channels: config.Channels,
		store:    config.Store,
		logger:   config.Logger,
	}
	c.runner = &job.Runner{
		Resolver: &hls.Resolver{Fetcher: config.Fetcher, Policy: hls.LastVariant},
		Downloader: &downloader.Downloader{
			Fetcher:     config.Fetcher,
			Concurrency: config.Concurrency,
			Cooldown:    config.Cooldown,
			Limiter:     limiter,
		},
		Remuxer:        config.Remuxer,
		TempDir:        config.TempDir,
		CancelOnDetach: config.CancelOnDetach,
		Logger:         config.Logger,
		Observer:       c.recordEvent,
	}
	return c, nil
}

// Close releases the record store and, for clients built by Open, the
// channel registry. Running jobs are not waited for.
func (c *Client) Close() error {
	if c.ownsChannels {
		c.channels.Close()
	}
	return c.store.Close()
}

// Channels lists the configured channels sorted by id.
func (c *Client) Channels() []ChannelInfo {
	return c.channels.List()
}

// GetMetadata fetches the description of mediaID. An empty channelID uses
// the default channel.
func (c *Client) GetMetadata(ctx context.Context, channelID, mediaID string) (*Metadata, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	ch, err := c.channels.Resolve(channelID)
	if err != nil {
		return nil, err
	}
	return ch.Metadata(ctx, mediaID)
}

// Search runs a keyword search on one channel.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	ch, err := c.channels.Resolve(req.Channel)
	if err != nil {
		return nil, err
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	res, err := ch.Search(ctx, req.Keyword, page)
	if err != nil {
		return nil, err
	}
	if req.PageSize > 0 && len(res.Items) > req.PageSize {
		res.Items = res.Items[:req.PageSize]
	}
	return res, nil
}

// GetPlaylist lists the episodes of mediaID.
func (c *Client) GetPlaylist(ctx context.Context, channelID, mediaID string) (*Playlist, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	ch, err := c.channels.Resolve(channelID)
	if err != nil {
		return nil, err
	}
	return ch.Playlist(ctx, mediaID)
}

// Records returns download records, newest first.
func (c *Client) Records(ctx context.Context) ([]*Record, error) {
	return c.store.List(ctx)
}

func (c *Client) recordEvent(spec job.Spec, ev progress.Event) {
	u, ok := store.UpdateFor(ev)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Update(ctx, spec.ID, u); err != nil {
		c.logger.Warn("update download record", "id", spec.ID, "status", u.Status, "err", err)
	}
}
