// Package registry maps channel ids to adapters.
package registry

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"

	"github.com/famomatic/vodfetch/internal/cache"
	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/channel/scrape"
	"github.com/famomatic/vodfetch/internal/channel/unified"
	"github.com/famomatic/vodfetch/internal/config"
	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/types"
)

// ChannelInfo is the listing form of a registered channel.
type ChannelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Default bool   `json:"default"`
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	channels  map[string]channel.Channel
	defaultID string
	closers   []func()
}

// New registers channels under their IDs. defaultID may be empty; when set
// it must name one of channels.
func New(defaultID string, channels ...channel.Channel) (*Registry, error) {
	r := &Registry{channels: make(map[string]channel.Channel, len(channels)), defaultID: defaultID}
	for _, c := range channels {
		if _, dup := r.channels[c.ID()]; dup {
			return nil, fmt.Errorf("duplicate channel %q", c.ID())
		}
		r.channels[c.ID()] = c
	}
	if defaultID != "" {
		if _, ok := r.channels[defaultID]; !ok {
			return nil, fmt.Errorf("default channel %q is not registered", defaultID)
		}
	}
	return r, nil
}

// FromConfig builds one adapter per configured channel. Unified channels
// get their own HTTP client so http_version applies per site.
func FromConfig(cfg *config.Config, logger *log.Logger) (*Registry, error) {
	if logger == nil {
		logger = log.Default()
	}
	var (
		channels []channel.Channel
		closers  []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, id := range maputil.Keys(cfg.UnifiedChannels) {
		ch := cfg.UnifiedChannels[id]
		fetcher, err := httpx.New(httpx.Options{
			HTTPVersion: ch.HTTPVersion,
			UserAgent:   cfg.HTTP.UserAgent,
			Proxy:       cfg.HTTP.Proxy,
			Timeout:     cfg.HTTP.Timeout,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("channel %s: %w", id, err)
		}
		details, err := detailCache(cfg)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("channel %s: %w", id, err)
		}
		if details != nil {
			closers = append(closers, details.Close)
		}
		channels = append(channels, unified.New(unified.Options{
			ID:          id,
			Name:        ch.Name,
			BaseURL:     ch.BaseURL,
			Fetcher:     fetcher,
			DetailCache: details,
			Logger:      logger,
		}))
	}

	if len(cfg.ScrapeChannels) > 0 {
		fetcher, err := httpx.New(httpx.Options{
			UserAgent:  cfg.HTTP.UserAgent,
			Proxy:      cfg.HTTP.Proxy,
			Timeout:    cfg.HTTP.Timeout,
			CookieFile: cfg.HTTP.CookieFile,
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		for _, id := range maputil.Keys(cfg.ScrapeChannels) {
			ch := cfg.ScrapeChannels[id]
			channels = append(channels, scrape.New(scrape.Options{
				ID:      id,
				Name:    ch.Name,
				Host:    ch.Host,
				Fetcher: fetcher,
				Logger:  logger,
			}))
		}
	}

	r, err := New(cfg.DefaultChannel, channels...)
	if err != nil {
		closeAll()
		return nil, err
	}
	r.closers = closers
	logger.Debug("channel registry ready", "channels", len(channels), "default", cfg.DefaultChannel)
	return r, nil
}

func detailCache(cfg *config.Config) (*cache.Cache[unified.Detail], error) {
	if cfg.Cache.DetailTTL <= 0 {
		return nil, nil
	}
	return cache.New[unified.Detail](cache.Config{
		NumCounters: cfg.Cache.NumCounters,
		MaxCost:     cfg.Cache.MaxCost,
		TTL:         cfg.Cache.DetailTTL,
	})
}

// Get returns the channel registered under id.
func (r *Registry) Get(id string) (channel.Channel, error) {
	c, ok := r.channels[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "channel", ID: id}
	}
	return c, nil
}

// Resolve is Get with the default channel substituted for an empty id.
func (r *Registry) Resolve(id string) (channel.Channel, error) {
	if id == "" {
		if r.defaultID == "" {
			return nil, &types.NotFoundError{Kind: "channel", ID: "(default)"}
		}
		id = r.defaultID
	}
	return r.Get(id)
}

// DefaultID returns the configured default channel, possibly empty.
func (r *Registry) DefaultID() string { return r.defaultID }

// List returns every channel sorted by id.
func (r *Registry) List() []ChannelInfo {
	ids := maputil.Keys(r.channels)
	sort.Strings(ids)
	return slice.Map(ids, func(_ int, id string) ChannelInfo {
		c := r.channels[id]
		return ChannelInfo{
			ID:      id,
			Name:    c.DisplayName(),
			BaseURL: c.BaseURL(),
			Default: id == r.defaultID,
		}
	})
}

// Close releases adapter caches.
func (r *Registry) Close() {
	for _, c := range r.closers {
		c()
	}
	r.closers = nil
}
