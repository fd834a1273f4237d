// Package unified adapts sites that expose the MacCMS provide/vod JSON API.
package unified

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/duke-git/lancet/v2/slice"
	"golang.org/x/sync/singleflight"

	"github.com/famomatic/vodfetch/internal/cache"
	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/httpx"
)

// Options configures an Adapter.
type Options struct {
	ID      string
	Name    string
	BaseURL string
	Fetcher httpx.Fetcher
	// DetailCache, when set, serves repeated detail lookups.
	DetailCache *cache.Cache[Detail]
	Logger      *log.Logger
}

// Adapter implements channel.Channel for one MacCMS site.
type Adapter struct {
	id      string
	name    string
	baseURL string
	api     *API
	details *cache.Cache[Detail]
	logger  *log.Logger

	typesMu     sync.Mutex
	types       []TypeItem
	typesLoaded bool
	typesGroup  singleflight.Group
}

var (
	_ channel.Channel      = (*Adapter)(nil)
	_ channel.StrategyHint = (*Adapter)(nil)
)

// New returns an Adapter.
func New(opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	name := opts.Name
	if name == "" {
		name = opts.ID
	}
	return &Adapter{
		id:      opts.ID,
		name:    name,
		baseURL: opts.BaseURL,
		api:     NewAPI(opts.BaseURL, opts.Fetcher),
		details: opts.DetailCache,
		logger:  logger.WithPrefix("unified[" + opts.ID + "]"),
	}
}

func (a *Adapter) ID() string          { return a.id }
func (a *Adapter) DisplayName() string { return a.name }
func (a *Adapter) BaseURL() string     { return a.baseURL }

// PreferredStrategy reports that these hosts are remuxed straight from the
// manifest.
func (a *Adapter) PreferredStrategy() string { return "direct" }

// Detail returns the raw detail record of mediaID.
func (a *Adapter) Detail(ctx context.Context, mediaID string) (Detail, error) {
	fetch := func() (Detail, error) {
		a.logger.Debug("fetching detail", "media", mediaID)
		res, err := a.api.Details(ctx, []string{mediaID})
		if err != nil {
			return Detail{}, err
		}
		return res.List[0], nil
	}
	if a.details == nil {
		return fetch()
	}
	return a.details.GetOrFetch(a.id+":"+mediaID, fetch)
}

// PlaybackURL returns the URL of option sel.Episode (1 when unset).
func (a *Adapter) PlaybackURL(ctx context.Context, mediaID string, sel channel.Selector) (string, error) {
	d, err := a.Detail(ctx, mediaID)
	if err != nil {
		return "", err
	}
	return ParsePlayURL(d.PlayURL, sel.EpisodeNumber())
}

// Metadata returns the metadata of mediaID.
func (a *Adapter) Metadata(ctx context.Context, mediaID string) (*channel.Metadata, error) {
	d, err := a.Detail(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	meta := a.metadata(ctx, d)
	return &meta, nil
}

// Search lists keyword matches, then hydrates them with one detail call.
func (a *Adapter) Search(ctx context.Context, keyword string, page int) (*channel.SearchResult, error) {
	a.logger.Info("searching", "keyword", keyword, "page", page)
	list, err := a.api.List(ctx, ListRequest{Page: page, Keyword: keyword})
	if err != nil {
		return nil, err
	}
	result := &channel.SearchResult{
		Items:    []channel.Metadata{},
		Page:     int(list.Page),
		PageSize: int(list.Limit),
		Total:    int(list.Total),
	}
	if len(list.List) == 0 {
		return result, nil
	}

	ids := slice.Map(list.List, func(_ int, item ListItem) string {
		return strconv.Itoa(int(item.ID))
	})
	details, err := a.api.Details(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]Detail, len(details.List))
	for _, d := range details.List {
		byID[int(d.ID)] = d
	}
	ordered := slice.Filter(list.List, func(_ int, item ListItem) bool {
		_, ok := byID[int(item.ID)]
		return ok
	})
	result.Items = slice.Map(ordered, func(_ int, item ListItem) channel.Metadata {
		return a.metadata(ctx, byID[int(item.ID)])
	})
	return result, nil
}

// Playlist lists every option of mediaID's play source.
func (a *Adapter) Playlist(ctx context.Context, mediaID string) (*channel.Playlist, error) {
	d, err := a.Detail(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	return &channel.Playlist{Channel: a.id, MediaID: mediaID, Items: PlayOptions(d.PlayURL)}, nil
}

func (a *Adapter) metadata(ctx context.Context, d Detail) channel.Metadata {
	year, _ := strconv.Atoi(strings.TrimSpace(d.Year))
	return channel.Metadata{
		Channel:     a.id,
		ID:          strconv.Itoa(int(d.ID)),
		Name:        d.Name,
		Year:        year,
		PosterURL:   d.Picture,
		Description: d.Description,
		Kind:        a.kind(ctx, d),
		Episodes:    len(PlayOptions(d.PlayURL)),
	}
}
