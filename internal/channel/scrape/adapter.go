// Package scrape adapts sites that only expose rendered HTML play pages.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/playerjs"
	"github.com/famomatic/vodfetch/internal/types"
)

const (
	titleSelector = ".title.text-fff"
	yearSelector  = ".myui-player__data > .text-muted > .text-muted"
)

var downloadURLPattern = regexp.MustCompile(`","url":"(\S+?)","url_next`)

// Options configures an Adapter.
type Options struct {
	ID   string
	Name string
	Host string
	// Scheme defaults to https.
	Scheme  string
	Fetcher httpx.Fetcher
	Logger  *log.Logger
}

// Adapter implements channel.Channel by scraping play pages. Nothing is
// cached; every call fetches the page again.
type Adapter struct {
	id      string
	name    string
	host    string
	scheme  string
	fetcher httpx.Fetcher
	logger  *log.Logger
}

var (
	_ channel.Channel      = (*Adapter)(nil)
	_ channel.StrategyHint = (*Adapter)(nil)
	_ channel.FileNamer    = (*Adapter)(nil)
)

// New returns an Adapter.
func New(opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}
	name := opts.Name
	if name == "" {
		name = opts.ID
	}
	return &Adapter{
		id:      opts.ID,
		name:    name,
		host:    opts.Host,
		scheme:  scheme,
		fetcher: opts.Fetcher,
		logger:  logger.WithPrefix("scrape[" + opts.ID + "]"),
	}
}

func (a *Adapter) ID() string          { return a.id }
func (a *Adapter) DisplayName() string { return a.name }
func (a *Adapter) BaseURL() string     { return a.scheme + "://" + a.host }

// PreferredStrategy reports that these hosts are downloaded segment by
// segment.
func (a *Adapter) PreferredStrategy() string { return "segments" }

// FileName names downloads "<id>-<season>-<episode>.mp4".
func (a *Adapter) FileName(mediaID string, sel channel.Selector) string {
	return fmt.Sprintf("%s-%d-%d.mp4", mediaID, sel.SeasonNumber(), sel.EpisodeNumber())
}

// PageURL returns the play page of one episode.
func (a *Adapter) PageURL(mediaID string, sel channel.Selector) string {
	return fmt.Sprintf("%s/index.php/vod/play/id/%s/sid/%d/nid/%d.html", a.BaseURL(), mediaID, sel.SeasonNumber(), sel.EpisodeNumber())
}

// PlaybackURL extracts the stream URL embedded in the episode's play page.
func (a *Adapter) PlaybackURL(ctx context.Context, mediaID string, sel channel.Selector) (string, error) {
	html, err := a.page(ctx, mediaID, sel)
	if err != nil {
		return "", err
	}
	return a.extractDownloadURL(ctx, html)
}

// Metadata reads title and year from the first episode's play page.
func (a *Adapter) Metadata(ctx context.Context, mediaID string) (*channel.Metadata, error) {
	html, err := a.page(ctx, mediaID, channel.Selector{})
	if err != nil {
		return nil, err
	}
	title, year, err := parseDetails(html)
	if err != nil {
		return nil, err
	}
	return &channel.Metadata{
		Channel: a.id,
		ID:      mediaID,
		Name:    title,
		Year:    year,
		Kind:    channel.KindTV,
		// Episode counts are not published on play pages.
		Episodes: 0,
	}, nil
}

func (a *Adapter) Search(context.Context, string, int) (*channel.SearchResult, error) {
	return nil, fmt.Errorf("channel %s: search: %w", a.id, types.ErrUnsupported)
}

func (a *Adapter) Playlist(context.Context, string) (*channel.Playlist, error) {
	return nil, fmt.Errorf("channel %s: playlist: %w", a.id, types.ErrUnsupported)
}

func (a *Adapter) page(ctx context.Context, mediaID string, sel channel.Selector) (string, error) {
	u := a.PageURL(mediaID, sel)
	a.logger.Debug("fetching play page", "url", u)
	body, err := a.fetcher.Get(ctx, u, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// extractDownloadURL prefers evaluating the inline player config, which
// also handles obfuscated URLs, and falls back to the raw JSON pattern.
func (a *Adapter) extractDownloadURL(ctx context.Context, html string) (string, error) {
	if script, ok := playerjs.ExtractScript(html); ok {
		cfg, err := playerjs.Evaluate(ctx, script)
		if err == nil {
			return cfg.URL, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		a.logger.Debug("player config evaluation failed, falling back to pattern", "err", err)
	}
	m := downloadURLPattern.FindStringSubmatch(html)
	if m == nil {
		return "", &types.ParseError{What: "play page", Err: errors.New("download url not found")}
	}
	return strings.ReplaceAll(m[1], `\/`, "/"), nil
}

func parseDetails(html string) (string, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", 0, &types.ParseError{What: "play page", Err: err}
	}
	title := doc.Find(titleSelector).First()
	if title.Length() == 0 {
		return "", 0, &types.ParseError{What: "play page", Err: fmt.Errorf("no element matches %q", titleSelector)}
	}
	yearNode := doc.Find(yearSelector).Last()
	if yearNode.Length() == 0 {
		return "", 0, &types.ParseError{What: "play page", Err: fmt.Errorf("no element matches %q", yearSelector)}
	}
	yearText := strings.TrimSpace(yearNode.Text())
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return "", 0, &types.ParseError{What: "play page year", Err: fmt.Errorf("%q: %w", yearText, err)}
	}
	return strings.TrimSpace(title.Text()), year, nil
}
