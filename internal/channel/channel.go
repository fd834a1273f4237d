// Package channel defines the capability every video source implements.
package channel

import (
	"context"
	"strconv"
)

// Kind classifies a media item.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindTV      Kind = "tv"
	KindAnime   Kind = "anime"
	KindVariety Kind = "variety"
	KindOther   Kind = "other"
)

// Selector picks one playable item of a media entry. Zero fields mean the
// first season or episode.
type Selector struct {
	Season  int
	Episode int
}

// EpisodeNumber returns the 1-based episode.
func (s Selector) EpisodeNumber() int {
	if s.Episode <= 0 {
		return 1
	}
	return s.Episode
}

// SeasonNumber returns the 1-based season.
func (s Selector) SeasonNumber() int {
	if s.Season <= 0 {
		return 1
	}
	return s.Season
}

// Metadata describes a media entry.
type Metadata struct {
	Channel     string `json:"channel"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Year        int    `json:"year"`
	PosterURL   string `json:"poster_url,omitempty"`
	Description string `json:"description,omitempty"`
	Kind        Kind   `json:"kind"`
	Episodes    int    `json:"episodes"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Items    []Metadata `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
}

// PlaylistItem is one numbered playable option.
type PlaylistItem struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	URL    string `json:"url"`
}

// Playlist lists the playable options of a media entry.
type Playlist struct {
	Channel string         `json:"channel"`
	MediaID string         `json:"media_id"`
	Items   []PlaylistItem `json:"items"`
}

// Channel resolves media ids of one site.
type Channel interface {
	ID() string
	DisplayName() string
	BaseURL() string
	// PlaybackURL returns the manifest URL for the selected item.
	PlaybackURL(ctx context.Context, mediaID string, sel Selector) (string, error)
	Metadata(ctx context.Context, mediaID string) (*Metadata, error)
	Search(ctx context.Context, keyword string, page int) (*SearchResult, error)
	Playlist(ctx context.Context, mediaID string) (*Playlist, error)
}

// StrategyHint is implemented by channels whose hosts work best with a
// particular download strategy.
type StrategyHint interface {
	PreferredStrategy() string
}

// FileNamer is implemented by channels that name downloads themselves.
type FileNamer interface {
	FileName(mediaID string, sel Selector) string
}

// FileName returns the download file name for mediaID: the channel's own
// naming when it has one, else "<id>-<episode>.mp4".
func FileName(c Channel, mediaID string, sel Selector) string {
	if n, ok := c.(FileNamer); ok {
		return n.FileName(mediaID, sel)
	}
	return mediaID + "-" + strconv.Itoa(sel.EpisodeNumber()) + ".mp4"
}
