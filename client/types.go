package client

import (
	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/job"
	"github.com/famomatic/vodfetch/internal/progress"
	"github.com/famomatic/vodfetch/internal/registry"
	"github.com/famomatic/vodfetch/internal/store"
)

type (
	// Selector picks one episode; zero fields mean 1.
	Selector = channel.Selector
	// Metadata is the normalized media description.
	Metadata     = channel.Metadata
	SearchResult = channel.SearchResult
	Playlist     = channel.Playlist
	ChannelInfo  = registry.ChannelInfo
	Record       = store.Record
	// Update is the wire form of one progress event.
	Update = progress.Update
	// Handle observes and controls one running download.
	Handle   = job.Handle
	Receiver = job.Receiver
	Strategy = job.Strategy
)

const (
	StrategySegments = job.StrategySegments
	StrategyDirect   = job.StrategyDirect
)

// SearchRequest selects a channel, keyword and page. An empty Channel
// searches the default channel; Page defaults to 1. PageSize, when set,
// truncates the site's page.
type SearchRequest struct {
	Channel  string
	Keyword  string
	Page     int
	PageSize int
}
