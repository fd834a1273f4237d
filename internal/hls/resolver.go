// Package hls resolves HLS manifest trees down to one media playlist.
package hls

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/grafov/m3u8"

	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/types"
)

// DefaultMaxDepth bounds master playlist nesting.
const DefaultMaxDepth = 5

// VariantPolicy picks one variant out of a master playlist.
type VariantPolicy func(variants []*m3u8.Variant) *m3u8.Variant

// LastVariant picks the last-listed variant.
func LastVariant(variants []*m3u8.Variant) *m3u8.Variant {
	for i := len(variants) - 1; i >= 0; i-- {
		if variants[i] != nil {
			return variants[i]
		}
	}
	return nil
}

// Resolved is the outcome of a resolution: the media playlist that was
// finally reached, with every URI made absolute.
type Resolved struct {
	URL      string
	Playlist *m3u8.MediaPlaylist
	Segments []string
	Duration time.Duration
}

// Resolver fetches and follows manifests.
type Resolver struct {
	Fetcher  httpx.Fetcher
	MaxDepth int
	Policy   VariantPolicy
}

// Resolve fetches rawURL and follows master playlists until a media playlist
// is reached.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolved, error) {
	maxDepth := r.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	policy := r.Policy
	if policy == nil {
		policy = LastVariant
	}
	return r.resolve(ctx, rawURL, 0, maxDepth, policy)
}

func (r *Resolver) resolve(ctx context.Context, rawURL string, depth, maxDepth int, policy VariantPolicy) (*Resolved, error) {
	if depth > maxDepth {
		return nil, &types.ParseError{What: "playlist", Err: fmt.Errorf("playlist nesting exceeds %d", maxDepth)}
	}
	body, err := r.Fetcher.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	pl, err := Decode(body)
	if err != nil {
		return nil, err
	}

	switch p := pl.(type) {
	case *m3u8.MasterPlaylist:
		variants := make([]*m3u8.Variant, 0, len(p.Variants))
		for _, v := range p.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			v.URI = resolveURL(rawURL, v.URI)
			variants = append(variants, v)
		}
		if len(variants) == 0 {
			return nil, &types.ParseError{What: "master playlist", Err: fmt.Errorf("no variants in %s", rawURL)}
		}
		chosen := policy(variants)
		if chosen == nil {
			return nil, &types.ParseError{What: "master playlist", Err: fmt.Errorf("no variant selected in %s", rawURL)}
		}
		log.FromContext(ctx).Debug("following variant", "from", rawURL, "to", chosen.URI, "variants", len(variants), "depth", depth)
		return r.resolve(ctx, chosen.URI, depth+1, maxDepth, policy)
	case *m3u8.MediaPlaylist:
		return newResolved(rawURL, p)
	default:
		return nil, &types.ParseError{What: "playlist", Err: fmt.Errorf("unexpected playlist type %T", pl)}
	}
}

// Decode parses a manifest body into a master or media playlist.
func Decode(body []byte) (m3u8.Playlist, error) {
	trimmed := bytes.TrimPrefix(bytes.TrimSpace(body), []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(trimmed, []byte("#EXTM3U")) {
		return nil, &types.ParseError{What: "playlist", Err: fmt.Errorf("missing #EXTM3U header")}
	}
	pl, _, err := m3u8.DecodeFrom(bytes.NewReader(trimmed), false)
	if err != nil {
		return nil, &types.ParseError{What: "playlist", Err: err}
	}
	return pl, nil
}

func newResolved(rawURL string, p *m3u8.MediaPlaylist) (*Resolved, error) {
	if p.Key != nil && p.Key.URI != "" {
		p.Key.URI = resolveURL(rawURL, p.Key.URI)
	}
	if p.Map != nil && p.Map.URI != "" {
		p.Map.URI = resolveURL(rawURL, p.Map.URI)
	}

	var (
		segments []string
		total    float64
	)
	for _, seg := range p.Segments {
		if seg == nil {
			break
		}
		seg.URI = resolveURL(rawURL, seg.URI)
		if seg.Key != nil && seg.Key.URI != "" {
			seg.Key.URI = resolveURL(rawURL, seg.Key.URI)
		}
		if seg.Map != nil && seg.Map.URI != "" {
			seg.Map.URI = resolveURL(rawURL, seg.Map.URI)
		}
		segments = append(segments, seg.URI)
		total += seg.Duration
	}
	if len(segments) == 0 {
		return nil, &types.ParseError{What: "media playlist", Err: fmt.Errorf("no segments in %s", rawURL)}
	}
	return &Resolved{
		URL:      rawURL,
		Playlist: p,
		Segments: segments,
		Duration: time.Duration(total * float64(time.Second)),
	}, nil
}
