package client

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/job"
	"github.com/famomatic/vodfetch/internal/progress"
	"github.com/famomatic/vodfetch/internal/store"
	"github.com/famomatic/vodfetch/internal/types"
)

// Download resolves the playback URL of one episode and starts a job for
// it. Failures before the job starts are returned; later failures arrive as
// a Failed update on the handle's receivers.
//
// The file is written to "<DownloadDir>/<name>", where name comes from the
// channel ("<media>-<episode>.mp4" unless the channel overrides it).
func (c *Client) Download(ctx context.Context, channelID, mediaID string, sel Selector) (*Handle, error) {
	reqCtx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	ch, err := c.channels.Resolve(channelID)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With("channel", ch.ID(), "media", mediaID, "episode", sel.EpisodeNumber())

	source, err := ch.PlaybackURL(reqCtx, mediaID, sel)
	if err != nil {
		return nil, err
	}

	rec := store.NewRecord(ch.ID(), mediaID, sel.EpisodeNumber())
	if err := c.store.Create(reqCtx, rec); err != nil {
		return nil, fmt.Errorf("create download record: %w", err)
	}

	spec := job.Spec{
		ID:          rec.ID,
		Channel:     ch.ID(),
		MediaID:     mediaID,
		SourceURL:   source,
		Destination: filepath.Join(c.config.DownloadDir, channel.FileName(ch, mediaID, sel)),
		Concurrency: c.config.Concurrency,
		Strategy:    c.strategyFor(ch),
		Metadata:    c.fileMetadata(reqCtx, ch, mediaID, sel),
	}
	// Start bounds only manifest resolution by reqCtx; the job itself
	// runs detached from it.
	h, err := c.runner.Start(reqCtx, spec)
	if err != nil {
		c.recordEvent(spec, failedEvent(err))
		return nil, err
	}
	logger.Info("download scheduled", "id", rec.ID, "dest", spec.Destination, "strategy", spec.Strategy)
	return h, nil
}

// BatchResult is the outcome of one episode of a batch.
type BatchResult struct {
	Episode   int
	LocalPath string
	Err       error
}

// BatchDownload downloads count consecutive episodes starting at start,
// one at a time. A failed episode is logged and recorded, and the batch
// moves on. onUpdate, when set, sees every update of every episode. The
// returned error is non-nil only when ctx ends the batch early.
func (c *Client) BatchDownload(ctx context.Context, channelID, mediaID string, start, count int, onUpdate func(episode int, u Update)) ([]BatchResult, error) {
	if start <= 0 {
		start = 1
	}
	results := make([]BatchResult, 0, max(count, 0))
	for ep := start; ep < start+count; ep++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := BatchResult{Episode: ep}
		h, err := c.Download(ctx, channelID, mediaID, Selector{Episode: ep})
		if err != nil {
			c.logger.Error("batch episode failed to start", "media", mediaID, "episode", ep, "err", err)
			res.Err = err
			results = append(results, res)
			continue
		}
		final, err := Follow(ctx, h.Events(), func(u Update) {
			if onUpdate != nil {
				onUpdate(ep, u)
			}
		})
		switch {
		case err != nil:
			res.Err = err
		case final.Kind == progress.KindFailed:
			res.Err = errors.New(final.Reason)
		default:
			res.LocalPath = final.LocalPath
		}
		if res.Err != nil {
			c.logger.Error("batch episode failed", "media", mediaID, "episode", ep, "err", res.Err)
		} else {
			c.logger.Info("batch episode done", "media", mediaID, "episode", ep, "path", res.LocalPath)
		}
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (c *Client) strategyFor(ch channel.Channel) Strategy {
	if c.config.Strategy != "" {
		return c.config.Strategy
	}
	if hint, ok := ch.(channel.StrategyHint); ok {
		if s, err := job.ParseStrategy(hint.PreferredStrategy()); err == nil && s != "" {
			return s
		}
	}
	return StrategySegments
}

// fileMetadata is best effort; a metadata failure never blocks a download.
func (c *Client) fileMetadata(ctx context.Context, ch channel.Channel, mediaID string, sel Selector) types.Metadata {
	meta := types.Metadata{Comment: ch.ID() + ":" + mediaID}
	m, err := ch.Metadata(ctx, mediaID)
	if err != nil {
		c.logger.Warn("metadata unavailable for file tags", "channel", ch.ID(), "media", mediaID, "err", err)
		return meta
	}
	meta.Title = m.Name
	if m.Episodes > 1 || sel.Episode > 1 {
		meta.Title = fmt.Sprintf("%s - %d", m.Name, sel.EpisodeNumber())
	}
	meta.Description = m.Description
	if m.Year > 0 {
		meta.Date = strconv.Itoa(m.Year)
	}
	return meta
}

func failedEvent(err error) progress.Event {
	return progress.Failed{Reason: err.Error(), At: time.Now()}
}
