// Package job runs one download from a resolved manifest to a local file and
// publishes its progress on a broadcast stream.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/famomatic/vodfetch/internal/broadcast"
	"github.com/famomatic/vodfetch/internal/downloader"
	"github.com/famomatic/vodfetch/internal/hls"
	"github.com/famomatic/vodfetch/internal/progress"
	"github.com/famomatic/vodfetch/internal/remux"
	"github.com/famomatic/vodfetch/internal/types"
)

// Strategy selects how the final container is produced.
type Strategy string

const (
	// StrategySegments downloads every segment, then remuxes the local copy.
	StrategySegments Strategy = "segments"
	// StrategyDirect lets ffmpeg fetch the manifest itself.
	StrategyDirect Strategy = "direct"
)

// ParseStrategy maps a config value to a Strategy. Empty means "".
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategySegments, StrategyDirect:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown download strategy %q", s)
}

// Spec describes one job.
type Spec struct {
	ID          string
	Channel     string
	MediaID     string
	SourceURL   string
	Destination string
	Concurrency int
	Strategy    Strategy
	Metadata    types.Metadata
}

type (
	Stream   = broadcast.Stream[progress.Event, progress.Update]
	Receiver = broadcast.Receiver[progress.Event, progress.Update]
)

// Remuxer produces the final container.
type Remuxer interface {
	Concat(ctx context.Context, playlistPath, dest string, meta types.Metadata) error
	Stream(ctx context.Context, manifestURL, dest string, totalSegments int, totalDuration time.Duration, meta types.Metadata, onProgress func(string)) error
}

// Runner starts jobs.
type Runner struct {
	Resolver   *hls.Resolver
	Downloader *downloader.Downloader
	Remuxer    Remuxer
	// TempDir holds one subdirectory per job.
	TempDir string
	// CancelOnDetach cancels a job once every receiver has been closed.
	CancelOnDetach bool
	Logger         *log.Logger
	// Observer, when set, sees every event as it is published.
	Observer func(Spec, progress.Event)
}

// Handle is the caller's view of a running job.
type Handle struct {
	Spec   Spec
	stream *Stream
	events *Receiver
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the receiver created with the job.
func (h *Handle) Events() *Receiver { return h.events }

// Subscribe attaches another observer. It replays every event so far.
func (h *Handle) Subscribe() *Receiver { return h.stream.Subscribe() }

// Cancel stops the job. The job still ends with a Failed event.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed after the terminal event has been published.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Start resolves spec.SourceURL and schedules the job. Resolution errors are
// returned directly; everything after Started is reported on the stream.
func (r *Runner) Start(ctx context.Context, spec Spec) (*Handle, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	logger = logger.WithPrefix("job").With("id", spec.ID, "channel", spec.Channel, "media", spec.MediaID)
	ctx = log.WithContext(ctx, logger)

	resolved, err := r.Resolver.Resolve(ctx, spec.SourceURL)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	jobCtx = types.WithJobID(jobCtx, spec.ID)

	stream := broadcast.New(progress.Format)
	h := &Handle{
		Spec:   spec,
		stream: stream,
		events: stream.Subscribe(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if r.CancelOnDetach {
		stream.OnIdle(cancel)
	}

	e := &emitter{stream: stream, spec: spec, observer: r.Observer}
	e.emit(progress.Started{TotalSegments: len(resolved.Segments), At: time.Now()})
	logger.Info("job started", "segments", len(resolved.Segments), "strategy", spec.Strategy)

	go r.run(jobCtx, h, e, resolved)
	return h, nil
}

func (r *Runner) run(ctx context.Context, h *Handle, e *emitter, resolved *hls.Resolved) {
	logger := log.FromContext(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job panicked", "panic", rec)
			e.emit(progress.Failed{Reason: fmt.Sprintf("internal error: %v", rec), At: time.Now()})
		}
		h.cancel()
		h.stream.Complete()
		close(h.done)
	}()

	dest, err := r.execute(ctx, h.Spec, e, resolved)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.Canceled) {
			reason = types.ErrCanceled.Error()
		}
		logger.Error("job failed", "err", err)
		e.emit(progress.Failed{Reason: reason, At: time.Now()})
		return
	}
	logger.Info("job done", "path", dest)
	e.emit(progress.Done{LocalPath: dest, At: time.Now()})
}

func (r *Runner) execute(ctx context.Context, spec Spec, e *emitter, resolved *hls.Resolved) (string, error) {
	if err := remux.PrepareDestination(spec.Destination); err != nil {
		return "", err
	}
	if spec.Strategy == StrategyDirect {
		err := r.Remuxer.Stream(ctx, resolved.URL, spec.Destination, len(resolved.Segments), resolved.Duration, spec.Metadata, func(msg string) {
			e.emit(progress.SegmentDownloaded{Message: msg, At: time.Now()})
		})
		if err != nil {
			return "", err
		}
		return spec.Destination, nil
	}

	dir := filepath.Join(r.tempDir(), spec.ID)
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.FromContext(ctx).Warn("remove job temp dir", "dir", dir, "err", err)
		}
	}()
	var d downloader.Downloader
	if r.Downloader != nil {
		d = *r.Downloader
	}
	if spec.Concurrency > 0 {
		d.Concurrency = spec.Concurrency
	}
	paths, err := d.Download(ctx, resolved.Segments, dir, func(res downloader.Result) {
		e.emit(progress.SegmentDownloaded{
			Message: fmt.Sprintf("Segment downloaded: %d (%s)", res.Index, humanize.Bytes(uint64(res.Bytes))),
			At:      time.Now(),
		})
	})
	if err != nil {
		return "", err
	}

	local, err := hls.Rewrite(resolved.Playlist, paths)
	if err != nil {
		return "", err
	}
	playlistPath := filepath.Join(dir, filepath.Base(spec.Destination)+".m3u8")
	if err := os.WriteFile(playlistPath, local, 0o644); err != nil {
		return "", fmt.Errorf("write local playlist: %w", err)
	}

	e.emit(progress.TransformingVideo{At: time.Now()})
	if err := r.Remuxer.Concat(ctx, playlistPath, spec.Destination, spec.Metadata); err != nil {
		return "", err
	}
	return spec.Destination, nil
}

func (r *Runner) tempDir() string {
	if r.TempDir != "" {
		return r.TempDir
	}
	return filepath.Join(os.TempDir(), "vodfetch")
}

// emitter publishes events and drops anything after the first terminal.
type emitter struct {
	mu       sync.Mutex
	stream   *Stream
	spec     Spec
	observer func(Spec, progress.Event)
	ended    bool
}

func (e *emitter) emit(ev progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return
	}
	if progress.IsTerminal(ev) {
		e.ended = true
	}
	e.stream.Publish(ev)
	if e.observer != nil {
		e.observer(e.spec, ev)
	}
}
