// Package downloader fetches the segments of a media playlist into a local
// directory with bounded concurrency.
package downloader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/types"
)

const (
	DefaultConcurrency = 10
	DefaultCooldown    = 3 * time.Second
)

// Result describes one stored segment.
type Result struct {
	Index int
	URI   string
	Path  string
	Bytes int64
}

// Downloader stores segments under a directory. The zero value uses
// DefaultConcurrency and no cooldown.
type Downloader struct {
	Fetcher     httpx.Fetcher
	Concurrency int
	// Cooldown is held after each segment before its permit is released,
	// which spaces out requests against hosts that throttle bursts.
	Cooldown time.Duration
	// Limiter, when set, paces request starts across all workers.
	Limiter *rate.Limiter
}

// Download fetches every segment into dir. onDone is called once per segment
// in completion order and must be safe for concurrent use. The returned
// paths are in the original segment order. The first failure cancels the
// remaining segments and is returned.
func (d *Downloader) Download(ctx context.Context, segments []string, dir string, onDone func(Result)) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	n := d.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}
	logger := log.FromContext(ctx)
	sem := semaphore.NewWeighted(int64(n))
	paths := make([]string, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	for i, uri := range segments {
		i, uri := i, uri
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return &types.ConcurrencyError{Err: err}
			}
			defer sem.Release(1)

			if d.Limiter != nil {
				if err := d.Limiter.Wait(gctx); err != nil {
					return &types.ConcurrencyError{Err: err}
				}
			}
			body, err := d.Fetcher.Get(gctx, uri, nil)
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			dest := filepath.Join(dir, segmentFileName(i, uri))
			if err := os.WriteFile(dest, body, 0o644); err != nil {
				return fmt.Errorf("segment %d: write %s: %w", i, dest, err)
			}
			paths[i] = dest
			logger.Debug("segment stored", "index", i, "bytes", len(body))
			if onDone != nil {
				onDone(Result{Index: i, URI: uri, Path: dest, Bytes: int64(len(body))})
			}
			return sleep(gctx, d.Cooldown)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// segmentFileName prefixes the last path element of uri with its index so
// segments sharing a basename cannot overwrite each other.
func segmentFileName(index int, uri string) string {
	tail := ""
	if u, err := url.Parse(uri); err == nil {
		tail = path.Base(u.Path)
	}
	if tail == "" || tail == "." || tail == "/" {
		tail = "segment.ts"
	}
	tail = strings.Map(func(r rune) rune {
		if r == filepath.Separator || r == ':' {
			return '_'
		}
		return r
	}, tail)
	return strconv.Itoa(index) + "-" + tail
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
