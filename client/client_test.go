package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/progress"
	"github.com/famomatic/vodfetch/internal/registry"
	"github.com/famomatic/vodfetch/internal/store"
	"github.com/famomatic/vodfetch/internal/types"
)

type fakeChannel struct {
	id       string
	base     string
	strategy string
	missing  map[int]bool
	items    []channel.Metadata
}

func (f *fakeChannel) ID() string          { return f.id }
func (f *fakeChannel) DisplayName() string { return strings.ToUpper(f.id) }
func (f *fakeChannel) BaseURL() string     { return f.base }

func (f *fakeChannel) PreferredStrategy() string { return f.strategy }

func (f *fakeChannel) PlaybackURL(_ context.Context, mediaID string, sel channel.Selector) (string, error) {
	if f.missing[sel.EpisodeNumber()] {
		return "", &types.NotFoundError{Kind: "episode", ID: fmt.Sprint(sel.EpisodeNumber())}
	}
	return f.base + "/vod/index.m3u8", nil
}

func (f *fakeChannel) Metadata(_ context.Context, mediaID string) (*channel.Metadata, error) {
	return &channel.Metadata{Channel: f.id, ID: mediaID, Name: "Show " + mediaID, Year: 2020, Episodes: 3}, nil
}

func (f *fakeChannel) Search(_ context.Context, keyword string, page int) (*channel.SearchResult, error) {
	return &channel.SearchResult{Items: f.items, Page: page, Total: len(f.items)}, nil
}

func (f *fakeChannel) Playlist(context.Context, string) (*channel.Playlist, error) {
	return nil, fmt.Errorf("playlist: %w", types.ErrUnsupported)
}

type fakeRemuxer struct {
	mu      sync.Mutex
	concats int
	streams int
	titles  []string
}

func (f *fakeRemuxer) write(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("video"), 0o644)
}

func (f *fakeRemuxer) Concat(_ context.Context, _ string, dest string, meta types.Metadata) error {
	f.mu.Lock()
	f.concats++
	f.titles = append(f.titles, meta.Title)
	f.mu.Unlock()
	return f.write(dest)
}

func (f *fakeRemuxer) Stream(_ context.Context, _ string, dest string, _ int, _ time.Duration, meta types.Metadata, onProgress func(string)) error {
	f.mu.Lock()
	f.streams++
	f.titles = append(f.titles, meta.Title)
	f.mu.Unlock()
	onProgress("elapsed 1.0s, 1/2 segments, 50%")
	return f.write(dest)
}

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vod/index.m3u8":
			_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXTINF:4.0,\nseg0.ts\n#EXTINF:4.0,\nseg1.ts\n#EXT-X-ENDLIST\n"))
		case "/vod/seg0.ts", "/vod/seg1.ts":
			_, _ = w.Write([]byte("segment"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, channels ...channel.Channel) (*Client, *fakeRemuxer, string) {
	t.Helper()
	srv := newSourceServer(t)
	for _, ch := range channels {
		if fc, ok := ch.(*fakeChannel); ok && fc.base == "" {
			fc.base = srv.URL
		}
	}
	reg, err := registry.New(channels[0].ID(), channels...)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	remuxer := &fakeRemuxer{}
	downloads := filepath.Join(t.TempDir(), "downloads")
	c, err := New(Config{
		Channels:    reg,
		Fetcher:     httpx.Wrap(srv.Client(), ""),
		Remuxer:     remuxer,
		DownloadDir: downloads,
		TempDir:     t.TempDir(),
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, remuxer, downloads
}

func followAll(t *testing.T, h *Handle) []Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var updates []Update
	if _, err := Follow(ctx, h.Events(), func(u Update) { updates = append(updates, u) }); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	return updates
}

func TestNewRequiresRegistry(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("New() error = nil, want error")
	}
}

func TestDownloadSegmentsStrategy(t *testing.T) {
	c, remuxer, downloads := newTestClient(t, &fakeChannel{id: "lz", strategy: "segments"})

	h, err := c.Download(context.Background(), "", "548", Selector{Episode: 2})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	updates := followAll(t, h)
	if len(updates) == 0 || updates[0].Kind != progress.KindStarted || updates[0].TotalSegments != 2 {
		t.Fatalf("first update = %+v", updates)
	}
	last := updates[len(updates)-1]
	want := filepath.Join(downloads, "548-2.mp4")
	if last.Kind != progress.KindDone || last.LocalPath != want {
		t.Fatalf("last update = %+v, want done at %s", last, want)
	}
	if remuxer.concats != 1 || remuxer.streams != 0 {
		t.Fatalf("remuxer calls concat=%d stream=%d", remuxer.concats, remuxer.streams)
	}
	if remuxer.titles[0] != "Show 548 - 2" {
		t.Fatalf("title tag = %q", remuxer.titles[0])
	}

	<-h.Done()
	records, err := c.Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1 || records[0].Status != store.StatusCompleted || records[0].Path != want || records[0].Episode != 2 {
		t.Fatalf("Records() = %+v", records)
	}
}

func TestDownloadUsesChannelStrategy(t *testing.T) {
	c, remuxer, _ := newTestClient(t, &fakeChannel{id: "lz", strategy: "direct"})
	h, err := c.Download(context.Background(), "lz", "7", Selector{})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	updates := followAll(t, h)
	if updates[len(updates)-1].Kind != progress.KindDone {
		t.Fatalf("last update = %+v", updates[len(updates)-1])
	}
	if remuxer.streams != 1 || remuxer.concats != 0 {
		t.Fatalf("remuxer calls concat=%d stream=%d", remuxer.concats, remuxer.streams)
	}
	if h.Spec.Strategy != StrategyDirect {
		t.Fatalf("Strategy = %q", h.Spec.Strategy)
	}
}

func TestDownloadConfigStrategyOverridesChannel(t *testing.T) {
	c, _, _ := newTestClient(t, &fakeChannel{id: "lz", strategy: "direct"})
	c.config.Strategy = StrategySegments
	if got := c.strategyFor(&fakeChannel{strategy: "direct"}); got != StrategySegments {
		t.Fatalf("strategyFor() = %q", got)
	}
	c.config.Strategy = ""
	if got := c.strategyFor(&fakeChannel{strategy: "bogus"}); got != StrategySegments {
		t.Fatalf("strategyFor() with bad hint = %q", got)
	}
}

func TestDownloadSynchronousErrors(t *testing.T) {
	c, _, _ := newTestClient(t, &fakeChannel{id: "lz", missing: map[int]bool{1: true}})

	if _, err := c.Download(context.Background(), "nope", "1", Selector{}); ClassifyError(err) != ErrorCategoryNotFound {
		t.Fatalf("Download() unknown channel error = %v", err)
	}
	if _, err := c.Download(context.Background(), "lz", "1", Selector{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download() missing episode error = %v", err)
	}
	records, _ := c.Records(context.Background())
	if len(records) != 0 {
		t.Fatalf("Records() = %+v, want none", records)
	}
}

func TestBatchDownloadContinuesAfterFailure(t *testing.T) {
	c, _, downloads := newTestClient(t, &fakeChannel{id: "lz", strategy: "segments", missing: map[int]bool{2: true}})

	var mu sync.Mutex
	seen := map[int]int{}
	results, err := c.BatchDownload(context.Background(), "lz", "9", 1, 3, func(ep int, u Update) {
		mu.Lock()
		seen[ep]++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("BatchDownload() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Err != nil || results[0].LocalPath != filepath.Join(downloads, "9-1.mp4") {
		t.Fatalf("episode 1 = %+v", results[0])
	}
	if !errors.Is(results[1].Err, ErrNotFound) {
		t.Fatalf("episode 2 err = %v", results[1].Err)
	}
	if results[2].Err != nil || results[2].Episode != 3 {
		t.Fatalf("episode 3 = %+v", results[2])
	}
	if seen[1] == 0 || seen[2] != 0 || seen[3] == 0 {
		t.Fatalf("updates per episode = %v", seen)
	}
}

func TestSearchTruncatesAndDefaultsChannel(t *testing.T) {
	items := []channel.Metadata{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	c, _, _ := newTestClient(t, &fakeChannel{id: "lz", items: items}, &fakeChannel{id: "other"})

	res, err := c.Search(context.Background(), SearchRequest{Keyword: "x", PageSize: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Items) != 2 || res.Total != 3 || res.Page != 1 {
		t.Fatalf("Search() = %+v", res)
	}
	res, err = c.Search(context.Background(), SearchRequest{Channel: "other", Keyword: "x", Page: 4})
	if err != nil || len(res.Items) != 0 || res.Page != 4 {
		t.Fatalf("Search(other) = %+v, %v", res, err)
	}
}

func TestMetadataPlaylistAndChannels(t *testing.T) {
	c, _, _ := newTestClient(t, &fakeChannel{id: "lz"}, &fakeChannel{id: "ab"})

	meta, err := c.GetMetadata(context.Background(), "", "42")
	if err != nil || meta.Name != "Show 42" || meta.Channel != "lz" {
		t.Fatalf("GetMetadata() = %+v, %v", meta, err)
	}
	if _, err := c.GetPlaylist(context.Background(), "ab", "42"); ClassifyError(err) != ErrorCategoryUnsupported {
		t.Fatalf("GetPlaylist() error = %v", err)
	}
	list := c.Channels()
	if len(list) != 2 || list[0].ID != "ab" || !list[1].Default {
		t.Fatalf("Channels() = %+v", list)
	}
}
