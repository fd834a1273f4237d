package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/config"
	"github.com/famomatic/vodfetch/internal/types"
)

type stubChannel struct {
	id, name, base string
}

func (s stubChannel) ID() string          { return s.id }
func (s stubChannel) DisplayName() string { return s.name }
func (s stubChannel) BaseURL() string     { return s.base }
func (s stubChannel) PlaybackURL(context.Context, string, channel.Selector) (string, error) {
	return "", nil
}
func (s stubChannel) Metadata(context.Context, string) (*channel.Metadata, error) { return nil, nil }
func (s stubChannel) Search(context.Context, string, int) (*channel.SearchResult, error) {
	return nil, nil
}
func (s stubChannel) Playlist(context.Context, string) (*channel.Playlist, error) { return nil, nil }

func TestResolveSubstitutesDefault(t *testing.T) {
	r, err := New("b", stubChannel{id: "a"}, stubChannel{id: "b"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") error = %v", err)
	}
	if c.ID() != "b" {
		t.Fatalf("Resolve(\"\") = %q, want b", c.ID())
	}
	c, err = r.Resolve("a")
	if err != nil || c.ID() != "a" {
		t.Fatalf("Resolve(a) = %v, %v", c, err)
	}
}

func TestGetUnknownChannel(t *testing.T) {
	r, err := New("", stubChannel{id: "a"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = r.Get("zzz")
	var nf *types.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "channel" || nf.ID != "zzz" {
		t.Fatalf("Get() error = %v, want channel NotFoundError", err)
	}
	if _, err := r.Resolve(""); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Resolve(\"\") without default error = %v", err)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("", stubChannel{id: "a"}, stubChannel{id: "a"}); err == nil {
		t.Fatalf("New() with duplicate ids error = nil")
	}
	if _, err := New("ghost", stubChannel{id: "a"}); err == nil {
		t.Fatalf("New() with unknown default error = nil")
	}
}

func TestListSortedWithDefault(t *testing.T) {
	r, err := New("m", stubChannel{id: "z", name: "Zed"}, stubChannel{id: "a", name: "Ay"}, stubChannel{id: "m", name: "Em", base: "https://m"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := r.List()
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "m" || got[2].ID != "z" {
		t.Fatalf("List() = %+v", got)
	}
	if !got[1].Default || got[0].Default || got[2].Default {
		t.Fatalf("List() default flags = %+v", got)
	}
	if got[1].Name != "Em" || got[1].BaseURL != "https://m" {
		t.Fatalf("List()[1] = %+v", got[1])
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		DefaultChannel: "lz",
		UnifiedChannels: map[string]config.UnifiedChannel{
			"lz": {Name: "LZ", BaseURL: "https://cj.example.com/api.php/provide/vod/", HTTPVersion: 1},
			"ff": {BaseURL: "https://ff.example.com/api.php/provide/vod/"},
		},
		ScrapeChannels: map[string]config.ScrapeChannel{
			"xiaobao": {Host: "xiaoxintv.com"},
		},
	}
	cfg.Cache.DetailTTL = 0
	r, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	defer r.Close()

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() = %+v", list)
	}
	c, err := r.Resolve("")
	if err != nil || c.DisplayName() != "LZ" {
		t.Fatalf("Resolve(\"\") = %v, %v", c, err)
	}
	x, err := r.Get("xiaobao")
	if err != nil {
		t.Fatalf("Get(xiaobao) error = %v", err)
	}
	if x.BaseURL() != "https://xiaoxintv.com" {
		t.Fatalf("xiaobao BaseURL() = %q", x.BaseURL())
	}
	if hint, ok := x.(channel.StrategyHint); !ok || hint.PreferredStrategy() != "segments" {
		t.Fatalf("xiaobao strategy hint missing")
	}
}

func TestFromConfigRejectsBadProxy(t *testing.T) {
	cfg := &config.Config{
		UnifiedChannels: map[string]config.UnifiedChannel{"lz": {BaseURL: "https://a"}},
	}
	cfg.HTTP.Proxy = "ftp://proxy:21"
	if _, err := FromConfig(cfg, nil); err == nil {
		t.Fatalf("FromConfig() error = nil, want proxy error")
	}
}
