package hls

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/types"
)

const mediaBody = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-KEY:METHOD=AES-128,URI="key.bin"
#EXTINF:10.0,
seg0.ts
#EXTINF:10.0,
/abs/seg1.ts
#EXTINF:5.5,
https://cdn.example.com/seg2.ts
#EXT-X-ENDLIST
`

func newManifestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newResolver(srv *httptest.Server) *Resolver {
	return &Resolver{Fetcher: httpx.Wrap(srv.Client(), "")}
}

func TestResolveMediaPlaylistNormalisesURIs(t *testing.T) {
	srv := newManifestServer(t, map[string]string{"/vod/index.m3u8": mediaBody})

	res, err := newResolver(srv).Resolve(context.Background(), srv.URL+"/vod/index.m3u8")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{
		srv.URL + "/vod/seg0.ts",
		srv.URL + "/abs/seg1.ts",
		"https://cdn.example.com/seg2.ts",
	}
	if len(res.Segments) != len(want) {
		t.Fatalf("segments = %v, want %v", res.Segments, want)
	}
	for i := range want {
		if res.Segments[i] != want[i] {
			t.Fatalf("segment %d = %q, want %q", i, res.Segments[i], want[i])
		}
	}
	if res.Duration != 25500*time.Millisecond {
		t.Fatalf("Duration = %v, want 25.5s", res.Duration)
	}
	if res.Playlist.Key == nil || res.Playlist.Key.URI != srv.URL+"/vod/key.bin" {
		t.Fatalf("key uri = %+v, want absolute", res.Playlist.Key)
	}
}

func TestResolveMasterPicksLastVariant(t *testing.T) {
	master := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2400000
high/index.m3u8
`
	srv := newManifestServer(t, map[string]string{
		"/play/master.m3u8":     master,
		"/play/high/index.m3u8": mediaBody,
		"/play/low/index.m3u8":  "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXTINF:4,\nlow.ts\n#EXT-X-ENDLIST\n",
	})

	res, err := newResolver(srv).Resolve(context.Background(), srv.URL+"/play/master.m3u8")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.URL != srv.URL+"/play/high/index.m3u8" {
		t.Fatalf("URL = %q, want high variant", res.URL)
	}
	if got := res.Segments[0]; got != srv.URL+"/play/high/seg0.ts" {
		t.Fatalf("first segment = %q", got)
	}
}

func TestResolveNestedMasters(t *testing.T) {
	routes := map[string]string{"/leaf.m3u8": mediaBody}
	for i := 0; i < 3; i++ {
		next := fmt.Sprintf("m%d.m3u8", i+1)
		if i == 2 {
			next = "leaf.m3u8"
		}
		routes[fmt.Sprintf("/m%d.m3u8", i)] = "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\n" + next + "\n"
	}
	srv := newManifestServer(t, routes)

	res, err := newResolver(srv).Resolve(context.Background(), srv.URL+"/m0.m3u8")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(res.Segments))
	}
}

func TestResolveRejectsSelfReferencingMaster(t *testing.T) {
	srv := newManifestServer(t, map[string]string{
		"/loop.m3u8": "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nloop.m3u8\n",
	})
	r := newResolver(srv)
	r.MaxDepth = 2

	_, err := r.Resolve(context.Background(), srv.URL+"/loop.m3u8")
	var parseErr *types.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Resolve() error = %v, want *types.ParseError", err)
	}
	if !strings.Contains(err.Error(), "nesting exceeds 2") {
		t.Fatalf("error = %q", err.Error())
	}
}

func TestResolveErrors(t *testing.T) {
	srv := newManifestServer(t, map[string]string{
		"/html":   "<html>not a playlist</html>",
		"/empty":  "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST\n",
		"/master": "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nmissing.m3u8\n",
	})
	r := newResolver(srv)

	tests := []struct {
		path   string
		target error
	}{
		{"/html", types.ErrParse},
		{"/empty", types.ErrParse},
		{"/nope", types.ErrNetwork},
		{"/master", types.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), srv.URL+tt.path)
			if !errors.Is(err, tt.target) {
				t.Fatalf("Resolve(%s) error = %v, want %v", tt.path, err, tt.target)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://a.com/x/y/index.m3u8", "seg.ts", "https://a.com/x/y/seg.ts"},
		{"https://a.com/x/y/index.m3u8", "/root.ts", "https://a.com/root.ts"},
		{"https://a.com/x/index.m3u8", "https://b.com/s.ts", "https://b.com/s.ts"},
		{"https://a.com/x/index.m3u8?token=1", "s.ts?t=2", "https://a.com/x/s.ts?t=2"},
	}
	for _, tt := range tests {
		if got := resolveURL(tt.base, tt.ref); got != tt.want {
			t.Errorf("resolveURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}
