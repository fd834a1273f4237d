package remux

import (
	"strings"
	"testing"
	"time"
)

func TestProgressParserReportsEveryInterval(t *testing.T) {
	p := &ProgressParser{TotalSegments: 4, TotalDuration: 40 * time.Second}
	lines := []string{
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/index.m3u8' for reading",
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/0.ts' for reading",
		"frame=  10 fps=0.0 q=-1.0 size=     256kB time=00:00:01.00 bitrate=N/A",
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/1.ts' for reading",
		"frame=  50 fps=0.0 q=-1.0 size=    1024kB time=00:00:04.00 bitrate=N/A",
		"frame=  60 fps=0.0 q=-1.0 size=    1100kB time=00:00:05.50 bitrate=N/A",
		"frame= 200 fps=0.0 q=-1.0 size=    4096kB time=00:00:10.00 bitrate=N/A",
	}
	var got []string
	for _, line := range lines {
		if msg, ok := p.Feed(line); ok {
			got = append(got, msg)
		}
	}
	want := []string{
		"elapsed 4.0s, 2/4 segments, 10%",
		"elapsed 10.0s, 2/4 segments, 25%",
	}
	if len(got) != len(want) {
		t.Fatalf("messages = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
	if p.Opened() != 2 {
		t.Fatalf("Opened() = %d, want 2 (playlists are not segments)", p.Opened())
	}
}

func TestProgressParserCapsAt99(t *testing.T) {
	p := &ProgressParser{TotalSegments: 1, TotalDuration: 10 * time.Second}
	msg, ok := p.Feed("size=1kB time=01:00:00.00 bitrate=N/A")
	if !ok {
		t.Fatal("Feed() reported nothing for a large clock jump")
	}
	if !strings.HasSuffix(msg, "99%") {
		t.Fatalf("message = %q, want capped at 99%%", msg)
	}

	bySegments := &ProgressParser{TotalSegments: 2}
	bySegments.Feed("Opening 'a.ts' for reading")
	bySegments.Feed("Opening 'b.ts' for reading")
	bySegments.Feed("Opening 'c.ts' for reading")
	if pct := bySegments.Percent(); pct != 99 {
		t.Fatalf("Percent() = %d, want 99", pct)
	}
}

func TestProgressParserSummaryLine(t *testing.T) {
	p := &ProgressParser{TotalSegments: 3}
	p.Feed("Opening 'x.ts' for reading")
	msg, ok := p.Feed("video:1024kB audio:128kB subtitle:0kB other streams:0kB global headers:0kB muxing overhead: 0.5%")
	if !ok {
		t.Fatal("summary line produced no message")
	}
	if !strings.HasPrefix(msg, "remux finished") || !strings.Contains(msg, "1/3 segments") {
		t.Fatalf("summary message = %q", msg)
	}
	if _, ok := p.Feed("frame=1 time=00:10:00.00"); ok {
		t.Fatal("Feed() reported after the summary line")
	}
}

func TestScanLinesSplitsCarriageReturns(t *testing.T) {
	data := []byte("a\rb\nc")
	var tokens []string
	for len(data) > 0 {
		adv, tok, err := scanLines(data, true)
		if err != nil {
			t.Fatalf("scanLines() error = %v", err)
		}
		tokens = append(tokens, string(tok))
		data = data[adv:]
	}
	if strings.Join(tokens, ",") != "a,b,c" {
		t.Fatalf("tokens = %q", tokens)
	}
}

func TestProgressParserSkipsKeysAndInitMaps(t *testing.T) {
	p := &ProgressParser{TotalSegments: 2}
	for _, line := range []string{
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/index.m3u8?t=1' for reading",
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/key.bin' for reading",
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/enc.key?sig=abc' for reading",
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/init.mp4' for reading",
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/0.ts?t=1' for reading",
		"[hls @ 0x55] Opening 'https://cdn.example.com/v/1.m4s' for reading",
	} {
		p.Feed(line)
	}
	if p.Opened() != 2 {
		t.Fatalf("Opened() = %d, want 2", p.Opened())
	}
}
