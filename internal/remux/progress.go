package remux

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultReportInterval is how far ffmpeg's clock must advance between two
// progress messages.
const DefaultReportInterval = 3 * time.Second

var (
	openingRe = regexp.MustCompile(`Opening '([^']+)' for reading`)
	timeRe    = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// ProgressParser turns ffmpeg diagnostic lines into progress messages.
type ProgressParser struct {
	TotalSegments int
	TotalDuration time.Duration
	Interval      time.Duration

	opened     int
	elapsed    float64
	lastReport float64
	finished   bool
}

// Feed consumes one line and returns a message when one is due.
func (p *ProgressParser) Feed(line string) (string, bool) {
	if p.finished {
		return "", false
	}
	if m := openingRe.FindStringSubmatch(line); m != nil {
		if isMediaSegment(m[1]) {
			p.opened++
		}
		return "", false
	}
	if isSummaryLine(line) {
		p.finished = true
		return fmt.Sprintf("remux finished, elapsed %.1fs, %d/%d segments", p.elapsed, p.opened, p.TotalSegments), true
	}
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	p.elapsed = parseClock(m[1], m[2], m[3])

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if p.elapsed-p.lastReport < interval.Seconds() {
		return "", false
	}
	p.lastReport = p.elapsed
	return fmt.Sprintf("elapsed %.1fs, %d/%d segments, %d%%", p.elapsed, p.opened, p.TotalSegments, p.Percent()), true
}

// Opened returns the number of media segments ffmpeg has opened so far.
func (p *ProgressParser) Opened() int {
	return p.opened
}

// Percent estimates completion from elapsed media time, falling back to the
// segment count. It never reports more than 99.
func (p *ProgressParser) Percent() int {
	var pct float64
	switch {
	case p.TotalDuration > 0:
		pct = p.elapsed / p.TotalDuration.Seconds() * 100
	case p.TotalSegments > 0:
		pct = float64(p.opened) / float64(p.TotalSegments) * 100
	}
	if pct > 99 {
		pct = 99
	}
	if pct < 0 {
		pct = 0
	}
	return int(pct)
}

// isMediaSegment rejects playlists, keys and init maps that ffmpeg also
// opens while reading an HLS stream.
func isMediaSegment(uri string) bool {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	name := strings.ToLower(path.Base(uri))
	if strings.HasPrefix(name, "init") {
		return false
	}
	switch path.Ext(name) {
	case ".m3u8", ".m3u", ".key", ".bin":
		return false
	}
	return true
}

func isSummaryLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "video:") && strings.Contains(line, "muxing overhead")
}

func parseClock(h, m, s string) float64 {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.ParseFloat(s, 64)
	return float64(hours*3600+minutes*60) + seconds
}
