package unified

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/famomatic/vodfetch/internal/channel"
	"github.com/famomatic/vodfetch/internal/types"
)

const (
	sourceSeparator = "$$$"
	optionSeparator = "#"
	nameSeparator   = "$"
)

// PlaySource picks the playback source of a vod_play_url field. Sites may
// list several players separated by "$$$"; the first one carrying m3u8 links
// wins, else the first one.
func PlaySource(field string) string {
	sources := strings.Split(field, sourceSeparator)
	for _, s := range sources {
		if strings.Contains(s, ".m3u8") {
			return s
		}
	}
	return sources[0]
}

// PlayOptions splits a play source into its numbered "name$url" options.
func PlayOptions(field string) []channel.PlaylistItem {
	source := strings.TrimSpace(PlaySource(field))
	if source == "" {
		return nil
	}
	parts := strings.Split(source, optionSeparator)
	items := make([]channel.PlaylistItem, 0, len(parts))
	for i, part := range parts {
		text, u, _ := strings.Cut(part, nameSeparator)
		items = append(items, channel.PlaylistItem{Number: i + 1, Text: text, URL: u})
	}
	return items
}

// ParsePlayURL returns the URL of the k-th (1-based) option of field.
func ParsePlayURL(field string, k int) (string, error) {
	if k < 1 {
		return "", &types.NotFoundError{Kind: "episode", ID: strconv.Itoa(k), Err: &types.ParseError{What: "play url", Err: fmt.Errorf("option numbers start at 1")}}
	}
	parts := strings.Split(PlaySource(field), optionSeparator)
	if k > len(parts) {
		return "", &types.NotFoundError{
			Kind: "episode",
			ID:   strconv.Itoa(k),
			Err:  &types.ParseError{What: "play url", Err: fmt.Errorf("only %d options available", len(parts))},
		}
	}
	option := parts[k-1]
	fields := strings.Split(option, nameSeparator)
	if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
		return "", &types.NotFoundError{
			Kind: "episode",
			ID:   strconv.Itoa(k),
			Err:  &types.ParseError{What: "play url", Err: fmt.Errorf("invalid option format %q", option)},
		}
	}
	return strings.TrimSpace(fields[1]), nil
}
