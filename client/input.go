package client

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	channelIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)
	mediaIDPattern   = regexp.MustCompile(`^[^\s/:]+$`)
)

// ParseMediaRef splits "channel:media" or "channel/media" into its parts.
// A bare media id leaves channel empty so the default channel applies.
func ParseMediaRef(input string) (channel, mediaID string, err error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", "", fmt.Errorf("%w: empty media reference", ErrInvalidInput)
	}
	if i := strings.IndexAny(s, ":/"); i >= 0 {
		channel, mediaID = s[:i], s[i+1:]
		if !channelIDPattern.MatchString(channel) {
			return "", "", fmt.Errorf("%w: bad channel in %q", ErrInvalidInput, input)
		}
	} else {
		mediaID = s
	}
	if !mediaIDPattern.MatchString(mediaID) {
		return "", "", fmt.Errorf("%w: bad media id in %q", ErrInvalidInput, input)
	}
	return channel, mediaID, nil
}
