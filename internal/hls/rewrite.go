package hls

import (
	"fmt"

	"github.com/grafov/m3u8"

	"github.com/famomatic/vodfetch/internal/types"
)

// Rewrite encodes a copy of pl whose segment URIs are replaced by
// localPaths, matched by index. pl itself is left untouched.
func Rewrite(pl *m3u8.MediaPlaylist, localPaths []string) ([]byte, error) {
	var segments []*m3u8.MediaSegment
	for _, seg := range pl.Segments {
		if seg == nil {
			break
		}
		segments = append(segments, seg)
	}
	if len(segments) != len(localPaths) {
		return nil, &types.ParseError{
			What: "playlist rewrite",
			Err:  fmt.Errorf("have %d local paths for %d segments", len(localPaths), len(segments)),
		}
	}

	out, err := m3u8.NewMediaPlaylist(0, uint(len(segments)))
	if err != nil {
		return nil, fmt.Errorf("new media playlist: %w", err)
	}
	out.TargetDuration = pl.TargetDuration
	out.SeqNo = pl.SeqNo
	out.MediaType = pl.MediaType
	out.Key = pl.Key
	out.Map = pl.Map
	for i, seg := range segments {
		cp := *seg
		cp.URI = localPaths[i]
		if err := out.AppendSegment(&cp); err != nil {
			return nil, fmt.Errorf("append segment %d: %w", i, err)
		}
	}
	out.Close()
	return out.Encode().Bytes(), nil
}
