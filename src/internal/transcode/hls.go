package transcode

import (
	"fmt"
	"strings"
)

// DefaultSegmentDuration is the HLS segment length in seconds
const DefaultSegmentDuration = 10

// HLSPlaylist builds a finite HLS media playlist for the song. It is a pure
// function: the segments themselves are encoded on demand when the client
// requests them. Segment URLs are relative to the playlist URL
func HLSPlaylist(songID string, durationSec, bitrate int, codec string, segmentDuration int) string {
	if segmentDuration <= 0 {
		segmentDuration = DefaultSegmentDuration
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", segmentDuration)
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")

	remaining := durationSec
	for i := 0; remaining > 0; i++ {
		length := segmentDuration
		if remaining < length {
			length = remaining
		}
		fmt.Fprintf(&b, "#EXTINF:%d.0,\n", length)
		fmt.Fprintf(&b, "./hls/%s/%d.%s?bitRate=%d\n", songID, i, codec, bitrate)
		remaining -= length
	}

	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// HLSSegment returns the transcoding request for one HLS segment of the song
func HLSSegment(sourcePath, format string, bitrate, segmentIndex, segmentDuration int) Request {
	if segmentDuration <= 0 {
		segmentDuration = DefaultSegmentDuration
	}
	return Request{
		SourcePath:      sourcePath,
		Format:          format,
		MaxBitrate:      bitrate,
		TimeOffset:      segmentIndex * segmentDuration,
		SegmentDuration: segmentDuration,
	}
}
