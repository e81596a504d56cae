package transcode

import (
	"strings"
	"testing"

	"github.com/grafov/m3u8"
)

func TestHLSPlaylist(t *testing.T) {
	// 25 s at 10 s segments: two full segments plus a 5 s tail
	raw := HLSPlaylist("song123", 25, 192, "mp3", 10)

	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(raw), true)
	if err != nil {
		t.Fatalf("generated playlist does not decode: %v", err)
	}
	if listType != m3u8.MEDIA {
		t.Fatalf("list type = %v, want MEDIA", listType)
	}
	media := playlist.(*m3u8.MediaPlaylist)

	if !media.Closed {
		t.Error("playlist is not finite (missing ENDLIST)")
	}
	if media.TargetDuration != 10 {
		t.Errorf("target duration = %v, want 10", media.TargetDuration)
	}
	if media.SeqNo != 0 {
		t.Errorf("media sequence = %d, want 0", media.SeqNo)
	}

	var segments []*m3u8.MediaSegment
	for _, seg := range media.Segments {
		if seg != nil {
			segments = append(segments, seg)
		}
	}
	if len(segments) != 3 {
		t.Fatalf("segment count = %d, want 3", len(segments))
	}
	wantDurations := []float64{10, 10, 5}
	for i, seg := range segments {
		if seg.Duration != wantDurations[i] {
			t.Errorf("segment %d duration = %v, want %v", i, seg.Duration, wantDurations[i])
		}
		wantURI := "./hls/song123/" + string(rune('0'+i)) + ".mp3?bitRate=192"
		if seg.URI != wantURI {
			t.Errorf("segment %d URI = %q, want %q", i, seg.URI, wantURI)
		}
	}
}

func TestHLSPlaylistDefaults(t *testing.T) {
	raw := HLSPlaylist("id", 15, 128, "opus", 0)
	if !strings.Contains(raw, "#EXT-X-TARGETDURATION:10") {
		t.Errorf("default segment duration not applied:\n%s", raw)
	}
	if !strings.Contains(raw, "#EXT-X-VERSION:3") {
		t.Error("version header missing")
	}
	if !strings.HasSuffix(strings.TrimSpace(raw), "#EXT-X-ENDLIST") {
		t.Error("endlist missing")
	}
}

func TestHLSSegment(t *testing.T) {
	req := HLSSegment("/music/a.flac", "aac", 128, 3, 10)
	if req.TimeOffset != 30 {
		t.Errorf("time offset = %d, want 30", req.TimeOffset)
	}
	if req.SegmentDuration != 10 {
		t.Errorf("segment duration = %d", req.SegmentDuration)
	}
	if req.MaxBitrate != 128 || req.Format != "aac" || req.SourcePath != "/music/a.flac" {
		t.Errorf("request = %+v", req)
	}

	// default segment duration
	req = HLSSegment("/music/a.flac", "mp3", 0, 2, 0)
	if req.TimeOffset != 2*DefaultSegmentDuration {
		t.Errorf("time offset = %d", req.TimeOffset)
	}
}
