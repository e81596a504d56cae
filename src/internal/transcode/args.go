package transcode

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Request describes one transcoding job
type Request struct {
	SourcePath string
	Format     string // output format, "" means mp3
	MaxBitrate int    // kbit/s, 0 = encoder default
	TimeOffset int    // seconds to seek before encoding

	// SegmentDuration > 0 bounds the output length (HLS segment mode); the
	// cache is bypassed for segments
	SegmentDuration int
}

// muxer and codec per output format; anything unknown encodes as mp3
func muxerCodec(format string) (muxer, codec string) {
	switch strings.ToLower(format) {
	case "opus":
		return "opus", "libopus"
	case "ogg":
		return "ogg", "libvorbis"
	case "m4a":
		return "ipod", "aac"
	case "flac":
		return "flac", "flac"
	default:
		return "mp3", "libmp3lame"
	}
}

// segmentMuxer returns the muxer for HLS segment output. Formats that need a
// streamable container diverge from the main mapping (aac segments use adts)
func segmentMuxer(format string) string {
	switch strings.ToLower(format) {
	case "opus":
		return "opus"
	case "ogg":
		return "ogg"
	case "m4a":
		return "ipod"
	case "aac":
		return "adts"
	default:
		return "mp3"
	}
}

// args derives the encoder command line of the request
func (me *Request) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	if me.TimeOffset > 0 {
		// seeking must come before the input for fast input seeking
		args = append(args, "-ss", strconv.Itoa(me.TimeOffset))
	}
	args = append(args, "-i", me.SourcePath)

	format := strings.ToLower(me.Format)
	muxer, codec := muxerCodec(format)
	if me.SegmentDuration > 0 {
		muxer = segmentMuxer(format)
	}
	args = append(args, "-c:a", codec)

	switch {
	case me.MaxBitrate > 0:
		args = append(args, "-b:a", strconv.Itoa(me.MaxBitrate)+"k")
	case muxer == "mp3":
		// ~190 kbit/s VBR
		args = append(args, "-q:a", "2")
	case codec == "libopus":
		args = append(args, "-b:a", "128k")
	}

	args = append(args, "-vn", "-sn", "-map_metadata", "0", "-map", "0:a:0")

	if me.SegmentDuration > 0 {
		args = append(args, "-t", strconv.Itoa(me.SegmentDuration))
	}

	return append(args, "-f", muxer, "pipe:1")
}

// CacheKey derives the transcoding cache filename for the request:
// sha256hex("<source>|<format>|<bitrate>") plus the output format as suffix
func CacheKey(sourcePath, format string, maxBitrate int) string {
	bitrate := ""
	if maxBitrate > 0 {
		bitrate = strconv.Itoa(maxBitrate)
	}
	format = strings.ToLower(format)
	sum := sha256.Sum256([]byte(sourcePath + "|" + format + "|" + bitrate))
	suffix := format
	if suffix == "" {
		suffix = "mp3"
	}
	return hex.EncodeToString(sum[:]) + "." + suffix
}

// EstimateSize estimates the size in bytes of a transcoded stream. It is 0
// (unknown) if the bitrate is absent
func EstimateSize(durationSec, bitrateKbps int) int64 {
	if bitrateKbps <= 0 {
		return 0
	}
	return int64(bitrateKbps) * int64(durationSec) * 1024 / 8
}
