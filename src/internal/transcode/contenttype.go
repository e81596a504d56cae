package transcode

import "strings"

// GetContentType returns the media type a transcoded stream of the given
// output format is served with
func GetContentType(format string) string {
	switch strings.ToLower(format) {
	case "opus":
		return "audio/opus"
	case "ogg":
		return "audio/ogg"
	case "m4a":
		return "audio/mp4"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
