package library

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// IDs of the virtual playlists
const (
	VirtualAllSongsID      = "virtual:all-songs"
	VirtualMissingTracksID = "virtual:missing-tracks"
	VirtualNoReplayGainID  = "virtual:no-replay-gain"
)

// hashID derives an opaque ID from a semantic key. IDs are stable across
// restarts: the same context and key always produce the same ID
func hashID(context, key string) string {
	sum := sha256.Sum256([]byte(context + ":" + key))
	return hex.EncodeToString(sum[:])
}

// CreateSongID derives the ID of a song from its path relative to the
// library root and the last-write time of the file
func CreateSongID(relPath string, lastWrite time.Time) string {
	return hashID("song", relPath+":"+lastWrite.UTC().Format(time.RFC3339Nano))
}

// CreateLyricsID derives the ID of a lyrics source. src is the relative path
// of the external lyrics file, or the relative audio path for embedded
// lyrics
func CreateLyricsID(src string) string {
	return hashID("lyrics", src)
}

// CreateCoverID derives the ID of a cover source. src is the relative path
// of the external image, or the relative audio path for an embedded cover
func CreateCoverID(src string) string {
	return hashID("cover", src)
}

// CreateArtistID derives the ID of an artist from its normalized name.
// Names that differ only in surrounding whitespace or case map to the same
// ID
func CreateArtistID(name string) string {
	return hashID("artist", strings.ToLower(strings.TrimSpace(name)))
}

// CreateAlbumID derives the ID of an album from the trimmed artist and
// album names
func CreateAlbumID(artist, album string) string {
	return hashID("album", strings.TrimSpace(artist)+"|"+strings.TrimSpace(album))
}

// CreatePlaylistID derives the ID of a playlist from the relative path of
// its file
func CreatePlaylistID(relPath string) string {
	return hashID("playlist", relPath)
}

// CreateDirectoryID derives the ID of a directory from its absolute path
func CreateDirectoryID(absPath string) string {
	return hashID("dir", absPath)
}

// createMissingSongID derives the ID of the synthetic song that represents a
// missing playlist entry
func createMissingSongID(relPath string) string {
	return hashID("song", "missing:"+relPath)
}

// IsVirtualID returns true if id denotes a virtual playlist
func IsVirtualID(id string) bool {
	return strings.HasPrefix(id, "virtual:")
}
