package library

import "time"

// names that blank artist and album tags collapse to
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Song represents one audio file of the library. Songs are immutable once
// published to a catalog; a rescan produces new instances
type Song struct {
	ID          string
	Path        string // absolute
	Title       string
	Album       string
	AlbumArtist string
	Artist      string
	Genre       string
	Track       int // 0 = unknown
	Year        int // 0 = unknown
	Duration    int // seconds
	Size        int64
	Bitrate     int // kbit/s, 0 = unknown
	Suffix      string
	ContentType string
	ISRC        string

	// ReplayGain values; gain in decibels, peak as linear amplitude
	RGTrackGain *float64
	RGTrackPeak *float64
	RGAlbumGain *float64
	RGAlbumPeak *float64

	Lyrics *LyricsRef
	Cover  *CoverRef

	// resolved during catalog assembly
	AlbumID  string
	ArtistID string
	ParentID string

	Created time.Time
}

// LyricsRef points at the lyrics source of a song: either a sidecar .lrc
// file or the audio file itself (embedded)
type LyricsRef struct {
	ID       string
	Path     string // absolute path of the source file
	Embedded bool
}

// CoverRef points at the cover art source of a song: either a sidecar image
// or the audio file itself (embedded)
type CoverRef struct {
	ID        string
	Path      string // absolute path of the source file
	Embedded  bool
	LastWrite time.Time
	CachePath string // empty if on-disk caching is disabled
}

// Album groups the songs that share album artist and album name
type Album struct {
	ID        string
	Name      string
	Artist    string
	ArtistID  string
	Year      int // 0 = unknown
	Genre     string
	Duration  int // sum of song durations in seconds
	SongCount int
	Created   time.Time
	SongIDs   []string // ordered by track number ascending
	CoverID   string
}

// Artist groups the albums that share the normalized artist name
type Artist struct {
	ID         string
	Name       string
	AlbumIDs   []string
	AlbumCount int
	CoverID    string
}

// Directory represents one directory of the music tree
type Directory struct {
	ID       string
	Name     string
	Path     string // absolute
	ParentID string // empty for the root
	SongIDs  []string
	ChildIDs []string
}

// PlaylistItem is one entry of a playlist: a song reference plus the date
// the song was added to the playlist
type PlaylistItem struct {
	SongID  string
	AddedAt time.Time
}

// Playlist represents one playlist, either backed by an XSPF file or
// computed (virtual)
type Playlist struct {
	ID      string
	Name    string
	Path    string // absolute; empty for virtual playlists
	Created time.Time
	Changed time.Time
	Comment string
	Items   []PlaylistItem
	CoverID string
	Virtual bool
}

// MissingPlaylistItem is the diagnostic record of a playlist entry whose
// referenced file could not be found
type MissingPlaylistItem struct {
	PlaylistID   string
	PlaylistName string
	RelativePath string
	AddedAt      time.Time
}

// InvalidPlaylist is the diagnostic record of a playlist file that failed to
// parse
type InvalidPlaylist struct {
	Path   string // relative to the library root
	Reason string
}
