package library

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

// songRecord holds exactly enough per-file state to avoid reparsing an
// unchanged file on the next scan
type songRecord struct {
	Path               string    `json:"path"` // relative to the library root
	Size               int64     `json:"size"`
	Created            time.Time `json:"created"`
	LastWrite          time.Time `json:"last_write"`
	Title              string    `json:"title,omitempty"`
	Album              string    `json:"album,omitempty"`
	Artist             string    `json:"artist,omitempty"`
	AlbumArtist        string    `json:"album_artist,omitempty"`
	Genre              string    `json:"genre,omitempty"`
	Year               int       `json:"year,omitempty"`  // 0 = unknown
	Track              int       `json:"track,omitempty"` // 0 = unknown
	Duration           int       `json:"duration,omitempty"`
	Bitrate            int       `json:"bitrate,omitempty"`
	EmbeddedLyrics     string    `json:"embedded_lyrics,omitempty"`
	LyricsPath         string    `json:"lyrics_path,omitempty"` // relative, external sidecar
	HasEmbeddedCover   bool      `json:"has_embedded_cover,omitempty"`
	CoverPath          string    `json:"cover_path,omitempty"` // relative, external sidecar
	CoverLastWrite     time.Time `json:"cover_last_write,omitempty"`
	ISRC               string    `json:"isrc,omitempty"`
	ReplayGainTrack    *float64  `json:"rg_track_gain,omitempty"`
	ReplayPeakTrack    *float64  `json:"rg_track_peak,omitempty"`
	ReplayGainAlbum    *float64  `json:"rg_album_gain,omitempty"`
	ReplayPeakAlbum    *float64  `json:"rg_album_peak,omitempty"`
}

// playlistItemRecord is one entry of a parsed playlist as stored in the scan
// record. Entries are kept whether or not the referenced file exists; the
// split into resolvable and missing happens during catalog assembly
type playlistItemRecord struct {
	Path      string     `json:"path"` // relative to the library root
	LastWrite time.Time  `json:"last_write,omitempty"`
	AddedAt   *time.Time `json:"added_at,omitempty"`
}

type playlistRecord struct {
	Path    string               `json:"path"` // relative to the library root
	Name    string               `json:"name"`
	Comment string               `json:"comment,omitempty"`
	Created time.Time            `json:"created"`
	Changed time.Time            `json:"changed"`
	Items   []playlistItemRecord `json:"items"`
}

type invalidPlaylistRecord struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// scanRecord is the serializable snapshot of the last scan. It is read at
// startup and rewritten atomically at the end of each successful scan
type scanRecord struct {
	Root             string                  `json:"root"`
	ScanDate         time.Time               `json:"scan_date"`
	Songs            []songRecord            `json:"songs"`
	Playlists        []playlistRecord        `json:"playlists"`
	InvalidPlaylists []invalidPlaylistRecord `json:"invalid_playlists,omitempty"`
}

// loadScanRecord reads the scan record from path. An absent or corrupt file
// yields an empty record, which makes the next scan a full rescan
func loadScanRecord(path string) *scanRecord {
	rec := new(scanRecord)
	if path == "" {
		return rec
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("cannot read scan record '%s': %v", path, err)
		}
		return new(scanRecord)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		log.Warnf("scan record '%s' is corrupt, rescanning: %v", path, err)
		return new(scanRecord)
	}
	return rec
}

// save writes the scan record atomically (write-temp-then-rename)
func (me *scanRecord) save(path string) (err error) {
	if path == "" {
		return
	}

	data, err := json.Marshal(me)
	if err != nil {
		return errors.Wrap(err, "cannot marshal scan record")
	}

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "cannot write scan record '%s'", path)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "cannot write scan record '%s'", path)
	}
	return
}

// byPath indexes the song records of the scan record by their relative path
func (me *scanRecord) byPath() map[string]*songRecord {
	m := make(map[string]*songRecord, len(me.Songs))
	for i := range me.Songs {
		m[me.Songs[i].Path] = &me.Songs[i]
	}
	return m
}
