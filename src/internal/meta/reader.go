package meta

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "meta"})

// reasons why a file could not be turned into a ParsedSong
var (
	// ErrUnreadableFile indicates an I/O error while opening or reading the
	// audio file
	ErrUnreadableFile = errors.New("unreadable file")
	// ErrUnparseableTags indicates that the file exists but the tag library
	// rejected it
	ErrUnparseableTags = errors.New("unparseable tags")
)

// ParsedSong contains the metadata of one audio file. All fields except the
// path are optional; absent numbers are zero, absent ReplayGain values are
// nil
type ParsedSong struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Track       int
	Year        int
	Duration    int // seconds
	Bitrate     int // kbit/s
	ISRC        string
	Lyrics      string // embedded lyrics
	HasPicture  bool   // an embedded cover picture exists
	TrackGain   *float64
	TrackPeak   *float64
	AlbumGain   *float64
	AlbumPeak   *float64
}

// Reader extracts metadata from audio files. Duration and bitrate are
// determined via the probe binary since the tag library carries neither
type Reader struct {
	FFprobePath string
}

// ReadSong reads the tags of the audio file at path and probes it for
// duration and bitrate. A probe failure is not fatal: the corresponding
// fields stay unset
func (me *Reader) ReadSong(ctx context.Context, path string) (ps *ParsedSong, err error) {
	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(ErrUnreadableFile, "cannot open '%s': %v", path, err)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		err = errors.Wrapf(ErrUnparseableTags, "cannot retrieve metadata for '%s': %v", path, err)
		return
	}

	ps = new(ParsedSong)
	ps.Title = m.Title()
	ps.Artist = m.Artist()
	ps.AlbumArtist = m.AlbumArtist()
	if ps.AlbumArtist == "" {
		ps.AlbumArtist = ps.Artist
	}
	ps.Album = m.Album()
	ps.Genre = m.Genre()
	ps.Track, _ = m.Track()
	ps.Year = m.Year()
	ps.Lyrics = m.Lyrics()
	ps.HasPicture = m.Picture() != nil

	raw := rawIndex(m.Raw())
	ps.ISRC = rawString(raw, "isrc", "tsrc")
	ps.TrackGain = rawGain(raw, "replaygain_track_gain")
	ps.TrackPeak = rawPeak(raw, "replaygain_track_peak")
	ps.AlbumGain = rawGain(raw, "replaygain_album_gain")
	ps.AlbumPeak = rawPeak(raw, "replaygain_album_peak")

	if me.FFprobePath != "" {
		duration, bitrate, perr := Probe(ctx, me.FFprobePath, path)
		if perr != nil {
			log.Debugf("cannot probe '%s': %v", path, perr)
		} else {
			ps.Duration = duration
			ps.Bitrate = bitrate
		}
	}

	return
}

// rawIndex flattens the raw tag map into normalized lowercase names. The tag
// library keys raw values differently per format: ID3v2 user-defined text
// frames carry their name in the Comm description, vorbis comments use the
// field name, MP4 freeform atoms use the full mean:name string
func rawIndex(raw map[string]interface{}) map[string]string {
	idx := make(map[string]string, len(raw))
	for key, val := range raw {
		name := strings.ToLower(key)
		var s string
		switch v := val.(type) {
		case *tag.Comm:
			if v.Description != "" {
				name = strings.ToLower(v.Description)
			}
			s = v.Text
		case string:
			s = v
		default:
			s = fmt.Sprintf("%v", val)
		}
		// strip frame and freeform prefixes, e.g. "txxx:" or
		// "----:com.apple.itunes:"
		if i := strings.LastIndex(name, ":"); i >= 0 {
			name = name[i+1:]
		}
		idx[name] = s
	}
	return idx
}

// rawString returns the first non-empty raw value among names
func rawString(idx map[string]string, names ...string) string {
	for _, n := range names {
		if s, exists := idx[n]; exists && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// rawGain parses the raw value with the given name as a ReplayGain gain
func rawGain(idx map[string]string, name string) *float64 {
	s, exists := idx[name]
	if !exists {
		return nil
	}
	g, err := ParseGain(s)
	if err != nil {
		return nil
	}
	return &g
}

// rawPeak parses the raw value with the given name as a ReplayGain peak
func rawPeak(idx map[string]string, name string) *float64 {
	s, exists := idx[name]
	if !exists {
		return nil
	}
	p, err := ParsePeak(s)
	if err != nil {
		return nil
	}
	return &p
}

// ParseGain parses a ReplayGain gain value such as "-8.50 dB" into the
// corresponding decibel number
func ParseGain(s string) (gain float64, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "dB"), "db"))
	if gain, err = strconv.ParseFloat(s, 64); err != nil {
		err = errors.Wrapf(err, "'%s' is no valid ReplayGain gain", s)
	}
	return
}

// ParsePeak parses a ReplayGain peak value such as "0.950000" into the
// corresponding linear amplitude
func ParsePeak(s string) (peak float64, err error) {
	if peak, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		err = errors.Wrapf(err, "'%s' is no valid ReplayGain peak", s)
	}
	return
}

// ReadEmbeddedLyrics extracts the embedded lyrics of the audio file at path.
// If the file has no lyrics, an empty string is returned
func ReadEmbeddedLyrics(path string) (lyrics string, err error) {
	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(ErrUnreadableFile, "cannot open '%s': %v", path, err)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		err = errors.Wrapf(ErrUnparseableTags, "cannot retrieve metadata for '%s': %v", path, err)
		return
	}
	return m.Lyrics(), nil
}

// ReadEmbeddedPicture extracts the first embedded picture of the audio file
// at path. If the file has no picture, nil is returned
func ReadEmbeddedPicture(path string) (data []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(ErrUnreadableFile, "cannot open '%s': %v", path, err)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		err = errors.Wrapf(ErrUnparseableTags, "cannot retrieve metadata for '%s': %v", path, err)
		return
	}

	pic := m.Picture()
	if pic == nil {
		return nil, nil
	}
	return pic.Data, nil
}
