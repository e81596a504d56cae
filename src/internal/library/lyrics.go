package library

import (
	"os"

	"github.com/pkg/errors"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/meta"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/playlist"
)

// GetLyrics returns the lyrics of the song with the given ID. A sidecar .lrc
// file takes precedence over lyrics embedded in the audio file; the LRC
// timestamps are stripped. A song without lyrics yields an empty string
func (me *Service) GetLyrics(songID string) (lyrics string, err error) {
	s, err := me.Catalog().GetSong(songID)
	if err != nil {
		return "", err
	}
	if s.Lyrics == nil {
		return "", nil
	}

	if s.Lyrics.Embedded {
		return meta.ReadEmbeddedLyrics(s.Lyrics.Path)
	}

	data, err := os.ReadFile(s.Lyrics.Path)
	if err != nil {
		return "", errors.Wrapf(err, "cannot read lyrics file '%s'", s.Lyrics.Path)
	}
	return playlist.ParseLRC(string(data)), nil
}
