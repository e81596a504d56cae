package library

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "library"})

// Catalog is one immutable snapshot of the library. All queries read from the
// snapshot they were called on; a rescan or playlist mutation produces a new
// snapshot that is published via an atomic pointer swap
type Catalog struct {
	Root     string
	LastScan time.Time

	songs       map[string]*Song
	albums      map[string]*Album
	artists     map[string]*Artist
	directories map[string]*Directory
	playlists   map[string]*Playlist // file-backed playlists
	virtuals    map[string]*Playlist
	covers      map[string]*CoverRef
	genres      map[string][]string // genre -> song IDs

	// synthetic songs representing missing playlist entries, addressable via
	// GetSong but part of no album or directory
	virtualSongs map[string]*Song

	missing   []MissingPlaylistItem
	invalid   []InvalidPlaylist
	rootDirID string

	songsByPath map[string]*Song // absolute path -> song
}

// GetSong returns the song with the given ID
func (me *Catalog) GetSong(id string) (*Song, error) {
	if s, exists := me.songs[id]; exists {
		return s, nil
	}
	if s, exists := me.virtualSongs[id]; exists {
		return s, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "no song with ID '%s'", id)
}

// GetAlbum returns the album with the given ID
func (me *Catalog) GetAlbum(id string) (*Album, error) {
	if a, exists := me.albums[id]; exists {
		return a, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "no album with ID '%s'", id)
}

// GetArtist returns the artist with the given ID
func (me *Catalog) GetArtist(id string) (*Artist, error) {
	if a, exists := me.artists[id]; exists {
		return a, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "no artist with ID '%s'", id)
}

// GetDirectory returns the directory with the given ID
func (me *Catalog) GetDirectory(id string) (*Directory, error) {
	if d, exists := me.directories[id]; exists {
		return d, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "no directory with ID '%s'", id)
}

// GetPlaylist returns the playlist (file-backed or virtual) with the given ID
func (me *Catalog) GetPlaylist(id string) (*Playlist, error) {
	if p, exists := me.playlists[id]; exists {
		return p, nil
	}
	if p, exists := me.virtuals[id]; exists {
		return p, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "no playlist with ID '%s'", id)
}

// GetSongByPath returns the song whose file is at the given absolute path
func (me *Catalog) GetSongByPath(path string) (*Song, error) {
	if s, exists := me.songsByPath[path]; exists {
		return s, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "no song at '%s'", path)
}

// RootDirectory returns the directory entity of the library root
func (me *Catalog) RootDirectory() *Directory {
	return me.directories[me.rootDirID]
}

// GetAllSongs returns all songs, ordered by file path
func (me *Catalog) GetAllSongs() []*Song {
	songs := make([]*Song, 0, len(me.songs))
	for _, s := range me.songs {
		songs = append(songs, s)
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].Path < songs[j].Path })
	return songs
}

// GetAllAlbums returns all albums, ordered by name
func (me *Catalog) GetAllAlbums() []*Album {
	albums := make([]*Album, 0, len(me.albums))
	for _, a := range me.albums {
		albums = append(albums, a)
	}
	sort.Slice(albums, func(i, j int) bool {
		if albums[i].Name != albums[j].Name {
			return albums[i].Name < albums[j].Name
		}
		return albums[i].ID < albums[j].ID
	})
	return albums
}

// GetAllArtists returns all artists, ordered by name
func (me *Catalog) GetAllArtists() []*Artist {
	artists := make([]*Artist, 0, len(me.artists))
	for _, a := range me.artists {
		artists = append(artists, a)
	}
	sort.Slice(artists, func(i, j int) bool { return artists[i].Name < artists[j].Name })
	return artists
}

// GetAllDirectories returns all directories, ordered by path
func (me *Catalog) GetAllDirectories() []*Directory {
	dirs := make([]*Directory, 0, len(me.directories))
	for _, d := range me.directories {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })
	return dirs
}

// GetPlaylists returns all playlists, file-backed ones ordered by name,
// virtual ones appended at the end
func (me *Catalog) GetPlaylists() []*Playlist {
	pls := make([]*Playlist, 0, len(me.playlists)+len(me.virtuals))
	for _, p := range me.playlists {
		pls = append(pls, p)
	}
	sort.Slice(pls, func(i, j int) bool {
		if pls[i].Name != pls[j].Name {
			return pls[i].Name < pls[j].Name
		}
		return pls[i].ID < pls[j].ID
	})
	for _, id := range []string{VirtualAllSongsID, VirtualMissingTracksID, VirtualNoReplayGainID} {
		if p, exists := me.virtuals[id]; exists {
			pls = append(pls, p)
		}
	}
	return pls
}

// GetGenres returns all genres, ordinal-sorted
func (me *Catalog) GetGenres() []string {
	genres := make([]string, 0, len(me.genres))
	for g := range me.genres {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

// GetSongsByGenre returns the songs of the given genre, ordered by file path
func (me *Catalog) GetSongsByGenre(genre string) []*Song {
	ids := me.genres[genre]
	songs := make([]*Song, 0, len(ids))
	for _, id := range ids {
		if s, exists := me.songs[id]; exists {
			songs = append(songs, s)
		}
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].Path < songs[j].Path })
	return songs
}

// GetRandomAlbums returns up to n randomly chosen albums
func (me *Catalog) GetRandomAlbums(n int) []*Album {
	albums := me.GetAllAlbums()
	rand.Shuffle(len(albums), func(i, j int) { albums[i], albums[j] = albums[j], albums[i] })
	if n < len(albums) {
		albums = albums[:n]
	}
	return albums
}

// GetNewestAlbums returns up to n albums, newest first (by creation time of
// their oldest member song)
func (me *Catalog) GetNewestAlbums(n int) []*Album {
	albums := me.GetAllAlbums()
	sort.SliceStable(albums, func(i, j int) bool { return albums[i].Created.After(albums[j].Created) })
	if n < len(albums) {
		albums = albums[:n]
	}
	return albums
}

// GetRandomSongs returns up to n randomly chosen songs
func (me *Catalog) GetRandomSongs(n int) []*Song {
	songs := me.GetAllSongs()
	rand.Shuffle(len(songs), func(i, j int) { songs[i], songs[j] = songs[j], songs[i] })
	if n < len(songs) {
		songs = songs[:n]
	}
	return songs
}

// SearchAll returns the artists, albums and songs whose name fields contain
// query, compared case-insensitively. Albums match on album name or album
// artist; songs on title, artist or album
func (me *Catalog) SearchAll(query string) (artists []*Artist, albums []*Album, songs []*Song) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return
	}

	for _, a := range me.GetAllArtists() {
		if strings.Contains(strings.ToLower(a.Name), q) {
			artists = append(artists, a)
		}
	}
	for _, a := range me.GetAllAlbums() {
		if strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(strings.ToLower(a.Artist), q) {
			albums = append(albums, a)
		}
	}
	for _, s := range me.GetAllSongs() {
		if strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Artist), q) ||
			strings.Contains(strings.ToLower(s.Album), q) {
			songs = append(songs, s)
		}
	}
	return
}

// SongsOf dereferences the song IDs of the album against this snapshot
func (me *Catalog) SongsOf(album *Album) []*Song {
	songs := make([]*Song, 0, len(album.SongIDs))
	for _, id := range album.SongIDs {
		if s, exists := me.songs[id]; exists {
			songs = append(songs, s)
		}
	}
	return songs
}

// AlbumsOf dereferences the album IDs of the artist against this snapshot
func (me *Catalog) AlbumsOf(artist *Artist) []*Album {
	albums := make([]*Album, 0, len(artist.AlbumIDs))
	for _, id := range artist.AlbumIDs {
		if a, exists := me.albums[id]; exists {
			albums = append(albums, a)
		}
	}
	return albums
}

// GetMissingPlaylistItems returns the playlist entries whose referenced files
// could not be found during the last scan
func (me *Catalog) GetMissingPlaylistItems() []MissingPlaylistItem {
	return me.missing
}

// GetInvalidPlaylists returns the playlist files that failed to parse during
// the last scan
func (me *Catalog) GetInvalidPlaylists() []InvalidPlaylist {
	return me.invalid
}

// SongCount returns the number of (non-synthetic) songs in the snapshot
func (me *Catalog) SongCount() int { return len(me.songs) }

// AlbumCount returns the number of albums in the snapshot
func (me *Catalog) AlbumCount() int { return len(me.albums) }

// ArtistCount returns the number of artists in the snapshot
func (me *Catalog) ArtistCount() int { return len(me.artists) }

// PlaylistCount returns the number of file-backed playlists in the snapshot
func (me *Catalog) PlaylistCount() int { return len(me.playlists) }

// ResolveCover resolves id to a cover reference. id may be a cover ID, a song
// ID or an album ID; song and album are dereferenced to their cover
func (me *Catalog) ResolveCover(id string) (*CoverRef, error) {
	if c, exists := me.covers[id]; exists {
		return c, nil
	}
	if s, exists := me.songs[id]; exists && s.Cover != nil {
		return s.Cover, nil
	}
	if a, exists := me.albums[id]; exists && a.CoverID != "" {
		if c, exists := me.covers[a.CoverID]; exists {
			return c, nil
		}
	}
	if p, exists := me.playlists[id]; exists && p.CoverID != "" {
		if c, exists := me.covers[p.CoverID]; exists {
			return c, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "no cover for ID '%s'", id)
}

// withPlaylists returns a copy of the snapshot that carries the given
// playlist map. Everything else is shared structurally: playlist edits never
// change songs, albums or the virtual playlists
func (me *Catalog) withPlaylists(playlists map[string]*Playlist) *Catalog {
	clone := *me
	clone.playlists = playlists
	return &clone
}
