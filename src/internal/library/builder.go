package library

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
)

// buildCatalog assembles an immutable catalog snapshot from a scan record.
// It is a pure function of its inputs and never touches the filesystem;
// that makes the assembly step testable without a music tree
func buildCatalog(root, coverCacheDir string, rec *scanRecord, scanTime time.Time) *Catalog {
	cat := &Catalog{
		Root:         root,
		LastScan:     scanTime,
		songs:        make(map[string]*Song),
		albums:       make(map[string]*Album),
		artists:      make(map[string]*Artist),
		directories:  make(map[string]*Directory),
		playlists:    make(map[string]*Playlist),
		virtuals:     make(map[string]*Playlist),
		covers:       make(map[string]*CoverRef),
		genres:       make(map[string][]string),
		virtualSongs: make(map[string]*Song),
		songsByPath:  make(map[string]*Song),
	}

	cat.rootDirID = cat.ensureDirectory(root, "")

	// deterministic assembly order
	sort.Slice(rec.Songs, func(i, j int) bool { return rec.Songs[i].Path < rec.Songs[j].Path })

	for i := range rec.Songs {
		cat.addSong(root, coverCacheDir, &rec.Songs[i])
	}

	cat.assembleAlbums()
	cat.assembleArtists()
	cat.addPlaylists(root, rec, scanTime)
	cat.invalid = invalidPlaylists(rec)
	cat.assembleVirtuals(scanTime)

	return cat
}

// addSong turns one song record into a Song entity and registers it with its
// directory and genre
func (me *Catalog) addSong(root, coverCacheDir string, rec *songRecord) {
	absPath := filepath.Join(root, filepath.FromSlash(rec.Path))
	suffix := config.Suffix(rec.Path)

	s := &Song{
		ID:          CreateSongID(rec.Path, rec.LastWrite),
		Path:        absPath,
		Title:       rec.Title,
		Album:       rec.Album,
		AlbumArtist: rec.AlbumArtist,
		Artist:      rec.Artist,
		Genre:       rec.Genre,
		Track:       rec.Track,
		Year:        rec.Year,
		Duration:    rec.Duration,
		Size:        rec.Size,
		Bitrate:     rec.Bitrate,
		Suffix:      suffix,
		ContentType: config.ContentTypeForSuffix(suffix),
		ISRC:        rec.ISRC,
		RGTrackGain: rec.ReplayGainTrack,
		RGTrackPeak: rec.ReplayPeakTrack,
		RGAlbumGain: rec.ReplayGainAlbum,
		RGAlbumPeak: rec.ReplayPeakAlbum,
		Created:     rec.Created,
	}
	if strings.TrimSpace(s.Title) == "" {
		base := filepath.Base(absPath)
		s.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	// external lyrics take precedence over embedded ones
	switch {
	case rec.LyricsPath != "":
		s.Lyrics = &LyricsRef{
			ID:   CreateLyricsID(rec.LyricsPath),
			Path: filepath.Join(root, filepath.FromSlash(rec.LyricsPath)),
		}
	case rec.EmbeddedLyrics != "":
		s.Lyrics = &LyricsRef{
			ID:       CreateLyricsID(rec.Path),
			Path:     absPath,
			Embedded: true,
		}
	}

	// an embedded cover wins over a sidecar image
	switch {
	case rec.HasEmbeddedCover:
		s.Cover = &CoverRef{
			ID:        CreateCoverID(rec.Path),
			Path:      absPath,
			Embedded:  true,
			LastWrite: rec.LastWrite,
		}
	case rec.CoverPath != "":
		s.Cover = &CoverRef{
			ID:        CreateCoverID(rec.CoverPath),
			Path:      filepath.Join(root, filepath.FromSlash(rec.CoverPath)),
			LastWrite: rec.CoverLastWrite,
		}
	}
	if s.Cover != nil {
		if coverCacheDir != "" {
			s.Cover.CachePath = filepath.Join(coverCacheDir, s.Cover.ID)
		}
		me.covers[s.Cover.ID] = s.Cover
	}

	dirID := me.ensureDirectory(filepath.Dir(absPath), root)
	s.ParentID = dirID
	dir := me.directories[dirID]
	dir.SongIDs = append(dir.SongIDs, s.ID)

	if g := strings.TrimSpace(s.Genre); g != "" {
		me.genres[g] = append(me.genres[g], s.ID)
	}

	me.songs[s.ID] = s
	me.songsByPath[s.Path] = s
}

// ensureDirectory registers the directory at absPath and all its ancestors up
// to root, and returns its ID. root == "" registers absPath as the tree root
func (me *Catalog) ensureDirectory(absPath, root string) string {
	id := CreateDirectoryID(absPath)
	if _, exists := me.directories[id]; exists {
		return id
	}

	d := &Directory{
		ID:   id,
		Name: filepath.Base(absPath),
		Path: absPath,
	}
	me.directories[id] = d

	if root != "" && absPath != root {
		parentID := me.ensureDirectory(filepath.Dir(absPath), root)
		d.ParentID = parentID
		parent := me.directories[parentID]
		parent.ChildIDs = append(parent.ChildIDs, id)
		sort.Strings(parent.ChildIDs)
	}
	return id
}

// albumKey is the case-insensitive grouping key of an album
func albumKey(artist, album string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(album))
}

// assembleAlbums buckets the songs into albums. Grouping is case-insensitive
// on the trimmed album artist and album name; the display names (and the
// album ID) come from the first song seen for the bucket
func (me *Catalog) assembleAlbums() {
	type bucket struct {
		artist string // canonical, trimmed
		name   string // canonical, trimmed
		songs  []*Song
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, s := range me.sortedSongs() {
		artist := strings.TrimSpace(s.AlbumArtist)
		if artist == "" {
			artist = UnknownArtist
		}
		name := strings.TrimSpace(s.Album)
		if name == "" {
			name = UnknownAlbum
		}

		key := albumKey(artist, name)
		b, exists := buckets[key]
		if !exists {
			b = &bucket{artist: artist, name: name}
			buckets[key] = b
			order = append(order, key)
		}
		b.songs = append(b.songs, s)
	}

	for _, key := range order {
		b := buckets[key]
		a := &Album{
			ID:        CreateAlbumID(b.artist, b.name),
			Name:      b.name,
			Artist:    b.artist,
			ArtistID:  CreateArtistID(b.artist),
			SongCount: len(b.songs),
		}

		// track order; unknown track numbers sort first
		sort.SliceStable(b.songs, func(i, j int) bool { return b.songs[i].Track < b.songs[j].Track })

		for _, s := range b.songs {
			s.AlbumID = a.ID
			s.ArtistID = a.ArtistID
			a.SongIDs = append(a.SongIDs, s.ID)
			a.Duration += s.Duration
			if a.Year == 0 && s.Year != 0 {
				a.Year = s.Year
			}
			if a.Genre == "" && strings.TrimSpace(s.Genre) != "" {
				a.Genre = strings.TrimSpace(s.Genre)
			}
			if a.Created.IsZero() || s.Created.Before(a.Created) {
				a.Created = s.Created
			}
			if a.CoverID == "" && s.Cover != nil {
				a.CoverID = s.Cover.ID
			}
		}

		me.albums[a.ID] = a
	}
}

// assembleArtists buckets the albums into artists by their normalized artist
// name. The display name is the trimmed form of the first album seen
func (me *Catalog) assembleArtists() {
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

	for _, album := range albums {
		artist, exists := me.artists[album.ArtistID]
		if !exists {
			artist = &Artist{
				ID:   album.ArtistID,
				Name: album.Artist,
			}
			me.artists[album.ArtistID] = artist
		}
		artist.AlbumIDs = append(artist.AlbumIDs, album.ID)
		artist.AlbumCount++
		if artist.CoverID == "" && album.CoverID != "" {
			artist.CoverID = album.CoverID
		}
	}
}

// addPlaylists turns the playlist records into playlist entities, splitting
// their entries into resolvable items and missing items
func (me *Catalog) addPlaylists(root string, rec *scanRecord, scanTime time.Time) {
	sort.Slice(rec.Playlists, func(i, j int) bool { return rec.Playlists[i].Path < rec.Playlists[j].Path })

	for i := range rec.Playlists {
		pr := &rec.Playlists[i]
		p := &Playlist{
			ID:      CreatePlaylistID(pr.Path),
			Name:    pr.Name,
			Path:    filepath.Join(root, filepath.FromSlash(pr.Path)),
			Created: pr.Created,
			Changed: pr.Changed,
			Comment: pr.Comment,
		}

		for _, item := range pr.Items {
			addedAt := scanTime
			if item.AddedAt != nil {
				addedAt = *item.AddedAt
			}
			abs := filepath.Join(root, filepath.FromSlash(item.Path))
			s, exists := me.songsByPath[abs]
			if !exists {
				me.missing = append(me.missing, MissingPlaylistItem{
					PlaylistID:   p.ID,
					PlaylistName: p.Name,
					RelativePath: item.Path,
					AddedAt:      addedAt,
				})
				continue
			}
			p.Items = append(p.Items, PlaylistItem{SongID: s.ID, AddedAt: addedAt})
			if p.CoverID == "" && s.Cover != nil {
				p.CoverID = s.Cover.ID
			}
		}

		me.playlists[p.ID] = p
	}
}

func invalidPlaylists(rec *scanRecord) []InvalidPlaylist {
	var invalid []InvalidPlaylist
	for _, ip := range rec.InvalidPlaylists {
		invalid = append(invalid, InvalidPlaylist{Path: ip.Path, Reason: ip.Reason})
	}
	return invalid
}

// assembleVirtuals computes the virtual playlists of the snapshot. All Songs
// is always present; Missing Tracks and No Replay Gain only when non-empty
func (me *Catalog) assembleVirtuals(scanTime time.Time) {
	songs := me.sortedSongs()

	all := &Playlist{
		ID:      VirtualAllSongsID,
		Name:    "All Songs",
		Created: scanTime,
		Changed: scanTime,
		Virtual: true,
	}
	for _, s := range songs {
		all.Items = append(all.Items, PlaylistItem{SongID: s.ID, AddedAt: s.Created})
	}
	me.virtuals[VirtualAllSongsID] = all

	if len(me.missing) > 0 {
		missing := &Playlist{
			ID:      VirtualMissingTracksID,
			Name:    "Missing Tracks",
			Created: scanTime,
			Changed: scanTime,
			Virtual: true,
		}
		for _, m := range me.missing {
			s := &Song{
				ID:    createMissingSongID(m.RelativePath),
				Title: "[Missing] " + m.RelativePath,
			}
			me.virtualSongs[s.ID] = s
			missing.Items = append(missing.Items, PlaylistItem{SongID: s.ID, AddedAt: m.AddedAt})
		}
		me.virtuals[VirtualMissingTracksID] = missing
	}

	var noGain []*Song
	for _, s := range songs {
		if s.RGTrackGain == nil {
			noGain = append(noGain, s)
		}
	}
	if len(noGain) > 0 {
		pl := &Playlist{
			ID:      VirtualNoReplayGainID,
			Name:    "No Replay Gain",
			Created: scanTime,
			Changed: scanTime,
			Virtual: true,
		}
		for _, s := range noGain {
			pl.Items = append(pl.Items, PlaylistItem{SongID: s.ID, AddedAt: s.Created})
		}
		me.virtuals[VirtualNoReplayGainID] = pl
	}
}

// sortedSongs returns the songs of the snapshot ordered by file path
func (me *Catalog) sortedSongs() []*Song {
	songs := make([]*Song, 0, len(me.songs))
	for _, s := range me.songs {
		songs = append(songs, s)
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].Path < songs[j].Path })
	return songs
}
