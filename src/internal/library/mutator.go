package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/playlist"
)

// CreatePlaylist writes a new XSPF file for the given songs and publishes the
// playlist. Unknown song IDs are skipped. The filename is derived from the
// slugified name; collisions get a " (n)" suffix with n >= 2
func (me *Service) CreatePlaylist(name, comment string, songIDs []string) (*Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(ErrInvalidInput, "playlist name must not be empty")
	}

	me.mu.Lock()
	defer me.mu.Unlock()

	cat := me.Catalog()
	path, err := uniquePlaylistPath(cat.Root, slugify(name))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &playlist.Document{Title: name, Annotation: comment}
	for _, songID := range songIDs {
		s, err := cat.GetSong(songID)
		if err != nil {
			log.Warnf("skipping unknown song '%s' for playlist '%s'", songID, name)
			continue
		}
		t := playlist.Track{Location: relativeLocation(path, s.Path), Title: s.Title}
		t.SetAddedTime(now)
		doc.Tracks = append(doc.Tracks, t)
	}

	if err := doc.WriteFile(path); err != nil {
		return nil, err
	}

	p := me.playlistFromDoc(cat, doc, path, now, now)
	me.publishPlaylists(func(pls map[string]*Playlist) {
		pls[p.ID] = p
	})
	return p, nil
}

// UpdatePlaylist rewrites the XSPF file of the playlist. nil means "leave
// unchanged" for name, comment and songIDs. When songIDs is supplied the
// track list is rebuilt to exactly that sequence; tracks that were already in
// the file keep their addedAt value and any foreign extension payload, new
// tracks get addedAt = now. A changed name renames the file
func (me *Service) UpdatePlaylist(id string, name, comment *string, songIDs []string) (*Playlist, error) {
	me.mu.Lock()
	defer me.mu.Unlock()

	cat := me.Catalog()
	p, err := me.mutablePlaylist(cat, id)
	if err != nil {
		return nil, err
	}

	doc, err := playlist.ParseFile(p.Path)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if songIDs != nil {
		// index the current tracks by the song they resolve to
		prior := make(map[string]playlist.Track)
		dir := filepath.Dir(p.Path)
		for _, t := range doc.Tracks {
			abs := filepath.FromSlash(t.Location)
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(dir, abs)
			}
			if s, serr := cat.GetSongByPath(abs); serr == nil {
				prior[s.ID] = t
			}
		}

		doc.Tracks = nil
		for _, songID := range songIDs {
			s, serr := cat.GetSong(songID)
			if serr != nil {
				log.Warnf("skipping unknown song '%s' for playlist '%s'", songID, p.Name)
				continue
			}
			if t, exists := prior[s.ID]; exists {
				doc.Tracks = append(doc.Tracks, t)
				continue
			}
			t := playlist.Track{Location: relativeLocation(p.Path, s.Path), Title: s.Title}
			t.SetAddedTime(now)
			doc.Tracks = append(doc.Tracks, t)
		}
	}

	if comment != nil {
		doc.Annotation = *comment
	}

	path := p.Path
	oldID := p.ID
	if name != nil && strings.TrimSpace(*name) != "" && strings.TrimSpace(*name) != p.Name {
		doc.Title = strings.TrimSpace(*name)
		if path, err = me.renameFile(cat, doc, p.Path, doc.Title); err != nil {
			return nil, err
		}
	} else if err := doc.WriteFile(path); err != nil {
		return nil, err
	}

	updated := me.playlistFromDoc(cat, doc, path, p.Created, now)
	me.publishPlaylists(func(pls map[string]*Playlist) {
		delete(pls, oldID)
		pls[updated.ID] = updated
	})
	return updated, nil
}

// RenamePlaylist renames the playlist file. The old file is kept as
// <old>.bak. If the target filename already exists the rename fails with a
// conflict
func (me *Service) RenamePlaylist(id, newName string) (*Playlist, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, errors.Wrap(ErrInvalidInput, "playlist name must not be empty")
	}

	me.mu.Lock()
	defer me.mu.Unlock()

	cat := me.Catalog()
	p, err := me.mutablePlaylist(cat, id)
	if err != nil {
		return nil, err
	}

	doc, err := playlist.ParseFile(p.Path)
	if err != nil {
		return nil, err
	}
	doc.Title = newName

	newPath, err := me.renameFile(cat, doc, p.Path, newName)
	if err != nil {
		return nil, err
	}

	renamed := me.playlistFromDoc(cat, doc, newPath, p.Created, time.Now())
	oldID := p.ID
	me.publishPlaylists(func(pls map[string]*Playlist) {
		delete(pls, oldID)
		pls[renamed.ID] = renamed
	})
	return renamed, nil
}

// DeletePlaylist unlinks the playlist file and removes the playlist from the
// snapshot
func (me *Service) DeletePlaylist(id string) error {
	me.mu.Lock()
	defer me.mu.Unlock()

	cat := me.Catalog()
	p, err := me.mutablePlaylist(cat, id)
	if err != nil {
		return err
	}

	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "cannot delete playlist file '%s'", p.Path)
	}

	me.publishPlaylists(func(pls map[string]*Playlist) {
		delete(pls, p.ID)
	})
	return nil
}

// mutablePlaylist resolves id to a playlist that may be modified. Virtual
// playlists are read-only
func (me *Service) mutablePlaylist(cat *Catalog, id string) (*Playlist, error) {
	if IsVirtualID(id) {
		return nil, errors.Wrapf(ErrUnsupportedOperation, "playlist '%s' is virtual and read-only", id)
	}
	p, err := cat.GetPlaylist(id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// renameFile writes doc to the file derived from newName next to oldPath and
// moves the old file to <oldPath>.bak. An existing target is a conflict
func (me *Service) renameFile(cat *Catalog, doc *playlist.Document, oldPath, newName string) (newPath string, err error) {
	newPath = filepath.Join(filepath.Dir(oldPath), slugify(newName)+".xspf")
	if newPath == oldPath {
		return newPath, doc.WriteFile(newPath)
	}
	if _, serr := os.Stat(newPath); serr == nil {
		return "", errors.Wrapf(ErrConflict, "playlist file '%s' already exists", newPath)
	}

	if err = doc.WriteFile(newPath); err != nil {
		return "", err
	}
	if err = os.Rename(oldPath, oldPath+".bak"); err != nil {
		return "", errors.Wrapf(err, "cannot back up playlist file '%s'", oldPath)
	}
	return newPath, nil
}

// playlistFromDoc derives the playlist entity from its written document
func (me *Service) playlistFromDoc(cat *Catalog, doc *playlist.Document, path string, created, changed time.Time) *Playlist {
	relPath, err := filepath.Rel(cat.Root, path)
	if err != nil {
		relPath = filepath.Base(path)
	}
	relPath = filepath.ToSlash(relPath)

	p := &Playlist{
		ID:      CreatePlaylistID(relPath),
		Name:    doc.DisplayName(path),
		Path:    path,
		Created: created,
		Changed: changed,
		Comment: doc.Annotation,
	}

	dir := filepath.Dir(path)
	for _, t := range doc.Tracks {
		abs := filepath.FromSlash(t.Location)
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(dir, abs)
		}
		s, serr := cat.GetSongByPath(abs)
		if serr != nil {
			continue
		}
		addedAt := changed
		if added, ok := t.AddedTime(); ok {
			addedAt = added
		}
		p.Items = append(p.Items, PlaylistItem{SongID: s.ID, AddedAt: addedAt})
		if p.CoverID == "" && s.Cover != nil {
			p.CoverID = s.Cover.ID
		}
	}
	return p
}

// publishPlaylists publishes a snapshot whose playlist map was transformed by
// mutate. The rest of the snapshot is shared structurally
func (me *Service) publishPlaylists(mutate func(map[string]*Playlist)) {
	cat := me.Catalog()
	pls := make(map[string]*Playlist, len(cat.playlists)+1)
	for id, p := range cat.playlists {
		pls[id] = p
	}
	mutate(pls)
	me.cat.Store(cat.withPlaylists(pls))
}

// slugify derives a filesystem-friendly filename trunk from a playlist name:
// lowercased, letters and digits kept, everything else collapsed to single
// dashes
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteRune('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		slug = "playlist"
	}
	return slug
}

// uniquePlaylistPath returns a path under dir for the slug that does not
// collide with an existing file
func uniquePlaylistPath(dir, slug string) (string, error) {
	for n := 1; ; n++ {
		candidate := slug
		if n > 1 {
			candidate = fmt.Sprintf("%s (%d)", slug, n)
		}
		path := filepath.Join(dir, candidate+".xspf")
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", errors.Wrapf(err, "cannot check playlist file '%s'", path)
		}
	}
}

// relativeLocation returns the XSPF location of songPath: relative to the
// playlist file, forward slashes
func relativeLocation(playlistPath, songPath string) string {
	rel, err := filepath.Rel(filepath.Dir(playlistPath), songPath)
	if err != nil {
		return filepath.ToSlash(songPath)
	}
	return filepath.ToSlash(rel)
}
