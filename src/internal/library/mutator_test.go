package library

import (
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/playlist"
)

// newTestService builds a service over root with a filename-derived parser
// and performs the initial scan
func newTestService(t *testing.T, root string) *Service {
	t.Helper()

	cfg := &config.Cfg{MusicDir: root}
	cfg.ApplyDefaults()
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var calls int32
	svc.scanner = NewScanner(root, "", "", countingParse(&calls), nil, nil)
	if err := svc.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc
}

func songIDByPath(t *testing.T, svc *Service, path string) string {
	t.Helper()
	s, err := svc.Catalog().GetSongByPath(path)
	if err != nil {
		t.Fatal(err)
	}
	return s.ID
}

func TestCreatePlaylist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio-a")
	writeFile(t, filepath.Join(root, "b.mp3"), "audio-b")
	svc := newTestService(t, root)

	idA := songIDByPath(t, svc, filepath.Join(root, "a.mp3"))
	idB := songIDByPath(t, svc, filepath.Join(root, "b.mp3"))

	before := time.Now()
	p, err := svc.CreatePlaylist("My List", "a comment", []string{idA, idB})
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}

	if p.Name != "My List" || p.Comment != "a comment" {
		t.Errorf("playlist = %+v", p)
	}
	if len(p.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(p.Items))
	}
	for _, item := range p.Items {
		if item.AddedAt.Before(before) {
			t.Errorf("addedAt %v predates the creation", item.AddedAt)
		}
	}
	if p.Path != filepath.Join(root, "my-list.xspf") {
		t.Errorf("path = %q", p.Path)
	}
	if _, err := os.Stat(p.Path); err != nil {
		t.Errorf("playlist file missing: %v", err)
	}

	// the new playlist is published
	if got, err := svc.Catalog().GetPlaylist(p.ID); err != nil || got.Name != "My List" {
		t.Errorf("GetPlaylist = %v, %v", got, err)
	}

	// a second playlist with the same name gets a numbered filename
	p2, err := svc.CreatePlaylist("My List", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p2.Path != filepath.Join(root, "my-list (2).xspf") {
		t.Errorf("collision path = %q", p2.Path)
	}
}

func TestCreatePlaylistInvalidName(t *testing.T) {
	svc := newTestService(t, t.TempDir())
	if _, err := svc.CreatePlaylist("   ", "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdatePlaylistPreservesAddedAtAndExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio-a")
	writeFile(t, filepath.Join(root, "b.mp3"), "audio-b")

	// a playlist with distinct addedAt values and a foreign extension on the
	// first track
	doc := &playlist.Document{Title: "mix"}
	ta := playlist.Track{Location: "a.mp3"}
	ta.SetAddedTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	ta.Extra = []playlist.RawXML{{
		XMLName: xml.Name{Space: "http://example.com/other", Local: "data"},
		Inner:   "keep me",
	}}
	tb := playlist.Track{Location: "b.mp3"}
	tb.SetAddedTime(time.Date(2021, 2, 2, 0, 0, 0, 0, time.UTC))
	doc.Tracks = []playlist.Track{ta, tb}
	if err := doc.WriteFile(filepath.Join(root, "mix.xspf")); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, root)
	idA := songIDByPath(t, svc, filepath.Join(root, "a.mp3"))
	idB := songIDByPath(t, svc, filepath.Join(root, "b.mp3"))
	plID := CreatePlaylistID("mix.xspf")

	// reorder without changing membership
	updated, err := svc.UpdatePlaylist(plID, nil, nil, []string{idB, idA})
	if err != nil {
		t.Fatalf("UpdatePlaylist failed: %v", err)
	}
	if len(updated.Items) != 2 || updated.Items[0].SongID != idB || updated.Items[1].SongID != idA {
		t.Fatalf("items not reordered: %+v", updated.Items)
	}

	again, err := playlist.ParseFile(filepath.Join(root, "mix.xspf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Tracks) != 2 {
		t.Fatalf("track count = %d, want 2", len(again.Tracks))
	}
	if again.Tracks[0].AddedAt != tb.AddedAt || again.Tracks[1].AddedAt != ta.AddedAt {
		t.Errorf("addedAt changed: %q, %q", again.Tracks[0].AddedAt, again.Tracks[1].AddedAt)
	}
	if len(again.Tracks[1].Extra) != 1 || again.Tracks[1].Extra[0].Inner != "keep me" {
		t.Errorf("foreign extension lost: %+v", again.Tracks[1].Extra)
	}

	// a second reorder keeps the original addedAt values too
	svcAddTime := time.Now()
	updated, err = svc.UpdatePlaylist(plID, nil, nil, []string{idA, idB})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range updated.Items {
		if item.AddedAt.After(svcAddTime) {
			t.Errorf("existing track got a fresh addedAt: %v", item.AddedAt)
		}
	}
}

func TestUpdatePlaylistComment(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio")
	doc := &playlist.Document{Title: "mix", Annotation: "old"}
	doc.Tracks = []playlist.Track{{Location: "a.mp3"}}
	if err := doc.WriteFile(filepath.Join(root, "mix.xspf")); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, root)
	plID := CreatePlaylistID("mix.xspf")

	comment := "new comment"
	updated, err := svc.UpdatePlaylist(plID, nil, &comment, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Comment != "new comment" {
		t.Errorf("comment = %q", updated.Comment)
	}
	// membership untouched
	if len(updated.Items) != 1 {
		t.Errorf("item count = %d, want 1", len(updated.Items))
	}
}

func TestRenamePlaylist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio")
	doc := &playlist.Document{Title: "mix"}
	doc.Tracks = []playlist.Track{{Location: "a.mp3"}}
	if err := doc.WriteFile(filepath.Join(root, "mix.xspf")); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, root)
	oldID := CreatePlaylistID("mix.xspf")

	renamed, err := svc.RenamePlaylist(oldID, "Best Of")
	if err != nil {
		t.Fatalf("RenamePlaylist failed: %v", err)
	}
	if renamed.Name != "Best Of" {
		t.Errorf("name = %q", renamed.Name)
	}
	if renamed.Path != filepath.Join(root, "best-of.xspf") {
		t.Errorf("path = %q", renamed.Path)
	}
	if renamed.ID == oldID {
		t.Error("ID did not change with the path")
	}
	if _, err := os.Stat(filepath.Join(root, "mix.xspf.bak")); err != nil {
		t.Errorf("old file not backed up: %v", err)
	}

	// the old ID is gone from the snapshot, the new one resolves
	if _, err := svc.Catalog().GetPlaylist(oldID); !isNotFound(err) {
		t.Errorf("old ID still resolves: %v", err)
	}
	if _, err := svc.Catalog().GetPlaylist(renamed.ID); err != nil {
		t.Errorf("new ID does not resolve: %v", err)
	}

	// renaming onto an existing file is a conflict
	doc2 := &playlist.Document{Title: "other"}
	if err := doc2.WriteFile(filepath.Join(root, "taken.xspf")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RenamePlaylist(renamed.ID, "Taken"); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestDeletePlaylist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio")
	doc := &playlist.Document{Title: "mix"}
	doc.Tracks = []playlist.Track{{Location: "a.mp3"}}
	path := filepath.Join(root, "mix.xspf")
	if err := doc.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, root)
	plID := CreatePlaylistID("mix.xspf")

	if err := svc.DeletePlaylist(plID); err != nil {
		t.Fatalf("DeletePlaylist failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("playlist file still exists")
	}
	if _, err := svc.Catalog().GetPlaylist(plID); !isNotFound(err) {
		t.Errorf("deleted playlist still resolves: %v", err)
	}
	if err := svc.DeletePlaylist(plID); !isNotFound(err) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestVirtualPlaylistsAreReadOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio")
	svc := newTestService(t, root)

	if _, err := svc.UpdatePlaylist(VirtualAllSongsID, nil, nil, nil); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("update: err = %v, want ErrUnsupportedOperation", err)
	}
	if _, err := svc.RenamePlaylist(VirtualAllSongsID, "New"); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("rename: err = %v, want ErrUnsupportedOperation", err)
	}
	if err := svc.DeletePlaylist(VirtualNoReplayGainID); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("delete: err = %v, want ErrUnsupportedOperation", err)
	}

	if _, err := svc.RenamePlaylist("unknown-id", "New"); !isNotFound(err) {
		t.Errorf("unknown ID: err = %v, want ErrNotFound", err)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "My List", want: "my-list"},
		{in: "  Rock & Roll!  ", want: "rock-roll"},
		{in: "Déjà Vu", want: "déjà-vu"},
		{in: "///", want: "playlist"},
		{in: "a--b", want: "a-b"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
