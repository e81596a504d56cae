package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScanRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.json")
	gain := -8.5
	added := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := &scanRecord{
		Root:     "/music",
		ScanDate: testScanTime,
		Songs: []songRecord{{
			Path:            "a.mp3",
			Size:            1234,
			Created:         testScanTime.Add(-time.Hour),
			LastWrite:       testScanTime.Add(-time.Hour),
			Title:           "A",
			ReplayGainTrack: &gain,
		}},
		Playlists: []playlistRecord{{
			Path:  "p.xspf",
			Name:  "p",
			Items: []playlistItemRecord{{Path: "a.mp3", AddedAt: &added}},
		}},
		InvalidPlaylists: []invalidPlaylistRecord{{Path: "bad.xspf", Reason: "parse error"}},
	}

	if err := rec.save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	got := loadScanRecord(path)
	if got.Root != "/music" || len(got.Songs) != 1 || len(got.Playlists) != 1 {
		t.Fatalf("reloaded record = %+v", got)
	}
	s := got.Songs[0]
	if s.Path != "a.mp3" || s.Size != 1234 || !s.LastWrite.Equal(rec.Songs[0].LastWrite) {
		t.Errorf("song record = %+v", s)
	}
	if s.ReplayGainTrack == nil || *s.ReplayGainTrack != -8.5 {
		t.Errorf("track gain = %v", s.ReplayGainTrack)
	}
	if s.ReplayGainAlbum != nil {
		t.Errorf("absent album gain = %v, want nil", s.ReplayGainAlbum)
	}
	item := got.Playlists[0].Items[0]
	if item.AddedAt == nil || !item.AddedAt.Equal(added) {
		t.Errorf("addedAt = %v", item.AddedAt)
	}
	if len(got.InvalidPlaylists) != 1 || got.InvalidPlaylists[0].Path != "bad.xspf" {
		t.Errorf("invalid playlists = %+v", got.InvalidPlaylists)
	}
}

func TestLoadScanRecordTolerant(t *testing.T) {
	// absent file
	rec := loadScanRecord(filepath.Join(t.TempDir(), "missing.json"))
	if rec == nil || len(rec.Songs) != 0 {
		t.Errorf("absent file: record = %+v", rec)
	}

	// corrupt file
	path := filepath.Join(t.TempDir(), "scan.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	rec = loadScanRecord(path)
	if rec == nil || len(rec.Songs) != 0 {
		t.Errorf("corrupt file: record = %+v", rec)
	}

	// disabled record
	if rec = loadScanRecord(""); rec == nil {
		t.Error("empty path must yield an empty record")
	}
}
