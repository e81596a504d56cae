package library

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/art"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}

func TestCoverArtCachedDuringScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio")
	if err := os.WriteFile(filepath.Join(root, "cover.jpg"), jpegBytes, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Cfg{MusicDir: root, CacheDir: t.TempDir()}
	cfg.ApplyDefaults()
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatal(err)
	}

	cache, err := art.NewCache(cfg.CoverCacheDir())
	if err != nil {
		t.Fatal(err)
	}
	var calls int32
	svc.scanner = NewScanner(root, cfg.ScanRecordPath(), cfg.CoverCacheDir(), countingParse(&calls), nil, cache)

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	s, err := svc.Catalog().GetSongByPath(filepath.Join(root, "a.mp3"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Cover == nil || s.Cover.CachePath == "" {
		t.Fatalf("cover ref = %+v", s.Cover)
	}

	// the cache file exists and mirrors the source's last-write time
	info, err := os.Stat(s.Cover.CachePath)
	if err != nil {
		t.Fatalf("cover cache file missing: %v", err)
	}
	srcInfo, err := os.Stat(filepath.Join(root, "cover.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(srcInfo.ModTime()) {
		t.Errorf("cache mtime = %v, source mtime = %v", info.ModTime(), srcInfo.ModTime())
	}

	// the cover resolves via song ID and album ID alike
	for _, id := range []string{s.ID, s.AlbumID, s.Cover.ID} {
		data, lastModified, err := svc.GetCoverArt(id)
		if err != nil {
			t.Fatalf("GetCoverArt(%q) failed: %v", id, err)
		}
		if !bytes.Equal(data, jpegBytes) {
			t.Errorf("GetCoverArt(%q) bytes differ", id)
		}
		if lastModified.IsZero() {
			t.Errorf("GetCoverArt(%q) lastModified unset", id)
		}
	}

	if _, _, err := svc.GetCoverArt("unknown"); !isNotFound(err) {
		t.Errorf("unknown ID: err = %v, want ErrNotFound", err)
	}
}

func TestScanPublishesUnderWriterLock(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio")

	cfg := &config.Cfg{MusicDir: root}
	cfg.ApplyDefaults()
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var calls int32
	svc.scanner = NewScanner(root, "", "", countingParse(&calls), nil, nil)

	// an in-flight playlist mutation holds the writer lock; a scan finishing
	// meanwhile must not publish until the mutation is done, or the mutation
	// would overwrite the scan result with its pre-scan copy
	svc.mu.Lock()
	done := make(chan error, 1)
	go func() { done <- svc.Scan(context.Background()) }()

	for svc.Status().ScanCount == 0 {
		time.Sleep(time.Millisecond)
	}
	if n := svc.Catalog().SongCount(); n != 0 {
		t.Errorf("snapshot published while a mutation was in flight (%d songs)", n)
	}
	svc.mu.Unlock()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := svc.Catalog().SongCount(); n != 1 {
		t.Errorf("song count after scan = %d, want 1", n)
	}
}

func TestWriteStatus(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "audio")
	svc := newTestService(t, root)

	var buf bytes.Buffer
	svc.WriteStatus(&buf)
	out := buf.String()

	if !strings.Contains(out, "1 songs") {
		t.Errorf("status lacks the song count:\n%s", out)
	}
	if !strings.Contains(out, "Last scan:") {
		t.Errorf("status lacks the scan date:\n%s", out)
	}
	if !strings.Contains(out, "Memory consumption:") {
		t.Errorf("status lacks the memory line:\n%s", out)
	}
}
