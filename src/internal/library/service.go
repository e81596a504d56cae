package library

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/art"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/meta"
)

// Service owns the published catalog snapshot and the scanner. Queries read
// the snapshot lock-free via an atomic pointer; the scanner and the playlist
// mutator publish new snapshots by swapping that pointer
type Service struct {
	cfg     *config.Cfg
	cat     atomic.Pointer[Catalog]
	scanner *Scanner
	reader  *meta.Reader

	// serializes snapshot publication across writers (scan and playlist
	// mutations); queries don't take it
	mu sync.Mutex
}

// NewService creates the catalog service for the configured music directory.
// The catalog is empty until the first scan
func NewService(cfg *config.Cfg) (*Service, error) {
	me := &Service{
		cfg:    cfg,
		reader: &meta.Reader{FFprobePath: cfg.FFprobePath},
	}

	var covers CoverMaterializer
	if dir := cfg.CoverCacheDir(); dir != "" {
		cache, err := art.NewCache(dir)
		if err != nil {
			return nil, err
		}
		covers = cache
	}

	var gain *meta.GainAnalyzer
	if cfg.ComputeMissingReplayGain {
		gain = meta.NewGainAnalyzer(cfg.FFmpegPath, cfg.MaxGainAnalyses)
	}

	me.scanner = NewScanner(cfg.MusicDir, cfg.ScanRecordPath(), cfg.CoverCacheDir(),
		me.reader.ReadSong, gain, covers)

	me.cat.Store(buildCatalog(cfg.MusicDir, cfg.CoverCacheDir(), new(scanRecord), time.Time{}))
	return me, nil
}

// Catalog returns the currently published snapshot
func (me *Service) Catalog() *Catalog {
	return me.cat.Load()
}

// Status returns the scanner state
func (me *Service) Status() Status {
	return me.scanner.Status()
}

// Scan performs one scan and publishes the resulting snapshot. If a scan is
// already running, Scan returns immediately; the in-flight scan will publish
func (me *Service) Scan(ctx context.Context) error {
	cat, err := me.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	if cat != nil {
		// under the writer lock: a playlist mutation copies the current
		// snapshot before storing, and a store in between would be lost
		me.mu.Lock()
		me.cat.Store(cat)
		me.mu.Unlock()
	}
	return nil
}

// TriggerScan starts a scan in the background. Triggers while a scan is
// running are coalesced into the running one
func (me *Service) TriggerScan(ctx context.Context) {
	go func() {
		if err := me.Scan(ctx); err != nil {
			log.Errorf("scan failed: %v", err)
		}
	}()
}

// GetCoverArt returns the cover bytes for id, which may be a cover, song,
// album or playlist ID, together with their last-modified time
func (me *Service) GetCoverArt(id string) (data []byte, lastModified time.Time, err error) {
	ref, err := me.Catalog().ResolveCover(id)
	if err != nil {
		return nil, time.Time{}, err
	}
	return art.Read(ref.CachePath, ref.Path, ref.Embedded)
}

// WriteStatus writes the library status to w
func (me *Service) WriteStatus(w io.Writer) {
	cat := me.Catalog()
	st := me.Status()

	fmt.Fprint(w, "Library:\n")
	fmt.Fprintf(w, "    %6d songs\n", cat.SongCount())
	fmt.Fprintf(w, "    %6d albums\n", cat.AlbumCount())
	fmt.Fprintf(w, "    %6d artists\n", cat.ArtistCount())
	fmt.Fprintf(w, "    %6d playlists\n", cat.PlaylistCount())
	if n := len(cat.GetMissingPlaylistItems()); n > 0 {
		fmt.Fprintf(w, "    %6d missing playlist entries\n", n)
	}
	if n := len(cat.GetInvalidPlaylists()); n > 0 {
		fmt.Fprintf(w, "    %6d invalid playlists\n", n)
	}
	fmt.Fprint(w, "\n")

	switch {
	case st.IsScanning:
		fmt.Fprintf(w, "    Scanning ... (%.2f%%)\n", 100*st.Progress)
		if st.ETA != nil {
			fmt.Fprintf(w, "    ETA: %v\n", st.ETA.Round(time.Second))
		}
	case !st.LastScanDate.IsZero():
		message.NewPrinter(language.English).Fprintf(w, "    Last scan: %v (%d scans)\n",
			st.LastScanDate.Format(time.RFC1123), st.ScanCount)
	default:
		fmt.Fprint(w, "    Waiting for first scan ...\n")
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Fprintf(w, "    Memory consumption: %s\n", humanize.Bytes(m.HeapAlloc))
}
