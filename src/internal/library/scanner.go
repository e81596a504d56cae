package library

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/meta"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/playlist"
)

// ParseFunc extracts the metadata of one audio file. It is a field of the
// scanner so that tests can scan synthetic trees without real audio files
type ParseFunc func(ctx context.Context, path string) (*meta.ParsedSong, error)

// CoverMaterializer refreshes one cover cache file from its source
type CoverMaterializer interface {
	Materialize(srcPath string, embedded bool, srcLastWrite time.Time, cachePath string) error
}

// Status is a point-in-time view of the scanner state
type Status struct {
	IsScanning             bool
	IsInitialScanCompleted bool
	ScanCount              int64
	LastScanDate           time.Time
	Progress               float64 // 0..1
	ETA                    *time.Duration
}

// Scanner walks the music tree, diffs it against the persistent scan record
// and assembles new catalog snapshots. At most one scan runs at a time;
// concurrent triggers are coalesced via a try-lock
type Scanner struct {
	root          string
	recordPath    string
	coverCacheDir string

	parse  ParseFunc
	gain   *meta.GainAnalyzer // nil disables gain computation
	covers CoverMaterializer  // nil disables cover caching

	mu sync.Mutex // the scan mutex; TryLock, never Lock

	scanning    atomic.Bool
	initialDone atomic.Bool
	scanCount   atomic.Int64
	lastScan    atomic.Int64 // unix nanos, 0 = never
	progress    atomic.Int64 // per mille
	eta         atomic.Int64 // nanos, -1 = unknown
}

// NewScanner creates a scanner for the music tree at root. recordPath and
// coverCacheDir may be empty, which disables the scan record and the cover
// cache respectively
func NewScanner(root, recordPath, coverCacheDir string, parse ParseFunc, gain *meta.GainAnalyzer, covers CoverMaterializer) *Scanner {
	s := &Scanner{
		root:          root,
		recordPath:    recordPath,
		coverCacheDir: coverCacheDir,
		parse:         parse,
		gain:          gain,
		covers:        covers,
	}
	s.eta.Store(-1)
	return s
}

// Status returns the current scanner state
func (me *Scanner) Status() Status {
	st := Status{
		IsScanning:             me.scanning.Load(),
		IsInitialScanCompleted: me.initialDone.Load(),
		ScanCount:              me.scanCount.Load(),
		Progress:               float64(me.progress.Load()) / 1000,
	}
	if nanos := me.lastScan.Load(); nanos > 0 {
		st.LastScanDate = time.Unix(0, nanos)
	}
	if nanos := me.eta.Load(); nanos >= 0 {
		eta := time.Duration(nanos)
		st.ETA = &eta
	}
	return st
}

// Scan performs one scan and returns the new catalog snapshot. If a scan is
// already running, nil is returned immediately without waiting ("coalescing":
// the in-flight scan is sufficient). A fatal error on the root path aborts
// the scan without a snapshot
func (me *Scanner) Scan(ctx context.Context) (cat *Catalog, err error) {
	if !me.mu.TryLock() {
		log.Debug("scan already running, trigger coalesced")
		return nil, nil
	}
	defer me.mu.Unlock()

	me.scanning.Store(true)
	me.progress.Store(0)
	me.eta.Store(-1)
	defer me.scanning.Store(false)

	slog := log.WithFields(l.Fields{"scan": uuid.NewString()})
	start := time.Now()
	slog.Infof("scanning '%s' ...", me.root)

	prior := loadScanRecord(me.recordPath).byPath()

	audio, playlists, err := me.collect(slog)
	if err != nil {
		return nil, err
	}

	rec := &scanRecord{Root: me.root, ScanDate: start}
	total := len(audio) + len(playlists)
	done := 0
	step := func() {
		if total == 0 {
			return
		}
		done++
		me.progress.Store(int64(done * 1000 / total))
		elapsed := time.Since(start)
		me.eta.Store(int64(elapsed) * int64(total-done) / int64(done))
	}

	// indices, not element pointers: rec.Songs is still growing here and
	// every regrowth would strand pointers in the old backing array
	var needGain []int
	for _, path := range audio {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sr, fresh := me.scanAudioFile(ctx, slog, path, prior)
		if sr != nil {
			rec.Songs = append(rec.Songs, *sr)
			if fresh && me.gain != nil && sr.ReplayGainTrack == nil {
				needGain = append(needGain, len(rec.Songs)-1)
			}
		}
		step()
	}

	for _, path := range playlists {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		me.scanPlaylistFile(slog, path, rec)
		step()
	}

	me.computeGain(ctx, slog, rec, needGain)

	cat = buildCatalog(me.root, me.coverCacheDir, rec, start)
	me.materializeCovers(slog, cat)

	if err := rec.save(me.recordPath); err != nil {
		slog.Errorf("cannot persist scan record: %v", err)
	}

	me.scanCount.Add(1)
	me.lastScan.Store(start.UnixNano())
	me.initialDone.Store(true)
	me.progress.Store(1000)
	me.eta.Store(-1)

	slog.Infof("scanned %d songs, %d playlists in %v", len(rec.Songs), len(rec.Playlists), time.Since(start).Round(time.Millisecond))
	return cat, nil
}

// collect walks the tree and gathers the audio and playlist files to process.
// Legacy M3U playlists are converted to XSPF siblings on sight
func (me *Scanner) collect(slog *l.Entry) (audio, playlists []string, err error) {
	seen := make(map[string]struct{})

	err = filepath.WalkDir(me.root, func(path string, d os.DirEntry, werr error) error {
		if werr != nil {
			if path == me.root {
				return werr
			}
			slog.Warnf("cannot access '%s': %v", path, werr)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case config.IsAudioFile(path):
			audio = append(audio, path)
		case config.IsPlaylistFile(path):
			if config.Suffix(path) != "xspf" {
				xspf, _, cerr := playlist.ConvertM3U(path, time.Now())
				if cerr != nil {
					slog.Warnf("cannot convert legacy playlist '%s': %v", path, cerr)
					return nil
				}
				path = xspf
			}
			if _, dup := seen[path]; !dup {
				seen[path] = struct{}{}
				playlists = append(playlists, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot walk music directory '%s'", me.root)
	}

	sort.Strings(audio)
	sort.Strings(playlists)
	return
}

// scanAudioFile produces the song record of one audio file. If size and
// last-write time match the prior record, the prior tag data is reused and
// fresh is false; otherwise the file is parsed. A file that can neither be
// stated nor parsed is skipped (nil record)
func (me *Scanner) scanAudioFile(ctx context.Context, slog *l.Entry, path string, prior map[string]*songRecord) (sr *songRecord, fresh bool) {
	info, err := os.Stat(path)
	if err != nil {
		slog.Warnf("cannot stat '%s': %v", path, err)
		return nil, false
	}

	relPath, err := filepath.Rel(me.root, path)
	if err != nil {
		slog.Warnf("cannot relativize '%s': %v", path, err)
		return nil, false
	}
	relPath = filepath.ToSlash(relPath)

	if old, exists := prior[relPath]; exists && old.Size == info.Size() && old.LastWrite.Equal(info.ModTime()) {
		reused := *old
		me.lookupSidecars(path, relPath, &reused)
		return &reused, false
	}

	ps, err := me.parse(ctx, path)
	if err != nil {
		// bad tags are not fatal to the scan, the file is skipped
		slog.Warnf("skipping '%s': %v", path, err)
		return nil, false
	}

	sr = &songRecord{
		Path:             relPath,
		Size:             info.Size(),
		Created:          info.ModTime(),
		LastWrite:        info.ModTime(),
		Title:            ps.Title,
		Album:            ps.Album,
		Artist:           ps.Artist,
		AlbumArtist:      ps.AlbumArtist,
		Genre:            ps.Genre,
		Year:             ps.Year,
		Track:            ps.Track,
		Duration:         ps.Duration,
		Bitrate:          ps.Bitrate,
		EmbeddedLyrics:   ps.Lyrics,
		HasEmbeddedCover: ps.HasPicture,
		ISRC:             ps.ISRC,
		ReplayGainTrack:  ps.TrackGain,
		ReplayPeakTrack:  ps.TrackPeak,
		ReplayGainAlbum:  ps.AlbumGain,
		ReplayPeakAlbum:  ps.AlbumPeak,
	}
	if old, exists := prior[relPath]; exists {
		// the file changed but it is still the same file
		sr.Created = old.Created
	}
	me.lookupSidecars(path, relPath, sr)
	return sr, true
}

// lookupSidecars refreshes the external lyrics and cover references of the
// record. Sidecars are cheap to stat, so they are re-checked on every scan
// even for otherwise unchanged audio files
func (me *Scanner) lookupSidecars(absPath, relPath string, sr *songRecord) {
	trunk := strings.TrimSuffix(absPath, filepath.Ext(absPath))

	sr.LyricsPath = ""
	if info, err := os.Stat(trunk + ".lrc"); err == nil && !info.IsDir() {
		if rel, err := filepath.Rel(me.root, trunk+".lrc"); err == nil {
			sr.LyricsPath = filepath.ToSlash(rel)
		}
	}

	sr.CoverPath = ""
	sr.CoverLastWrite = time.Time{}
	dir := filepath.Dir(absPath)
	var candidates []string
	for _, base := range []string{"cover", "folder"} {
		for _, suffix := range config.CoverSuffixes() {
			candidates = append(candidates, filepath.Join(dir, base+"."+suffix))
		}
	}
	for _, suffix := range config.CoverSuffixes() {
		candidates = append(candidates, trunk+"."+suffix)
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(me.root, c)
		if err != nil {
			continue
		}
		sr.CoverPath = filepath.ToSlash(rel)
		sr.CoverLastWrite = info.ModTime()
		break
	}
}

// scanPlaylistFile parses one XSPF file into a playlist record. Parse
// failures are recorded as invalid playlists, the scan continues
func (me *Scanner) scanPlaylistFile(slog *l.Entry, path string, rec *scanRecord) {
	relPath, err := filepath.Rel(me.root, path)
	if err != nil {
		slog.Warnf("cannot relativize '%s': %v", path, err)
		return
	}
	relPath = filepath.ToSlash(relPath)

	doc, err := playlist.ParseFile(path)
	if err != nil {
		slog.Warnf("invalid playlist '%s': %v", path, err)
		rec.InvalidPlaylists = append(rec.InvalidPlaylists, invalidPlaylistRecord{Path: relPath, Reason: err.Error()})
		return
	}

	pr := playlistRecord{
		Path:    relPath,
		Name:    doc.DisplayName(path),
		Comment: doc.Annotation,
	}
	if info, err := os.Stat(path); err == nil {
		pr.Created = info.ModTime()
		pr.Changed = info.ModTime()
	}

	dir := filepath.Dir(path)
	for _, t := range doc.Tracks {
		loc := strings.TrimSpace(t.Location)
		if loc == "" {
			continue
		}
		// locations are relative to the playlist file, not the library root
		abs := loc
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(dir, filepath.FromSlash(loc))
		}
		rel, err := filepath.Rel(me.root, abs)
		if err != nil {
			slog.Warnf("playlist '%s' references '%s' outside the library", path, loc)
			continue
		}

		item := playlistItemRecord{Path: filepath.ToSlash(rel)}
		if added, ok := t.AddedTime(); ok {
			item.AddedAt = &added
		}
		if info, err := os.Stat(abs); err == nil {
			item.LastWrite = info.ModTime()
		}
		pr.Items = append(pr.Items, item)
	}

	rec.Playlists = append(rec.Playlists, pr)
}

// computeGain runs the ReplayGain analyzer for the freshly parsed songs that
// carry no track gain, addressed by their index into rec.Songs. Concurrency
// is bounded by the analyzer's semaphore; results flow into the snapshot
// under assembly. Each goroutine writes to its own record
func (me *Scanner) computeGain(ctx context.Context, slog *l.Entry, rec *scanRecord, idxs []int) {
	if me.gain == nil || len(idxs) == 0 {
		return
	}
	slog.Infof("computing ReplayGain for %d songs", len(idxs))

	var wg sync.WaitGroup
	for _, i := range idxs {
		wg.Add(1)
		go func(sr *songRecord) {
			defer wg.Done()
			path := filepath.Join(me.root, filepath.FromSlash(sr.Path))
			gain, peak, err := me.gain.Analyze(ctx, path)
			if err != nil {
				slog.Debugf("gain analysis failed for '%s': %v", path, err)
				return
			}
			sr.ReplayGainTrack = &gain
			sr.ReplayPeakTrack = &peak
		}(&rec.Songs[i])
	}
	wg.Wait()
}

// materializeCovers refreshes the cover cache files of the new snapshot.
// Write failures are swallowed: serving falls back to the source
func (me *Scanner) materializeCovers(slog *l.Entry, cat *Catalog) {
	if me.covers == nil {
		return
	}
	for _, ref := range cat.covers {
		if ref.CachePath == "" {
			continue
		}
		if err := me.covers.Materialize(ref.Path, ref.Embedded, ref.LastWrite, ref.CachePath); err != nil {
			slog.Debugf("cannot cache cover from '%s': %v", ref.Path, err)
		}
	}
}
