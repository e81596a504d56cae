// Package art materializes cover art into a content-addressed file cache and
// serves cover bytes with the headers conditional requests need.
package art

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/meta"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "art"})

// Cache is the on-disk cover art cache. Cache files are keyed by cover ID and
// carry the last-write time of their source, which makes staleness a pure
// timestamp comparison
type Cache struct {
	dir string
}

// NewCache creates the cover cache in dir, creating the directory if needed
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "cannot create cover cache directory '%s'", dir)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory
func (me *Cache) Dir() string { return me.dir }

// Materialize refreshes the cache file at cachePath from its source. A cache
// file that is at least as new as the source is kept. After writing, the
// file's last-write time is forced equal to the source's
func (me *Cache) Materialize(srcPath string, embedded bool, srcLastWrite time.Time, cachePath string) error {
	if info, err := os.Stat(cachePath); err == nil && !info.ModTime().Before(srcLastWrite) {
		return nil
	}

	data, err := readSource(srcPath, embedded)
	if err != nil {
		return err
	}
	if data == nil {
		return errors.Errorf("'%s' carries no picture", srcPath)
	}

	tmp := cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "cannot write cover cache file '%s'", cachePath)
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "cannot write cover cache file '%s'", cachePath)
	}
	if err := os.Chtimes(cachePath, srcLastWrite, srcLastWrite); err != nil {
		log.Debugf("cannot set timestamp of '%s': %v", cachePath, err)
	}
	return nil
}

// Read returns the cover bytes and their last-modified time. The cache file
// is preferred; on a miss the bytes come from the source (the embedded
// picture of the audio file, or the sidecar image)
func Read(cachePath, srcPath string, embedded bool) (data []byte, lastModified time.Time, err error) {
	if cachePath != "" {
		if info, serr := os.Stat(cachePath); serr == nil {
			if data, err = os.ReadFile(cachePath); err == nil {
				return data, info.ModTime(), nil
			}
		}
	}

	if data, err = readSource(srcPath, embedded); err != nil {
		return nil, time.Time{}, err
	}
	if data == nil {
		return nil, time.Time{}, errors.Errorf("'%s' carries no picture", srcPath)
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "cannot stat '%s'", srcPath)
	}
	return data, info.ModTime(), nil
}

func readSource(srcPath string, embedded bool) ([]byte, error) {
	if embedded {
		return meta.ReadEmbeddedPicture(srcPath)
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read cover file '%s'", srcPath)
	}
	return data, nil
}

// image signatures
var (
	pngMagic  = []byte{0x89, 0x50, 0x4e, 0x47}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// Sniff returns the content type of the image bytes. Only PNG and JPEG are
// distinguished; anything else is served as image/jpeg
func Sniff(data []byte) string {
	if bytes.HasPrefix(data, pngMagic) {
		return "image/png"
	}
	if bytes.HasPrefix(data, jpegMagic) {
		return "image/jpeg"
	}
	return "image/jpeg"
}

// ServeConditional writes the cover bytes to w, honoring If-Modified-Since.
// HTTP timestamps have second granularity, hence the truncation
func ServeConditional(w http.ResponseWriter, r *http.Request, data []byte, lastModified time.Time) {
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !lastModified.Truncate(time.Second).After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Type", Sniff(data))
	_, _ = w.Write(data)
}

// CachePath returns the path of the cache file for the given cover ID
func (me *Cache) CachePath(coverID string) string {
	return filepath.Join(me.dir, coverID)
}
