package playlist

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ushis/m3u"
)

// ConvertM3U converts the legacy M3U/M3U8 playlist at path into a sibling
// XSPF file. Each track gets addedAt = now. On success the legacy file is
// renamed to <path>.bak. If the sibling XSPF file already exists, the legacy
// file is left untouched and converted is false
func ConvertM3U(path string, now time.Time) (xspfPath string, converted bool, err error) {
	xspfPath = pathTrunk(path) + ".xspf"

	if _, serr := os.Stat(xspfPath); serr == nil {
		return xspfPath, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(err, "cannot open playlist file '%s'", path)
		return
	}
	defer f.Close()

	pl, err := m3u.Parse(f)
	if err != nil {
		err = errors.Wrapf(err, "cannot parse playlist file '%s'", path)
		return
	}

	doc := &Document{
		Title: filepath.Base(pathTrunk(path)),
	}
	for _, item := range pl {
		location := strings.TrimSpace(item.Path)
		if location == "" {
			continue
		}
		// locations in the legacy file are relative to the file itself; the
		// XSPF sibling lives in the same directory, so they are kept verbatim
		t := Track{Location: location, Title: item.Title}
		t.SetAddedTime(now)
		doc.Tracks = append(doc.Tracks, t)
	}

	if err = doc.WriteFile(xspfPath); err != nil {
		return
	}

	if err = os.Rename(path, path+".bak"); err != nil {
		err = errors.Wrapf(err, "cannot back up legacy playlist '%s'", path)
		return
	}

	log.Infof("converted legacy playlist '%s' to '%s'", path, xspfPath)
	return xspfPath, true, nil
}

// pathTrunk returns path without its suffix
func pathTrunk(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
