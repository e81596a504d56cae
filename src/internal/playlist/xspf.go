package playlist

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "playlist"})

// XSPF namespaces. Elements in any other namespace are not interpreted but
// preserved verbatim on write-back
const (
	XMLNS       = "http://xspf.org/ns/0/"
	ExtensionNS = "http://meziantou.net/xspf-extension/1/"
)

// addedAtLayout is the ISO-8601 round-trip format used for the addedAt
// extension value
const addedAtLayout = "2006-01-02T15:04:05.0000000Z07:00"

// Document is the parsed form of one XSPF file
type Document struct {
	Title      string
	Annotation string
	Extra      []RawXML // playlist-level foreign elements
	Tracks     []Track
}

// Track is one entry of an XSPF document. Location is kept verbatim, i.e.
// relative locations are relative to the XSPF file. AddedAt carries the raw
// extension value so that unchanged tracks round-trip byte-identically
type Track struct {
	Location string
	Title    string
	AddedAt  string   // raw addedAt value, empty if absent
	Extra    []RawXML // track-level foreign elements
}

// RawXML preserves an XML element this package does not own: its resolved
// name, its attributes and its inner XML, written back verbatim
type RawXML struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// shadow types for encoding/xml

type xmlDoc struct {
	XMLName    xml.Name   `xml:"http://xspf.org/ns/0/ playlist"`
	Version    string     `xml:"version,attr"`
	Title      string     `xml:"title,omitempty"`
	Annotation string     `xml:"annotation,omitempty"`
	Extra      []RawXML   `xml:",any"`
	Tracks     []xmlTrack `xml:"trackList>track"`
}

type xmlTrack struct {
	Location string   `xml:"location"`
	Title    string   `xml:"title,omitempty"`
	Extra    []RawXML `xml:",any"`
}

// extensionScan is used to pull addedAt values out of extension blocks
type extensionScan struct {
	AddedAt []string `xml:"addedAt"`
}

// AddedTime parses the raw addedAt value of the track
func (me *Track) AddedTime() (t time.Time, ok bool) {
	if me.AddedAt == "" {
		return
	}
	t, err := time.Parse(time.RFC3339Nano, me.AddedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetAddedTime sets the addedAt value of the track
func (me *Track) SetAddedTime(t time.Time) {
	me.AddedAt = t.Format(addedAtLayout)
}

// Parse reads an XSPF document from r
func Parse(r io.Reader) (doc *Document, err error) {
	var xd xmlDoc
	if err = xml.NewDecoder(r).Decode(&xd); err != nil {
		err = errors.Wrap(err, "cannot parse XSPF document")
		return
	}

	doc = &Document{
		Title:      xd.Title,
		Annotation: xd.Annotation,
		Extra:      xd.Extra,
	}
	for _, xt := range xd.Tracks {
		t := Track{
			Location: xt.Location,
			Title:    xt.Title,
		}
		t.AddedAt, t.Extra = splitOwnExtension(xt.Extra)
		doc.Tracks = append(doc.Tracks, t)
	}
	return
}

// ParseFile reads the XSPF file at path
func ParseFile(path string) (doc *Document, err error) {
	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(err, "cannot open playlist file '%s'", path)
		return
	}
	defer f.Close()

	if doc, err = Parse(f); err != nil {
		err = errors.Wrapf(err, "cannot parse playlist file '%s'", path)
	}
	return
}

// splitOwnExtension extracts the addedAt value from the extension blocks of
// a track. The block carrying it is consumed; all other elements are kept
// for write-back
func splitOwnExtension(extra []RawXML) (addedAt string, rest []RawXML) {
	for _, e := range extra {
		if e.XMLName.Local == "extension" && attrValue(e.Attrs, "application") == ExtensionNS {
			var scan extensionScan
			// wrap the inner XML so that multiple children parse fine
			wrapped := "<extension>" + e.Inner + "</extension>"
			if xml.Unmarshal([]byte(wrapped), &scan) == nil && len(scan.AddedAt) > 0 {
				addedAt = scan.AddedAt[0]
				continue
			}
		}
		rest = append(rest, e)
	}
	return
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Write serializes the document to w, re-emitting all foreign elements
func (me *Document) Write(w io.Writer) (err error) {
	xd := xmlDoc{
		Version:    "1",
		Title:      me.Title,
		Annotation: me.Annotation,
		Extra:      me.Extra,
	}
	for _, t := range me.Tracks {
		xt := xmlTrack{
			Location: t.Location,
			Title:    t.Title,
		}
		if t.AddedAt != "" {
			xt.Extra = append(xt.Extra, ownExtension(t.AddedAt))
		}
		xt.Extra = append(xt.Extra, t.Extra...)
		xd.Tracks = append(xd.Tracks, xt)
	}

	if _, err = io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(err, "cannot write XSPF document")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err = enc.Encode(&xd); err != nil {
		return errors.Wrap(err, "cannot write XSPF document")
	}
	return enc.Flush()
}

// WriteFile atomically writes the document to the XSPF file at path
// (write-temp-then-rename)
func (me *Document) WriteFile(path string) (err error) {
	var buf bytes.Buffer
	if err = me.Write(&buf); err != nil {
		return
	}

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "cannot write playlist file '%s'", path)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "cannot write playlist file '%s'", path)
	}
	return
}

// ownExtension builds the extension block carrying the addedAt value
func ownExtension(addedAt string) RawXML {
	var inner bytes.Buffer
	inner.WriteString(`<addedAt xmlns="` + ExtensionNS + `">`)
	_ = xml.EscapeText(&inner, []byte(addedAt))
	inner.WriteString(`</addedAt>`)
	return RawXML{
		XMLName: xml.Name{Space: XMLNS, Local: "extension"},
		Attrs:   []xml.Attr{{Name: xml.Name{Local: "application"}, Value: ExtensionNS}},
		Inner:   inner.String(),
	}
}

// DisplayName returns the name of the playlist: its title, or the base name
// of its file if the title is empty
func (me *Document) DisplayName(path string) string {
	if strings.TrimSpace(me.Title) != "" {
		return strings.TrimSpace(me.Title)
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
