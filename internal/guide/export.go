package guide

import (
	"encoding/xml"
	"io"
	"os"
	"sort"
	"time"
)

// ImportResult is the outcome of a bookmark import. These are distinct
// values rather than errors so callers can present a precise message.
type ImportResult int

const (
	ImportOK ImportResult = iota
	ImportNothingNew
	ImportCannotOpen
	ImportBadFormat
	ImportWrongService
)

var importResultNames = [...]string{
	ImportOK:           "ok",
	ImportNothingNew:   "nothing new",
	ImportCannotOpen:   "cannot open file",
	ImportBadFormat:    "unrecognized file format",
	ImportWrongService: "bookmarks belong to a different service",
}

func (r ImportResult) String() string {
	if r >= 0 && int(r) < len(importResultNames) {
		return importResultNames[r]
	}
	return "ImportResult(?)"
}

// ChannelResolver lets the bookmark list look up channels when
// normalizing regional variants. The catalog implements it.
type ChannelResolver interface {
	// Channel returns the channel with the given id, or nil.
	Channel(id string) *Channel

	// ActiveVariant maps a channel id to the visible regional variant
	// sharing the same common id, when the literal channel is hidden.
	// Unknown or already-visible ids map to themselves.
	ActiveVariant(id string) string
}

const wireTimestampLayout = "20060102150405 -0700"

type xmlBookmark struct {
	XMLName   xml.Name `xml:"bookmark"`
	Title     string   `xml:"title"`
	ChannelID string   `xml:"channel-id,omitempty"`
	DayOfWeek int      `xml:"day-of-week"`
	StartTime string   `xml:"start-time"`
	StopTime  string   `xml:"stop-time"`
	AnyTime   bool     `xml:"any-time"`
	Color     string   `xml:"color,omitempty"`
	Enabled   bool     `xml:"enabled"`
	Seasons   string   `xml:"seasons,omitempty"`
	Years     string   `xml:"years,omitempty"`
	OnAir     bool     `xml:"on-air"`
}

type xmlTick struct {
	XMLName   xml.Name `xml:"tick"`
	Title     string   `xml:"title"`
	ChannelID string   `xml:"channel-id"`
	Start     string   `xml:"start-time"`
	Timestamp string   `xml:"timestamp"`
}

type xmlBookmarkFile struct {
	XMLName   xml.Name      `xml:"bookmarks"`
	Service   string        `xml:"service,attr"`
	Bookmarks []xmlBookmark `xml:"bookmark"`
	Ticks     []xmlTick     `xml:"tick"`
}

func bookmarkToXML(b *Bookmark) xmlBookmark {
	return xmlBookmark{
		Title:     b.Title(),
		ChannelID: b.ChannelID(),
		DayOfWeek: b.DayOfWeekMask(),
		StartTime: b.StartTime().String(),
		StopTime:  b.StopTime().String(),
		AnyTime:   b.AnyTime(),
		Color:     b.Color(),
		Enabled:   b.Enabled(),
		Seasons:   b.Seasons(),
		Years:     b.Years(),
		OnAir:     b.IsOnAir(),
	}
}

func bookmarkFromXML(x xmlBookmark) *Bookmark {
	b := NewBookmark()
	b.SetTitle(x.Title)
	b.SetChannelID(x.ChannelID)
	b.SetDayOfWeekMask(x.DayOfWeek)
	if t, ok := ParseClock(x.StartTime); ok {
		b.SetStartTime(t)
	}
	if t, ok := ParseClock(x.StopTime); ok {
		b.SetStopTime(t)
	}
	b.SetAnyTime(x.AnyTime)
	b.SetColor(x.Color)
	b.SetEnabled(x.Enabled)
	b.SetSeasons(x.Seasons)
	b.SetYears(x.Years)
	b.SetOnAir(x.OnAir)
	return b
}

// Export writes every bookmark and tick as an XML document tagged with
// the originating service URL, so an import can refuse cross-service
// merges.
func (l *BookmarkList) Export(w io.Writer, serviceURL string) error {
	doc := xmlBookmarkFile{Service: serviceURL}
	for _, b := range l.bookmarks {
		doc.Bookmarks = append(doc.Bookmarks, bookmarkToXML(b))
	}
	ticks := l.Ticks()
	sort.Slice(ticks, func(i, j int) bool {
		if ticks[i].Title != ticks[j].Title {
			return ticks[i].Title < ticks[j].Title
		}
		return ticks[i].Start.Before(ticks[j].Start)
	})
	for _, t := range ticks {
		doc.Ticks = append(doc.Ticks, xmlTick{
			Title:     t.Title,
			ChannelID: t.ChannelID,
			Start:     FormatWireTime(t.Start),
			Timestamp: t.Timestamp.Format(wireTimestampLayout),
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ExportFile exports to a file path.
func (l *BookmarkList) ExportFile(path, serviceURL string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l.Export(f, serviceURL); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Import merges bookmarks and ticks from an exported document.
//
// The document's service attribute must equal serviceURL; otherwise
// nothing is merged and ImportWrongService is reported. Incoming
// bookmarks that duplicate an existing one are skipped; the equality
// deliberately ignores color, on-air, and regional channel variants,
// which are cosmetic. A parse error stops consumption early but keeps
// whatever was merged before it.
func (l *BookmarkList) Import(r io.Reader, serviceURL string) ImportResult {
	dec := xml.NewDecoder(r)

	// Locate the document element.
	var root xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			return ImportBadFormat
		}
		if se, ok := tok.(xml.StartElement); ok {
			root = se
			break
		}
	}
	if root.Name.Local != "bookmarks" {
		return ImportBadFormat
	}
	service := ""
	for _, attr := range root.Attr {
		if attr.Name.Local == "service" {
			service = attr.Value
		}
	}
	if service != serviceURL {
		return ImportWrongService
	}

	result := ImportOK
	imported := false
	now := time.Now()
parse:
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			result = ImportBadFormat
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "bookmark":
			var x xmlBookmark
			if err := dec.DecodeElement(&x, &se); err != nil {
				result = ImportBadFormat
				break parse
			}
			if l.importBookmark(bookmarkFromXML(x)) {
				imported = true
			}
		case "tick":
			var x xmlTick
			if err := dec.DecodeElement(&x, &se); err != nil {
				result = ImportBadFormat
				break parse
			}
			tick := &Tick{
				Title:     x.Title,
				ChannelID: x.ChannelID,
				Start:     ParseWireTime(x.Start, false),
			}
			if ts, err := time.Parse(wireTimestampLayout, x.Timestamp); err == nil {
				tick.Timestamp = ts
			} else {
				tick.Timestamp = now
			}
			if l.importTick(tick, now) {
				imported = true
			}
		default:
			if err := dec.Skip(); err != nil {
				result = ImportBadFormat
				break parse
			}
		}
	}

	// Entries merged before a parse error stay merged, so the change
	// hooks must still fire.
	if imported {
		l.bookmarksChanged()
		l.ticksChanged()
	} else if result == ImportOK {
		return ImportNothingNew
	}
	return result
}

// ImportFile imports from a file path.
func (l *BookmarkList) ImportFile(path, serviceURL string) ImportResult {
	f, err := os.Open(path)
	if err != nil {
		return ImportCannotOpen
	}
	defer f.Close()
	return l.Import(f, serviceURL)
}

// importBookmark adds nb unless an equivalent bookmark exists, and
// reports whether it was added. The accepted bookmark's channel id is
// normalized to the active regional variant.
func (l *BookmarkList) importBookmark(nb *Bookmark) bool {
	for _, b := range l.titleIndex[nb.IndexTitle()] {
		if b.DayOfWeekMask() == nb.DayOfWeekMask() &&
			b.StartTime() == nb.StartTime() &&
			b.StopTime() == nb.StopTime() &&
			b.AnyTime() == nb.AnyTime() &&
			b.Seasons() == nb.Seasons() &&
			b.Years() == nb.Years() &&
			l.sameChannelID(b.ChannelID(), nb.ChannelID()) {
			return false
		}
	}
	if l.Channels != nil && nb.ChannelID() != "" {
		nb.SetChannelID(l.Channels.ActiveVariant(nb.ChannelID()))
	}
	l.addBookmark(nb, false)
	return true
}

func (l *BookmarkList) importTick(t *Tick, now time.Time) bool {
	if t.Expired(now) || l.hasTick(t) {
		return false
	}
	l.ticks[t.Title] = append(l.ticks[t.Title], t)
	return true
}

// sameChannelID reports whether two channel ids refer to the same
// underlying channel, treating regional variants as equal.
func (l *BookmarkList) sameChannelID(a, b string) bool {
	if a == b {
		return true
	}
	if l.Channels == nil || a == "" || b == "" {
		return false
	}
	ca := l.Channels.Channel(a)
	cb := l.Channels.Channel(b)
	return ca != nil && ca.SameChannel(cb)
}
