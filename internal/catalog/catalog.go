// Package catalog owns the channel map for one guide service and the
// scheduler that keeps it filled: prioritized, throttled, cache-aware
// fetches of the service's per-day XMLTV documents.
package catalog

import (
	"encoding/xml"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/tvmark/tv-mark/internal/config"
	"github.com/tvmark/tv-mark/internal/guide"
	"github.com/tvmark/tv-mark/internal/metrics"
)

// matchOptions is what the re-match pass asks of the bookmark list:
// partial title matches for highlighting near-hits, plus should-match
// detection so moved shows are reported.
const matchOptions = guide.PartialMatches | guide.NonMatching

// Catalog is the aggregate for one guide service: every channel and its
// programmes, plus the service's bookmarks and ticks.
//
// Bookmark matches cached on programmes are recomputed lazily: bookmark
// or listings changes only mark the catalog dirty, and the next read
// through ProgrammesForDay or BookmarkedProgrammes triggers one full
// re-match pass. Edits during a burst of updates therefore cost one
// pass, not one per keystroke.
//
// mu guards channels and the bookmark list. The list itself is not
// safe for concurrent use, so access from more than one goroutine must
// go through the locking Catalog methods, not through Bookmarks().
type Catalog struct {
	mu         sync.Mutex
	serviceURL string
	channels   map[string]*guide.Channel
	bookmarks  *guide.BookmarkList
	hidden     map[string]bool
	convertTZ  bool
	matchDirty atomic.Bool
	metrics    *metrics.Collector

	// OnChannelsChanged fires when the channel index observably
	// changed; OnProgrammesChanged fires per channel after new
	// listings data arrived.
	OnChannelsChanged   func()
	OnProgrammesChanged func(channelID string)
}

func New(cfg *config.Config, m *metrics.Collector) *Catalog {
	c := &Catalog{
		serviceURL: cfg.ServiceURL,
		channels:   make(map[string]*guide.Channel),
		bookmarks:  guide.NewBookmarkList(),
		hidden:     make(map[string]bool),
		convertTZ:  cfg.ConvertTimezones,
		metrics:    m,
	}
	for _, id := range cfg.HiddenChannels {
		c.hidden[id] = true
	}
	c.bookmarks.Channels = resolver{c}
	c.bookmarks.OnBookmarksChanged = c.markDirty
	c.bookmarks.OnTicksChanged = c.markDirty
	return c
}

// resolver is the bookmark list's view of the channel map. List
// operations run with c.mu already held, so it must not relock.
type resolver struct{ c *Catalog }

func (r resolver) Channel(id string) *guide.Channel { return r.c.channels[id] }
func (r resolver) ActiveVariant(id string) string   { return r.c.activeVariantLocked(id) }

func (c *Catalog) ServiceURL() string             { return c.serviceURL }
func (c *Catalog) Bookmarks() *guide.BookmarkList { return c.bookmarks }

// Channel returns the channel with the given id, or nil. Part of the
// guide.ChannelResolver contract.
func (c *Catalog) Channel(id string) *guide.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[id]
}

// ActiveVariant maps a hidden channel id to the visible regional
// variant sharing its common id, per guide.ChannelResolver.
func (c *Catalog) ActiveVariant(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeVariantLocked(id)
}

func (c *Catalog) activeVariantLocked(id string) string {
	ch := c.channels[id]
	if ch == nil || !ch.Hidden() || ch.CommonID() == "" {
		return id
	}
	for _, other := range c.channels {
		if !other.Hidden() && other != ch && other.CommonID() == ch.CommonID() {
			return other.ID()
		}
	}
	return id
}

// Channels returns every known channel sorted by name.
func (c *Catalog) Channels() []*guide.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*guide.Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// ActiveChannels returns the visible channels sorted by name.
func (c *Catalog) ActiveChannels() []*guide.Channel {
	var out []*guide.Channel
	for _, ch := range c.Channels() {
		if !ch.Hidden() {
			out = append(out, ch)
		}
	}
	return out
}

// channelLocked returns the channel for id, synthesizing a placeholder
// when a programme or request references an id the index has not
// declared. Upstream listings commonly do this; rejecting the data
// would lose programmes.
func (c *Catalog) channelLocked(id string) *guide.Channel {
	ch := c.channels[id]
	if ch == nil {
		ch = guide.NewChannel(id)
		ch.SetHidden(c.hidden[id])
		ch.SetConvertTimezone(c.convertTZ)
		c.channels[id] = ch
	}
	return ch
}

// Reset drops every channel and its programmes, as on a service switch.
func (c *Catalog) Reset() {
	c.mu.Lock()
	for _, ch := range c.channels {
		ch.ClearProgrammes()
	}
	c.channels = make(map[string]*guide.Channel)
	c.matchDirty.Store(true)
	c.mu.Unlock()
	if c.OnChannelsChanged != nil {
		c.OnChannelsChanged()
	}
}

// Load consumes one XMLTV document, merging <channel> metadata and
// appending <programme> records to their channels' timelines. A parse
// error stops consumption early but keeps everything decoded before it;
// a single bad document never takes down the catalog.
func (c *Catalog) Load(r io.Reader) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	channelsChanged := false
	touched := make(map[string]bool)
	var parseErr error

	c.mu.Lock()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErr = err
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "tv":
			// Container element; descend into it.
		case "channel":
			id := attrValue(se, "id")
			if id == "" {
				if err := dec.Skip(); err != nil {
					parseErr = err
				}
				break
			}
			ch := c.channelLocked(id)
			changed, err := ch.DecodeXML(dec, se)
			if err != nil {
				parseErr = err
				break
			}
			if changed {
				channelsChanged = true
			}
		case "programme":
			id := attrValue(se, "channel")
			if id == "" {
				if err := dec.Skip(); err != nil {
					parseErr = err
				}
				break
			}
			ch := c.channelLocked(id)
			p := guide.NewProgramme(ch)
			if err := p.DecodeXML(dec, se); err != nil {
				parseErr = err
				break
			}
			if p.Title() == "" || p.Start.IsZero() || p.Stop.IsZero() {
				// Flag and drop; an unusable record is not fatal.
				log.Printf("catalog: ignoring malformed programme on channel %s", id)
				break
			}
			ch.AddProgramme(p)
			touched[id] = true
		default:
			if err := dec.Skip(); err != nil {
				parseErr = err
			}
		}
		if parseErr != nil {
			break
		}
	}
	for id := range touched {
		c.channels[id].TrimProgrammes()
		c.matchDirty.Store(true)
	}
	c.mu.Unlock()

	if channelsChanged && c.OnChannelsChanged != nil {
		c.OnChannelsChanged()
	}
	if c.OnProgrammesChanged != nil {
		for id := range touched {
			c.OnProgrammesChanged(id)
		}
	}
	if parseErr != nil {
		log.Printf("catalog: document parse stopped early: %v", parseErr)
	}
	return parseErr
}

// markDirty schedules a lazy re-match of every cached programme match.
// The bookmark list fires it as a change hook while c.mu is held, so
// the flag is atomic rather than guarded by the lock.
func (c *Catalog) markDirty() {
	c.matchDirty.Store(true)
}

// ensureMatchesLocked runs the full re-match pass when dirty.
func (c *Catalog) ensureMatchesLocked() {
	if !c.matchDirty.CompareAndSwap(true, false) {
		return
	}
	c.metrics.RecordMatchRun()
	for _, ch := range c.channels {
		for _, p := range ch.Programmes() {
			match, bookmark := c.bookmarks.Match(p, matchOptions)
			p.SetBookmark(bookmark, match)
			c.metrics.RecordMatchResult(match.String())
		}
	}
}

// RefreshMatches forces the lazy re-match pass to run now.
func (c *Catalog) RefreshMatches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureMatchesLocked()
}

// ProgrammesForDay returns a channel's programmes for the selected
// periods of a guide day, with cached bookmark matches up to date.
func (c *Catalog) ProgrammesForDay(channelID string, date guide.Date, periods guide.TimePeriods) []*guide.Programme {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.channels[channelID]
	if ch == nil {
		return nil
	}
	c.ensureMatchesLocked()
	return ch.ProgrammesForDay(date, periods)
}

// BookmarkedProgrammes returns every programme across all visible
// channels whose match is interesting, between first and last.
func (c *Catalog) BookmarkedProgrammes(first, last guide.Date) []*guide.Programme {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureMatchesLocked()
	var out []*guide.Programme
	for _, ch := range c.channels {
		if ch.Hidden() {
			continue
		}
		out = append(out, ch.BookmarkedProgrammes(first, last)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Channel().ID() < out[j].Channel().ID()
	})
	return out
}

// LoadBookmarks restores the persisted bookmark and tick set. A missing
// file is a clean first run.
func (c *Catalog) LoadBookmarks(path string) {
	c.mu.Lock()
	result := c.bookmarks.ImportFile(path, c.serviceURL)
	c.mu.Unlock()
	switch result {
	case guide.ImportOK, guide.ImportNothingNew, guide.ImportCannotOpen:
	default:
		log.Printf("catalog: loading bookmarks from %s: %s", path, result)
	}
}

// SaveBookmarks persists the bookmark and tick set.
func (c *Catalog) SaveBookmarks(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookmarks.ExportFile(path, c.serviceURL)
}

// ImportBookmarks merges a previously exported document from path.
func (c *Catalog) ImportBookmarks(path string) guide.ImportResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookmarks.ImportFile(path, c.serviceURL)
}

// ExportBookmarks writes the bookmark and tick set to w.
func (c *Catalog) ExportBookmarks(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookmarks.Export(w, c.serviceURL)
}

// Counts reports the number of bookmarks and ticks.
func (c *Catalog) Counts() (bookmarks, ticks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bookmarks.Bookmarks()), len(c.bookmarks.Ticks())
}

// PruneTicks drops ticks past the expiry threshold.
func (c *Catalog) PruneTicks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bookmarks.SetTicks(c.bookmarks.Ticks(), time.Now())
}

func attrValue(se xml.StartElement, name string) string {
	for _, attr := range se.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
