package guide

import (
	"encoding/xml"
	"math/rand"
	"strings"
	"time"
)

// TimePeriods selects portions of a guide day. LateNight is the early
// morning of the following calendar date (midnight to 6am), which the
// guide presents as hours 24-30 of the requested day.
type TimePeriods int

const (
	Morning   TimePeriods = 1 << iota // 6am to 12pm
	Afternoon                         // 12pm to 6pm
	Night                             // 6pm to 12am
	LateNight                         // 12am to 6am the next day

	AllPeriods = Morning | Afternoon | Night | LateNight
)

type dayData struct {
	Date         Date
	LastModified time.Time
}

// Channel is one broadcast channel and its timeline of programmes.
//
// The timeline slice is kept in start-time order with no overlapping
// entries; the channel owns its programmes exclusively. Channels are
// created on first reference, either from the channel-index document or
// from a programme that names an id the index has not declared yet.
type Channel struct {
	id              string
	name            string
	numbers         []string
	baseURLs        []string
	dataFor         []dayData
	programmes      []*Programme
	lastInsert      int
	commonID        string
	hidden          bool
	convertTimezone bool
	iconURL         string
}

func NewChannel(id string) *Channel {
	return &Channel{id: id, name: id}
}

func (c *Channel) ID() string   { return c.id }
func (c *Channel) Name() string { return c.name }

func (c *Channel) SetName(name string) { c.name = name }

func (c *Channel) Numbers() []string         { return c.numbers }
func (c *Channel) SetNumbers(n []string)     { c.numbers = n }
func (c *Channel) BaseURLs() []string        { return c.baseURLs }
func (c *Channel) SetBaseURLs(urls []string) { c.baseURLs = urls }

func (c *Channel) CommonID() string      { return c.commonID }
func (c *Channel) SetCommonID(id string) { c.commonID = id }

func (c *Channel) Hidden() bool     { return c.hidden }
func (c *Channel) SetHidden(v bool) { c.hidden = v }

func (c *Channel) ConvertTimezone() bool     { return c.convertTimezone }
func (c *Channel) SetConvertTimezone(v bool) { c.convertTimezone = v }

func (c *Channel) IconURL() string { return c.iconURL }

// SameChannel reports whether o is this channel or a regional variant
// of it (same underlying broadcaster via the common id).
func (c *Channel) SameChannel(o *Channel) bool {
	if c == o {
		return true
	}
	return o != nil && c.commonID != "" && c.commonID == o.commonID
}

// AddDataFor records or updates the declared coverage for a date.
func (c *Channel) AddDataFor(date Date, lastModified time.Time) {
	for i := range c.dataFor {
		if c.dataFor[i].Date == date {
			c.dataFor[i].LastModified = lastModified
			return
		}
	}
	c.dataFor = append(c.dataFor, dayData{date, lastModified})
}

// HasDataFor reports whether the source declares listings for date.
// Without any declarations a rolling two-week window either side of
// today is assumed.
func (c *Channel) HasDataFor(date Date) bool {
	if len(c.dataFor) == 0 {
		today := Today()
		return !date.Before(today.AddDays(-14)) && !date.After(today.AddDays(14))
	}
	for _, d := range c.dataFor {
		if d.Date == date {
			return true
		}
	}
	return false
}

// DataForRange returns the first and last dates with declared coverage,
// falling back to today plus or minus two weeks.
func (c *Channel) DataForRange() (first, last Date) {
	if len(c.dataFor) == 0 {
		today := Today()
		return today.AddDays(-14), today.AddDays(14)
	}
	first, last = c.dataFor[0].Date, c.dataFor[0].Date
	for _, d := range c.dataFor[1:] {
		if d.Date.Before(first) {
			first = d.Date
		}
		if d.Date.After(last) {
			last = d.Date
		}
	}
	return first, last
}

// DayLastModified returns the declared last-modified stamp for a date,
// or the zero time when unknown.
func (c *Channel) DayLastModified(date Date) time.Time {
	for _, d := range c.dataFor {
		if d.Date == date {
			return d.LastModified
		}
	}
	return time.Time{}
}

// DayURLs returns the fetch URLs for one day document, one per base
// URL. The list is shuffled when there is more than one base URL to
// spread load across mirrors.
func (c *Channel) DayURLs(date Date) []string {
	if len(c.baseURLs) == 0 || c.id == "" {
		return nil
	}
	urls := make([]string, 0, len(c.baseURLs))
	for _, base := range c.baseURLs {
		if base == "" {
			continue
		}
		if base[len(base)-1] != '/' {
			base += "/"
		}
		urls = append(urls, base+c.id+"_"+date.String()+".xml.gz")
	}
	if len(urls) > 1 {
		rand.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })
	}
	return urls
}

// DayURL returns the preferred fetch URL for a day document, or "".
func (c *Channel) DayURL(date Date) string {
	urls := c.DayURLs(date)
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

func (c *Channel) Programmes() []*Programme { return c.programmes }

// AddProgramme inserts p into the timeline, replacing any existing
// programmes whose interval overlaps it. Overlaps are listings updates
// for the same slot, not errors. The insertion cursor makes the common
// case of day documents arriving in chronological order O(1) amortized.
func (c *Channel) AddProgramme(p *Programme) {
	p.channel = c

	i := c.lastInsert
	if i > len(c.programmes) {
		i = 0
	}
	if i > 0 && p.Start.Before(c.programmes[i-1].Stop) {
		// The new programme belongs somewhere before the cursor.
		i = 0
	}
	for i < len(c.programmes) && !p.Start.Before(c.programmes[i].Stop) {
		i++
	}
	j := i
	for j < len(c.programmes) && c.programmes[j].Start.Before(p.Stop) {
		c.programmes[j].detach()
		j++
	}
	c.programmes = append(c.programmes[:i], append([]*Programme{p}, c.programmes[j:]...)...)
	c.lastInsert = i + 1
}

// TrimProgrammes drops programmes outside the covered date range and
// reports whether anything was removed.
func (c *Channel) TrimProgrammes() bool {
	first, last := c.DataForRange()
	kept := c.programmes[:0]
	changed := false
	for _, p := range c.programmes {
		if !first.After(p.Stop.Date) && !last.Before(p.Start.Date) {
			kept = append(kept, p)
		} else {
			p.detach()
			changed = true
		}
	}
	c.programmes = kept
	c.lastInsert = 0
	return changed
}

// ClearProgrammes empties the timeline, detaching every programme from
// its matched bookmark.
func (c *Channel) ClearProgrammes() {
	for _, p := range c.programmes {
		p.detach()
	}
	c.programmes = nil
	c.lastInsert = 0
}

// ProgrammesForDay returns the programmes overlapping the selected
// periods of a guide day, in timeline order.
func (c *Channel) ProgrammesForDay(date Date, periods TimePeriods) []*Programme {
	morning := DateTime{date, Clock{6, 0, 0}}
	afternoon := DateTime{date, Clock{12, 0, 0}}
	night := DateTime{date, Clock{18, 0, 0}}
	lateNight := DateTime{date.AddDays(1), Clock{0, 0, 0}}
	lateEnd := DateTime{date.AddDays(1), Clock{6, 0, 0}}

	var list []*Programme
	for _, p := range c.programmes {
		candidate := false
		if periods&Morning != 0 && p.Start.Before(afternoon) && p.Stop.After(morning) {
			candidate = true
		}
		if periods&Afternoon != 0 && p.Start.Before(night) && p.Stop.After(afternoon) {
			candidate = true
		}
		if periods&Night != 0 && p.Start.Before(lateNight) && p.Stop.After(night) {
			candidate = true
		}
		if periods&LateNight != 0 && p.Start.Before(lateEnd) && p.Stop.After(lateNight) {
			candidate = true
		}
		if candidate {
			list = append(list, p)
		}
	}
	return list
}

// BookmarkedProgrammes returns the programmes between 6am on first and
// 6am the day after last whose cached bookmark match is interesting.
func (c *Channel) BookmarkedProgrammes(first, last Date) []*Programme {
	startTime := DateTime{first, Clock{6, 0, 0}}
	stopTime := DateTime{last.AddDays(1), Clock{6, 0, 0}}
	var list []*Programme
	for _, p := range c.programmes {
		inRange := (!p.Start.Before(startTime) && p.Start.Before(stopTime)) ||
			(p.Stop.After(startTime) && !p.Stop.After(stopTime))
		if !inRange {
			continue
		}
		if m, _ := p.BookmarkMatch(); m != NoMatch {
			list = append(list, p)
		}
	}
	return list
}

// xmlChannel mirrors one guide <channel> element.
type xmlChannel struct {
	ID          string   `xml:"id,attr"`
	CommonID    string   `xml:"common-id,attr"`
	DisplayName string   `xml:"display-name"`
	BaseURLs    []string `xml:"base-url"`
	DataFor     []struct {
		LastModified string `xml:"lastmodified,attr"`
		Date         string `xml:",chardata"`
	} `xml:"datafor"`
	Icon struct {
		Src string `xml:"src,attr"`
	} `xml:"icon"`
}

// DecodeXML updates the channel from a <channel> element and reports
// whether anything observable changed, so callers can avoid spurious
// re-notification.
func (c *Channel) DecodeXML(dec *xml.Decoder, start xml.StartElement) (bool, error) {
	var x xmlChannel
	if err := dec.DecodeElement(&x, &start); err != nil {
		return false, err
	}
	changed := false
	if x.ID != "" {
		c.id = x.ID
	}
	if c.commonID != x.CommonID {
		c.commonID = x.CommonID
		changed = true
	}
	name := x.DisplayName
	if name == "" {
		name = c.id
	}
	if c.name != name {
		c.name = name
		changed = true
	}
	if !equalStrings(c.baseURLs, x.BaseURLs) {
		c.baseURLs = x.BaseURLs
		changed = true
	}
	oldData := c.dataFor
	c.dataFor = nil
	for _, df := range x.DataFor {
		date := ParseDate(strings.TrimSpace(df.Date))
		if date.IsZero() {
			continue
		}
		c.AddDataFor(date, ParseWireTimestamp(df.LastModified))
	}
	if !equalDayData(oldData, c.dataFor) {
		changed = true
	}
	if c.iconURL != x.Icon.Src {
		c.iconURL = x.Icon.Src
		changed = true
	}
	return changed, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalDayData(a, b []dayData) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Date != b[i].Date || !a[i].LastModified.Equal(b[i].LastModified) {
			return false
		}
	}
	return true
}
