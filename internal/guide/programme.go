package guide

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// Programme is one scheduled broadcast on a channel's timeline.
//
// The natural key is (channel, start, stop, title); everything else is
// descriptive metadata carried through from the listings document. Each
// programme also caches the bookmark-match result computed by the
// owning service's bookmark list, so the read path never re-scans
// unless the list has been marked dirty.
type Programme struct {
	channel    *Channel
	title      string
	indexTitle string

	Start DateTime
	Stop  DateTime

	SubTitle         string
	Description      string
	Date             string
	Directors        []string
	Actors           []string
	Presenters       []string
	Categories       []string
	Rating           string
	StarRating       string
	EpisodeNumber    string
	Season           int
	Language         string
	OriginalLanguage string
	Country          string
	AspectRatio      string
	Premiere         bool
	Repeat           bool
	Movie            bool

	bookmark *Bookmark
	match    Match
}

func NewProgramme(channel *Channel) *Programme {
	return &Programme{channel: channel}
}

func (p *Programme) Channel() *Channel  { return p.channel }
func (p *Programme) Title() string      { return p.title }
func (p *Programme) IndexTitle() string { return p.indexTitle }

func (p *Programme) SetTitle(title string) {
	p.title = title
	p.indexTitle = strings.ToLower(title)
}

// Year returns the production year from the date field, or 0 when the
// field is absent or not a plausible year.
func (p *Programme) Year() int {
	yr, err := strconv.Atoi(p.Date)
	if err != nil || yr < 1900 {
		return 0
	}
	return yr
}

// Overlaps reports whether the [Start,Stop) intervals of p and o
// intersect.
func (p *Programme) Overlaps(o *Programme) bool {
	return p.Start.Before(o.Stop) && o.Start.Before(p.Stop)
}

// BookmarkMatch returns the cached match classification and the matched
// bookmark, if any.
func (p *Programme) BookmarkMatch() (Match, *Bookmark) { return p.match, p.bookmark }

// SetBookmark records the match result, keeping the bookmark's
// reverse-lookup set in step.
func (p *Programme) SetBookmark(b *Bookmark, match Match) {
	if p.bookmark != b {
		if p.bookmark != nil {
			p.bookmark.removeProgramme(p)
		}
		if b != nil {
			b.addProgramme(p)
		}
		p.bookmark = b
	}
	p.match = match
}

// ClearBookmarkMatch drops the cached result without touching any
// reverse set. Used when the owning bookmark is already detaching.
func (p *Programme) ClearBookmarkMatch() {
	p.bookmark = nil
	p.match = NoMatch
}

// detach removes the programme from its matched bookmark's reverse set.
// Called when the programme leaves its channel's timeline.
func (p *Programme) detach() {
	if p.bookmark != nil {
		p.bookmark.removeProgramme(p)
		p.bookmark = nil
	}
	p.match = NoMatch
}

// xmlProgramme mirrors one XMLTV <programme> element.
type xmlProgramme struct {
	Start       string   `xml:"start,attr"`
	Stop        string   `xml:"stop,attr"`
	Channel     string   `xml:"channel,attr"`
	Title       string   `xml:"title"`
	SubTitle    string   `xml:"sub-title"`
	Desc        string   `xml:"desc"`
	Date        string   `xml:"date"`
	Directors   []string `xml:"credits>director"`
	Actors      []string `xml:"credits>actor"`
	Presenters  []string `xml:"credits>presenter"`
	Categories  []string `xml:"category"`
	Rating      string   `xml:"rating>value"`
	StarRating  string   `xml:"star-rating>value"`
	EpisodeNums []struct {
		System string `xml:"system,attr"`
		Value  string `xml:",chardata"`
	} `xml:"episode-num"`
	Language     string    `xml:"language"`
	OrigLanguage string    `xml:"orig-language"`
	Country      string    `xml:"country"`
	Aspect       string    `xml:"video>aspect"`
	Premiere     *struct{} `xml:"premiere"`
	PrevShown    *struct{} `xml:"previously-shown"`
}

// DecodeXML populates the programme from a <programme> element. Start
// and stop timestamps honour the channel's timezone-conversion flag.
func (p *Programme) DecodeXML(dec *xml.Decoder, start xml.StartElement) error {
	var x xmlProgramme
	if err := dec.DecodeElement(&x, &start); err != nil {
		return err
	}
	convert := p.channel != nil && p.channel.convertTimezone
	p.Start = ParseWireTime(x.Start, convert)
	p.Stop = ParseWireTime(x.Stop, convert)
	p.SetTitle(x.Title)
	p.SubTitle = x.SubTitle
	p.Description = x.Desc
	p.Date = strings.TrimSpace(x.Date)
	p.Directors = x.Directors
	p.Actors = x.Actors
	p.Presenters = x.Presenters
	p.Categories = x.Categories
	p.Rating = x.Rating
	p.StarRating = x.StarRating
	p.Language = x.Language
	p.OriginalLanguage = x.OrigLanguage
	p.Country = x.Country
	p.AspectRatio = x.Aspect
	p.Premiere = x.Premiere != nil
	p.Repeat = x.PrevShown != nil
	for _, en := range x.EpisodeNums {
		if en.System == "xmltv_ns" {
			p.EpisodeNumber, p.Season = fixEpisodeNumber(strings.TrimSpace(en.Value))
		}
	}
	for _, cat := range x.Categories {
		if cat == "Movie" || cat == "Movies" {
			p.Movie = true
		}
	}
	return nil
}

// fixEpisodeNumber converts an xmltv_ns "season.episode.part" value
// (zero-based, each component optionally "n/total") into the one-based
// display form, returning it with the derived season number. The third
// component renders as ", Part N".
func fixEpisodeNumber(str string) (string, int) {
	var b strings.Builder
	season := 0
	needDot := false
	for index, comp := range strings.Split(str, ".") {
		if slash := strings.IndexByte(comp, '/'); slash >= 0 {
			comp = comp[:slash]
		}
		comp = strings.TrimSpace(comp)
		if comp == "" {
			continue
		}
		n, err := strconv.Atoi(comp)
		if err != nil {
			continue
		}
		if needDot {
			if index == 2 {
				b.WriteString(", Part ")
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString(strconv.Itoa(n + 1))
		if !needDot {
			season = n + 1
		}
		needDot = true
	}
	return b.String(), season
}
