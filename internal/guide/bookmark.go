package guide

import (
	"sort"
	"strings"
)

// Match classifies how well a programme fits a bookmark or tick.
type Match int

const (
	NoMatch Match = iota
	FullMatch
	Overrun     // runs past the bookmark's stop time
	Underrun    // starts before the bookmark's start time
	TitleMatch  // title matches but the schedule does not
	ShouldMatch // occupies the slot but the title differs
	TickMatch   // matches the tick list
)

var matchNames = [...]string{
	NoMatch:     "NoMatch",
	FullMatch:   "FullMatch",
	Overrun:     "Overrun",
	Underrun:    "Underrun",
	TitleMatch:  "TitleMatch",
	ShouldMatch: "ShouldMatch",
	TickMatch:   "TickMatch",
}

func (m Match) String() string {
	if m >= 0 && int(m) < len(matchNames) {
		return matchNames[m]
	}
	return "Match(?)"
}

// severity ranks match results for the candidate-scan tie-break: a
// schedule hit beats a title-only hit beats a should-have-matched hit.
// Higher is stronger.
func (m Match) severity() int {
	switch m {
	case TickMatch:
		return 5
	case FullMatch:
		return 4
	case Overrun, Underrun:
		return 3
	case TitleMatch:
		return 2
	case ShouldMatch:
		return 1
	default:
		return 0
	}
}

// MatchOptions controls which partial results Match may report.
type MatchOptions int

const (
	// PartialMatches permits TitleMatch results; without it they are
	// reported as NoMatch.
	PartialMatches MatchOptions = 0x0001

	// NonMatching enables should-match detection: bookmarks whose title
	// differs from the programme's may report ShouldMatch when the
	// programme sits in their slot.
	NonMatching MatchOptions = 0x0002

	DefaultOptions = PartialMatches
)

// Day-of-week selectors for bookmarks. Monday..Sunday follow the ISO
// weekday numbering; DayMask marks a custom bitmask with no named form.
type DayOfWeek int

const (
	AnyDay DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
	MondayToFriday
	SaturdayAndSunday
	lastNamedDay           = SaturdayAndSunday
	DayMask      DayOfWeek = 32
)

// dayOfWeekMasks maps the named selectors to bitmasks where bit N is ISO
// weekday N (Monday=1 .. Sunday=7). Bit 0 is never used.
var dayOfWeekMasks = [...]int{
	0xFE, // AnyDay
	0x02, // Monday
	0x04, // Tuesday
	0x08, // Wednesday
	0x10, // Thursday
	0x20, // Friday
	0x40, // Saturday
	0x80, // Sunday
	0x3E, // MondayToFriday
	0xC0, // SaturdayAndSunday
}

var shortDayNames = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DayOfWeekMaskName renders a weekday bitmask compactly, combining three
// or more consecutive days into a Day1-DayN run.
func DayOfWeekMaskName(mask int) string {
	if mask&0xFE == 0xFE {
		return "Any day"
	}
	var b strings.Builder
	day := 1
	for day <= 7 {
		if mask&(1<<day) == 0 {
			day++
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if mask&(1<<(day+1)) != 0 && mask&(1<<(day+2)) != 0 {
			end := day + 2
			for mask&(1<<(end+1)) != 0 && end < 7 {
				end++
			}
			b.WriteString(shortDayNames[day])
			b.WriteByte('-')
			b.WriteString(shortDayNames[end])
			day = end + 1
		} else {
			b.WriteString(shortDayNames[day])
			day++
		}
	}
	return b.String()
}

// Bookmark is a user rule describing a recurring show: a title, an
// optional channel, a weekday selection, and a time window that may
// cross midnight (stop earlier than start).
type Bookmark struct {
	title      string
	indexTitle string
	channelID  string
	dayOfWeek  DayOfWeek
	dayMask    int
	startTime  Clock
	stopTime   Clock
	anyTime    bool
	color      string
	enabled    bool
	onAir      bool
	seasons    []Range
	years      []Range

	matched map[*Programme]struct{}
}

// NewBookmark returns an enabled bookmark matching any day and any
// channel.
func NewBookmark() *Bookmark {
	return &Bookmark{
		dayOfWeek: AnyDay,
		dayMask:   dayOfWeekMasks[AnyDay],
		enabled:   true,
		onAir:     true,
	}
}

// Copy returns a deep copy without the matched-programme set.
func (b *Bookmark) Copy() *Bookmark {
	nb := *b
	nb.matched = nil
	nb.seasons = append([]Range(nil), b.seasons...)
	nb.years = append([]Range(nil), b.years...)
	return &nb
}

func (b *Bookmark) Title() string      { return b.title }
func (b *Bookmark) IndexTitle() string { return b.indexTitle }

func (b *Bookmark) SetTitle(title string) {
	b.title = title
	b.indexTitle = strings.ToLower(title)
}

func (b *Bookmark) ChannelID() string      { return b.channelID }
func (b *Bookmark) SetChannelID(id string) { b.channelID = id }

func (b *Bookmark) DayOfWeek() DayOfWeek { return b.dayOfWeek }
func (b *Bookmark) DayOfWeekMask() int   { return b.dayMask }

// SetDayOfWeek selects a named weekday rule; anything out of range falls
// back to AnyDay.
func (b *Bookmark) SetDayOfWeek(day DayOfWeek) {
	if day < 0 || day > lastNamedDay {
		day = AnyDay
	}
	b.dayOfWeek = day
	b.dayMask = dayOfWeekMasks[day]
}

// SetDayOfWeekMask installs an explicit weekday bitmask, collapsing it
// back to the named selector when one exists.
func (b *Bookmark) SetDayOfWeekMask(mask int) {
	for day, m := range dayOfWeekMasks {
		if m == mask {
			b.dayOfWeek = DayOfWeek(day)
			b.dayMask = mask
			return
		}
	}
	b.dayOfWeek = DayMask
	b.dayMask = mask
}

// DayOfWeekName returns the compact human form of the weekday rule.
func (b *Bookmark) DayOfWeekName() string { return DayOfWeekMaskName(b.dayMask) }

func (b *Bookmark) StartTime() Clock     { return b.startTime }
func (b *Bookmark) SetStartTime(t Clock) { b.startTime = t }
func (b *Bookmark) StopTime() Clock      { return b.stopTime }
func (b *Bookmark) SetStopTime(t Clock)  { b.stopTime = t }

func (b *Bookmark) AnyTime() bool     { return b.anyTime }
func (b *Bookmark) SetAnyTime(v bool) { b.anyTime = v }
func (b *Bookmark) Color() string     { return b.color }
func (b *Bookmark) SetColor(c string) { b.color = c }
func (b *Bookmark) Enabled() bool     { return b.enabled }
func (b *Bookmark) SetEnabled(v bool) { b.enabled = v }
func (b *Bookmark) IsOnAir() bool     { return b.onAir }
func (b *Bookmark) SetOnAir(v bool)   { b.onAir = v }

// Seasons returns the canonical season specification, empty when the
// bookmark matches every season.
func (b *Bookmark) Seasons() string     { return FormatRanges(b.seasons) }
func (b *Bookmark) SeasonList() []Range { return b.seasons }

// SetSeasons installs a season filter from its string form. On a parse
// failure the previous filter is left untouched and false is returned.
func (b *Bookmark) SetSeasons(spec string) bool {
	ranges, ok := ParseRanges(spec)
	if !ok {
		return false
	}
	b.seasons = ranges
	return true
}

func (b *Bookmark) Years() string     { return FormatRanges(b.years) }
func (b *Bookmark) YearList() []Range { return b.years }

// SetYears installs a year filter, with the same failure contract as
// SetSeasons.
func (b *Bookmark) SetYears(spec string) bool {
	ranges, ok := ParseRanges(spec)
	if !ok {
		return false
	}
	b.years = ranges
	return true
}

// MatchedProgrammes returns the programmes currently matched to this
// bookmark, ordered by start time. Used for "other showings" reporting.
func (b *Bookmark) MatchedProgrammes() []*Programme {
	out := make([]*Programme, 0, len(b.matched))
	for p := range b.matched {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (b *Bookmark) addProgramme(p *Programme) {
	if b.matched == nil {
		b.matched = make(map[*Programme]struct{})
	}
	b.matched[p] = struct{}{}
}

func (b *Bookmark) removeProgramme(p *Programme) {
	delete(b.matched, p)
}

// clearProgrammes detaches every matched programme, for use before the
// bookmark is deleted.
func (b *Bookmark) clearProgrammes() {
	for p := range b.matched {
		p.bookmark = nil
		p.match = NoMatch
	}
	b.matched = nil
}

// Match classifies programme p against this bookmark.
//
// The working result starts at FullMatch and is demoted as checks fail.
// A title mismatch is normally fatal, but under the NonMatching option a
// candidate whose slot the programme occupies reports ShouldMatch
// instead, which is how moved shows are detected. A channel mismatch is
// the strongest demotion after title: whatever the time checks produce,
// the final result cannot exceed TitleMatch on the wrong channel.
//
// Time comparisons are wall-clock. When the bookmark's window crosses
// midnight and the programme starts in the pre-midnight tail, the
// weekday mask is rotated one day forward before validation, because
// the programme belongs to the next calendar day's slot.
func (b *Bookmark) Match(p *Programme, options MatchOptions) Match {
	result := FullMatch
	should := false
	channelMiss := false

	if !b.enabled {
		return NoMatch
	}

	if b.indexTitle != p.IndexTitle() {
		if options&NonMatching == 0 {
			return NoMatch
		}
		if b.channelID != "" && b.channelID != p.Channel().ID() {
			return NoMatch
		}
		should = true
		result = ShouldMatch
	} else {
		if season := p.Season; season > 0 && !rangesContain(b.seasons, season) {
			return NoMatch
		}
		if year := p.Year(); year > 0 && !rangesContain(b.years, year) {
			return NoMatch
		}
		if b.channelID != "" && b.channelID != p.Channel().ID() {
			channelMiss = true
			result = TitleMatch
		}
	}

	// Check that start and stop times are within the expected range.
	start := p.Start.Clock
	stop := p.Stop.Clock
	mask := b.dayMask
	if b.anyTime {
		// No window to drift against.
	} else if b.startTime.Before(b.stopTime) {
		if start.Before(b.startTime) {
			if stop.After(b.startTime) {
				result = Underrun
			} else {
				result = TitleMatch
			}
		} else if !start.Before(b.stopTime) {
			result = TitleMatch
		} else if stop.Before(b.startTime) || stop.After(b.stopTime) {
			result = Overrun
		}
	} else {
		if !start.Before(b.stopTime) && start.Before(b.startTime) {
			if stop.After(b.startTime) || !stop.After(b.stopTime) {
				result = Underrun
			} else if !stop.Before(b.stopTime) && stop.Before(start) {
				result = Underrun
			} else {
				result = TitleMatch
			}
		} else if start.Before(b.stopTime) {
			// Start time is in tomorrow; rotate the day mask left by
			// one position so the weekday check looks at the right day.
			mask = ((mask << 1) | (mask >> 6)) & 0xFE
			if stop.After(b.stopTime) {
				result = Overrun
			}
		} else {
			if stop.After(b.stopTime) && stop.Before(b.startTime) {
				result = Overrun
			}
		}
	}

	// Validate the weekday.
	weekday := p.Start.Date.Weekday()
	if mask&(1<<weekday) == 0 {
		result = TitleMatch
	}

	// A schedule-level result on the wrong channel is still only a
	// title match.
	if channelMiss && result.severity() > TitleMatch.severity() {
		result = TitleMatch
	}

	// Disallow partial title matches if not allowed by the option list.
	if options&PartialMatches == 0 && result == TitleMatch {
		result = NoMatch
	}

	// Deal with non-matching bookmarks that cover the same timeslot.
	if should && result != ShouldMatch {
		result = NoMatch
	}

	return result
}
