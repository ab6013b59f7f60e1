package guide

import "time"

const (
	timeSlotsPerDay = 48
	timeSlots       = 7 * timeSlotsPerDay
)

// BookmarkList owns every bookmark and tick for one data service.
//
// Two derived indexes keep candidate lookup near constant time: a title
// index for ordinary recurring-show matching, and a weekday/half-hour
// time index used to detect programmes sitting in a bookmark's usual
// slot under a different title. Both are maintained on every add and
// remove; a bookmark edit must go through RemoveBookmark/AddBookmark
// (or ReplaceBookmarks) so the indexes stay consistent.
type BookmarkList struct {
	bookmarks  []*Bookmark
	titleIndex map[string][]*Bookmark
	timeIndex  [timeSlots][]*Bookmark
	ticks      map[string][]*Tick

	// Channels resolves regional channel variants during import.
	// Optional; a nil resolver compares channel ids literally.
	Channels ChannelResolver

	// Change hooks, fired after any mutation. The owning catalog uses
	// them to mark cached programme matches dirty.
	OnBookmarksChanged func()
	OnTicksChanged     func()
}

func NewBookmarkList() *BookmarkList {
	return &BookmarkList{
		titleIndex: make(map[string][]*Bookmark),
		ticks:      make(map[string][]*Tick),
	}
}

func (l *BookmarkList) Bookmarks() []*Bookmark { return l.bookmarks }

func (l *BookmarkList) AddBookmark(b *Bookmark) { l.addBookmark(b, true) }

func (l *BookmarkList) addBookmark(b *Bookmark, notify bool) {
	l.bookmarks = append(l.bookmarks, b)
	l.titleIndex[b.IndexTitle()] = append(l.titleIndex[b.IndexTitle()], b)
	l.adjustTimeIndex(b, true)
	if notify {
		l.bookmarksChanged()
	}
}

// RemoveBookmark detaches b from the list, its indexes, and every
// programme currently matched to it.
func (l *BookmarkList) RemoveBookmark(b *Bookmark) {
	l.bookmarks = removeBookmark(l.bookmarks, b)
	title := b.IndexTitle()
	if rest := removeBookmark(l.titleIndex[title], b); len(rest) > 0 {
		l.titleIndex[title] = rest
	} else {
		delete(l.titleIndex, title)
	}
	l.adjustTimeIndex(b, false)
	b.clearProgrammes()
	l.bookmarksChanged()
}

// ReplaceBookmarks swaps in a whole new bookmark set, as after an edit
// session or a settings load.
func (l *BookmarkList) ReplaceBookmarks(bookmarks []*Bookmark) {
	l.ClearBookmarks()
	for _, b := range bookmarks {
		l.addBookmark(b, false)
	}
	l.bookmarksChanged()
}

func (l *BookmarkList) ClearBookmarks() {
	for _, b := range l.bookmarks {
		b.clearProgrammes()
	}
	l.bookmarks = nil
	l.titleIndex = make(map[string][]*Bookmark)
	for i := range l.timeIndex {
		l.timeIndex[i] = nil
	}
}

// AddTick marks the given programme as followed.
func (l *BookmarkList) AddTick(p *Programme) {
	tick := NewTick(p.Title(), p.Channel().ID(), p.Start)
	l.ticks[tick.Title] = append(l.ticks[tick.Title], tick)
	l.ticksChanged()
}

// RemoveTick removes the tick for the given programme, if present.
func (l *BookmarkList) RemoveTick(p *Programme) {
	ticks := l.ticks[p.Title()]
	for i, tick := range ticks {
		if tick.Start.Equal(p.Start) && tick.ChannelID == p.Channel().ID() {
			l.ticks[p.Title()] = append(ticks[:i], ticks[i+1:]...)
			break
		}
	}
	l.ticksChanged()
}

// Ticks returns every live tick, in no particular order.
func (l *BookmarkList) Ticks() []*Tick {
	var out []*Tick
	for _, ticks := range l.ticks {
		out = append(out, ticks...)
	}
	return out
}

// SetTicks replaces the tick set from persisted data, pruning entries
// older than the expiry threshold.
func (l *BookmarkList) SetTicks(ticks []*Tick, now time.Time) {
	l.ticks = make(map[string][]*Tick)
	for _, tick := range ticks {
		if tick.Expired(now) {
			continue
		}
		l.ticks[tick.Title] = append(l.ticks[tick.Title], tick)
	}
	l.ticksChanged()
}

func (l *BookmarkList) ClearTicks() {
	l.ticks = make(map[string][]*Tick)
}

func (l *BookmarkList) hasTick(t *Tick) bool {
	for _, tick := range l.ticks[t.Title] {
		if tick.Start.Equal(t.Start) && tick.ChannelID == t.ChannelID {
			return true
		}
	}
	return false
}

func (l *BookmarkList) bookmarksChanged() {
	if l.OnBookmarksChanged != nil {
		l.OnBookmarksChanged()
	}
}

func (l *BookmarkList) ticksChanged() {
	if l.OnTicksChanged != nil {
		l.OnTicksChanged()
	}
}

// slotOf maps a local datetime to its weekday/half-hour slot, 0..335.
func slotOf(t DateTime) int {
	return (t.Date.Weekday()-1)*timeSlotsPerDay + t.Clock.Slot()
}

// Candidates returns every bookmark plausibly relevant to p: those with
// an exact title match, plus those whose indexed weekday/time slots
// overlap the programme's own interval. The union is a superset of all
// bookmarks whose Match against p could be anything but NoMatch.
func (l *BookmarkList) Candidates(p *Programme) []*Bookmark {
	list := append([]*Bookmark(nil), l.titleIndex[p.IndexTitle()]...)

	// A programme whose start never parsed has no weekday, so there is
	// no slot to scan.
	if p.Start.Date.IsZero() {
		return list
	}

	// Scan the programme's time range to find bookmarks that may give
	// a failed match: same slot, different title.
	start := slotOf(p.Start)
	stop := slotOf(p.Stop)
	if stop < start {
		stop += timeSlots
	}
	for timeslot := start; timeslot < stop; timeslot++ {
		for _, b := range l.timeIndex[timeslot%timeSlots] {
			if !containsBookmark(list, b) {
				list = append(list, b)
			}
		}
	}
	return list
}

// Match classifies p against the whole list. Ticks take precedence over
// every bookmark rule. The candidate scan adopts the strongest result:
// a schedule-level hit (FullMatch, Overrun, Underrun) wins immediately,
// a TitleMatch is kept while the scan continues, and a ShouldMatch is
// kept only while nothing titled like the programme has matched.
func (l *BookmarkList) Match(p *Programme, options MatchOptions) (Match, *Bookmark) {
	for _, tick := range l.ticks[p.Title()] {
		if tick.Match(p) {
			return TickMatch, nil
		}
	}

	result := NoMatch
	var resultBookmark *Bookmark
	for _, b := range l.Candidates(p) {
		switch match := b.Match(p, options); match {
		case NoMatch:
		case ShouldMatch:
			if result != TitleMatch {
				result = ShouldMatch
				resultBookmark = b
			}
		case TitleMatch:
			result = TitleMatch
			resultBookmark = b
		default:
			return match, b
		}
	}
	return result, resultBookmark
}

// adjustTimeIndex adds or removes a bookmark's slots. For every weekday
// set in the mask, every half-hour slot the window spans is indexed;
// windows crossing midnight run past the end of the week and wrap back
// to Monday. Any-time bookmarks are skipped: they can never produce a
// failed match, which is all this index exists to find.
func (l *BookmarkList) adjustTimeIndex(b *Bookmark, add bool) {
	if b.AnyTime() {
		return
	}
	mask := b.DayOfWeekMask()
	for day := 1; day <= 7; day++ {
		if mask&(1<<day) == 0 {
			continue
		}
		start := b.StartTime().Slot()
		stop := b.StopTime().Slot()
		if stop < start {
			stop += timeSlotsPerDay
		}
		start += (day - 1) * timeSlotsPerDay
		stop += (day - 1) * timeSlotsPerDay
		for timeslot := start; timeslot < stop; timeslot++ {
			key := timeslot % timeSlots
			if add {
				l.timeIndex[key] = append(l.timeIndex[key], b)
			} else {
				l.timeIndex[key] = removeBookmark(l.timeIndex[key], b)
			}
		}
	}
}

func containsBookmark(list []*Bookmark, b *Bookmark) bool {
	for _, x := range list {
		if x == b {
			return true
		}
	}
	return false
}

func removeBookmark(list []*Bookmark, b *Bookmark) []*Bookmark {
	for i, x := range list {
		if x == b {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
