// Package guide implements the TV-guide data model: channels and their
// programme timelines, user bookmarks with recurrence matching, and the
// indexes that make candidate lookup cheap.
//
// Dates and times of day are kept as plain wall-clock values. Guide data
// arrives stamped in the broadcaster's local time and almost every
// comparison the matcher performs is "does this clock time fall inside
// that window"; converting through time.Time on every comparison would
// buy nothing and cost a timezone lookup each call.
package guide

import (
	"fmt"
	"time"
)

// Date is a calendar date with no time-of-day or timezone attached.
// The zero value is the null date (failed parses yield it).
type Date struct {
	Year  int
	Month int
	Day   int
}

// Today returns the current local date.
func Today() Date {
	now := time.Now()
	return Date{now.Year(), int(now.Month()), now.Day()}
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) key() int { return d.Year*10000 + d.Month*100 + d.Day }

func (d Date) Before(o Date) bool { return d.key() < o.key() }
func (d Date) After(o Date) bool  { return d.key() > o.key() }

// Weekday returns the ISO day of week, Monday=1 through Sunday=7,
// or 0 for the null date.
func (d Date) Weekday() int {
	if d.IsZero() {
		return 0
	}
	wd := int(d.asTime().Weekday())
	if wd == 0 {
		wd = 7
	}
	return wd
}

func (d Date) AddDays(n int) Date {
	t := d.asTime().AddDate(0, 0, n)
	return Date{t.Year(), int(t.Month()), t.Day()}
}

// DaysTo returns the number of calendar days from d to o (negative if o
// is earlier).
func (d Date) DaysTo(o Date) int {
	return int(o.asTime().Sub(d.asTime()) / (24 * time.Hour))
}

func (d Date) asTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as ISO yyyy-MM-dd.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseDate parses an ISO yyyy-MM-dd date. The null date is returned for
// anything malformed.
func ParseDate(s string) Date {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return Date{}
	}
	y := parseField(s, 0, 4)
	m := parseField(s, 5, 2)
	dd := parseField(s, 8, 2)
	if y <= 0 || m < 1 || m > 12 || dd < 1 || dd > 31 {
		return Date{}
	}
	return Date{y, m, dd}
}

// Clock is a time of day. Comparisons are plain clock comparisons, so
// 00:35 sorts before 23:25; window logic that crosses midnight has to
// handle the wrap itself.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

func (c Clock) seconds() int { return c.Hour*3600 + c.Minute*60 + c.Second }

func (c Clock) Before(o Clock) bool { return c.seconds() < o.seconds() }
func (c Clock) After(o Clock) bool  { return c.seconds() > o.seconds() }

// Slot returns the half-hour slot of the day, 0..47.
func (c Clock) Slot() int { return c.Hour*2 + c.Minute/30 }

// String formats the clock as HH:MM:SS, or HH:MM when the seconds are zero.
func (c Clock) String() string {
	if c.Second == 0 {
		return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
	}
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock parses HH:MM or HH:MM:SS.
func ParseClock(s string) (Clock, bool) {
	if len(s) != 5 && len(s) != 8 {
		return Clock{}, false
	}
	if s[2] != ':' || (len(s) == 8 && s[5] != ':') {
		return Clock{}, false
	}
	c := Clock{Hour: parseField(s, 0, 2), Minute: parseField(s, 3, 2)}
	if len(s) == 8 {
		c.Second = parseField(s, 6, 2)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return Clock{}, false
	}
	return c, true
}

// DateTime is a local wall-clock instant: a Date plus a Clock.
type DateTime struct {
	Date  Date
	Clock Clock
}

func (t DateTime) IsZero() bool { return t.Date.IsZero() }

func (t DateTime) Before(o DateTime) bool {
	if t.Date != o.Date {
		return t.Date.Before(o.Date)
	}
	return t.Clock.Before(o.Clock)
}

func (t DateTime) After(o DateTime) bool { return o.Before(t) }

func (t DateTime) Equal(o DateTime) bool { return t == o }

func (t DateTime) String() string {
	return t.Date.String() + " " + t.Clock.String()
}

// ParseWireTime parses the XMLTV timestamp format "yyyyMMddhhmmss ±zzzz".
// The trailing offset is optional. When convert is false the offset is
// ignored and the literal clock time is kept verbatim; when true the
// instant is converted to local time first. Malformed input yields the
// zero DateTime.
func ParseWireTime(s string, convert bool) DateTime {
	if len(s) < 14 {
		return DateTime{}
	}
	year := parseField(s, 0, 4)
	month := parseField(s, 4, 2)
	day := parseField(s, 6, 2)
	hour := parseField(s, 8, 2)
	minute := parseField(s, 10, 2)
	second := parseField(s, 12, 2)
	if year <= 0 || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || minute < 0 || second < 0 {
		return DateTime{}
	}
	if convert {
		if off, ok := parseOffset(s[14:]); ok {
			t := time.Date(year, time.Month(month), day, hour, minute, second, 0,
				time.FixedZone("", off)).In(time.Local)
			return DateTime{
				Date:  Date{t.Year(), int(t.Month()), t.Day()},
				Clock: Clock{t.Hour(), t.Minute(), t.Second()},
			}
		}
	}
	return DateTime{
		Date:  Date{year, month, day},
		Clock: Clock{hour, minute, second},
	}
}

// FormatWireTime formats a DateTime as "yyyyMMddhhmmss". No offset is
// emitted; readers that convert timezones treat offset-less stamps as
// already local.
func FormatWireTime(t DateTime) string {
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d",
		t.Date.Year, t.Date.Month, t.Date.Day,
		t.Clock.Hour, t.Clock.Minute, t.Clock.Second)
}

// ParseWireTimestamp parses "yyyyMMddhhmmss ±zzzz" into an absolute
// time.Time, honouring the offset (UTC assumed when absent). Used for
// last-modified stamps where instants from different sources must
// compare equal. The zero time is returned for malformed input.
func ParseWireTimestamp(s string) time.Time {
	if len(s) < 14 {
		return time.Time{}
	}
	year := parseField(s, 0, 4)
	month := parseField(s, 4, 2)
	day := parseField(s, 6, 2)
	hour := parseField(s, 8, 2)
	minute := parseField(s, 10, 2)
	second := parseField(s, 12, 2)
	if year <= 0 || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || minute < 0 || second < 0 {
		return time.Time{}
	}
	off := 0
	if o, ok := parseOffset(s[14:]); ok {
		off = o
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0,
		time.FixedZone("", off)).UTC()
}

// parseOffset parses " ±hhmm" into seconds east of UTC.
func parseOffset(s string) (int, bool) {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	if len(s) < 5 || (s[0] != '+' && s[0] != '-') {
		return 0, false
	}
	hh := parseField(s, 1, 2)
	mm := parseField(s, 3, 2)
	if hh < 0 || mm < 0 {
		return 0, false
	}
	off := hh*3600 + mm*60
	if s[0] == '-' {
		off = -off
	}
	return off, true
}

// parseField reads a fixed-length decimal field, returning -1 on any
// non-digit.
func parseField(s string, pos, length int) int {
	value := 0
	for ; length > 0; length-- {
		if pos >= len(s) {
			return -1
		}
		ch := s[pos]
		if ch < '0' || ch > '9' {
			return -1
		}
		value = value*10 + int(ch-'0')
		pos++
	}
	return value
}
