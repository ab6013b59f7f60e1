package guide

import (
	"testing"
	"time"
)

func TestDateWeekday(t *testing.T) {
	tests := []struct {
		date Date
		want int
	}{
		{Date{2011, 7, 18}, 1}, // Monday
		{Date{2011, 7, 19}, 2},
		{Date{2011, 7, 23}, 6},
		{Date{2011, 7, 24}, 7}, // Sunday
		{Date{}, 0},
	}
	for _, tt := range tests {
		if got := tt.date.Weekday(); got != tt.want {
			t.Errorf("%v.Weekday() = %d, want %d", tt.date, got, tt.want)
		}
	}
}

func TestDateAddDays(t *testing.T) {
	d := Date{2011, 12, 30}
	if got := d.AddDays(3); got != (Date{2012, 1, 2}) {
		t.Errorf("AddDays(3) = %v", got)
	}
	if got := d.AddDays(-30); got != (Date{2011, 11, 30}) {
		t.Errorf("AddDays(-30) = %v", got)
	}
	if got := d.DaysTo(Date{2012, 1, 2}); got != 3 {
		t.Errorf("DaysTo = %d, want 3", got)
	}
}

func TestParseDate(t *testing.T) {
	if got := ParseDate("2011-07-19"); got != (Date{2011, 7, 19}) {
		t.Errorf("ParseDate = %v", got)
	}
	for _, bad := range []string{"", "2011-7-19", "2011/07/19", "2011-13-01", "2011-00-10", "yyyy-mm-dd"} {
		if got := ParseDate(bad); !got.IsZero() {
			t.Errorf("ParseDate(%q) = %v, want zero", bad, got)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"20:30", Clock{20, 30, 0}, true},
		{"00:00", Clock{}, true},
		{"11:45:23", Clock{11, 45, 23}, true},
		{"24:00", Clock{}, false},
		{"20:60", Clock{}, false},
		{"20.30", Clock{}, false},
		{"", Clock{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseClock(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseClock(%q) = %v, %v", tt.in, got, ok)
		}
	}
}

func TestClockSlot(t *testing.T) {
	tests := []struct {
		in   Clock
		want int
	}{
		{Clock{0, 0, 0}, 0},
		{Clock{0, 29, 0}, 0},
		{Clock{0, 30, 0}, 1},
		{Clock{20, 30, 0}, 41},
		{Clock{23, 59, 0}, 47},
	}
	for _, tt := range tests {
		if got := tt.in.Slot(); got != tt.want {
			t.Errorf("%v.Slot() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDateTimeOrdering(t *testing.T) {
	a := dt(2011, 7, 19, 23, 30)
	b := dt(2011, 7, 20, 0, 30)
	if !a.Before(b) || b.Before(a) {
		t.Error("date should dominate clock in DateTime ordering")
	}
	c := dt(2011, 7, 19, 23, 45)
	if !a.Before(c) || !c.After(a) {
		t.Error("same-day ordering should fall back to the clock")
	}
}

func TestParseWireTime(t *testing.T) {
	got := ParseWireTime("20110719203000 +1000", false)
	want := dt(2011, 7, 19, 20, 30)
	if got != want {
		t.Errorf("ParseWireTime = %v, want %v", got, want)
	}
	if got := ParseWireTime("2011071920", false); !got.IsZero() {
		t.Errorf("short input = %v, want zero", got)
	}
	if got := ParseWireTime("201107192030xx", false); !got.IsZero() {
		t.Errorf("bad seconds = %v, want zero", got)
	}
}

func TestFormatWireTime(t *testing.T) {
	in := DateTime{Date{2011, 7, 19}, Clock{20, 30, 15}}
	if got := FormatWireTime(in); got != "20110719203015" {
		t.Errorf("FormatWireTime = %q", got)
	}
	if got := ParseWireTime(FormatWireTime(in), false); got != in {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestParseWireTimestamp(t *testing.T) {
	got := ParseWireTimestamp("20110719203000 +1000")
	want := time.Date(2011, 7, 19, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseWireTimestamp = %v, want %v", got, want)
	}
	got = ParseWireTimestamp("20110719203000")
	want = time.Date(2011, 7, 19, 20, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("offset-less = %v, want %v", got, want)
	}
	if !ParseWireTimestamp("garbage").IsZero() {
		t.Error("malformed input should yield the zero time")
	}
}
