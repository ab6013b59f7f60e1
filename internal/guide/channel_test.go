package guide

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"
)

func timelineValid(t *testing.T, c *Channel) {
	t.Helper()
	progs := c.Programmes()
	for i := 1; i < len(progs); i++ {
		if progs[i].Start.Before(progs[i-1].Stop) {
			t.Fatalf("timeline overlap at %d: %v..%v then %v..%v", i,
				progs[i-1].Start, progs[i-1].Stop, progs[i].Start, progs[i].Stop)
		}
	}
}

func addProg(c *Channel, title string, start, stop DateTime) *Programme {
	p := NewProgramme(c)
	p.SetTitle(title)
	p.Start = start
	p.Stop = stop
	c.AddProgramme(p)
	return p
}

func TestAddProgramme_inOrder(t *testing.T) {
	c := NewChannel("FOO")
	addProg(c, "A", dt(2011, 7, 19, 6, 0), dt(2011, 7, 19, 7, 0))
	addProg(c, "B", dt(2011, 7, 19, 7, 0), dt(2011, 7, 19, 8, 0))
	addProg(c, "C", dt(2011, 7, 19, 8, 0), dt(2011, 7, 19, 9, 30))
	timelineValid(t, c)
	if got := len(c.Programmes()); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
}

func TestAddProgramme_replacesOverlaps(t *testing.T) {
	c := NewChannel("FOO")
	addProg(c, "A", dt(2011, 7, 19, 6, 0), dt(2011, 7, 19, 7, 0))
	addProg(c, "B", dt(2011, 7, 19, 7, 0), dt(2011, 7, 19, 8, 0))
	addProg(c, "C", dt(2011, 7, 19, 8, 0), dt(2011, 7, 19, 9, 0))

	// A listings update covering B and half of C displaces both.
	addProg(c, "Update", dt(2011, 7, 19, 7, 0), dt(2011, 7, 19, 8, 30))
	timelineValid(t, c)

	var titles []string
	for _, p := range c.Programmes() {
		titles = append(titles, p.Title())
	}
	want := []string{"A", "Update"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %v, want %v", titles, want)
		}
	}
}

func TestAddProgramme_outOfOrderInsert(t *testing.T) {
	c := NewChannel("FOO")
	addProg(c, "Late", dt(2011, 7, 19, 20, 0), dt(2011, 7, 19, 21, 0))
	// Cursor sits past "Late"; an earlier insert must still land in order.
	addProg(c, "Early", dt(2011, 7, 19, 6, 0), dt(2011, 7, 19, 7, 0))
	addProg(c, "Middle", dt(2011, 7, 19, 12, 0), dt(2011, 7, 19, 13, 0))
	timelineValid(t, c)
	if got := c.Programmes()[0].Title(); got != "Early" {
		t.Errorf("first programme = %q, want Early", got)
	}
	if got := len(c.Programmes()); got != 3 {
		t.Errorf("len = %d, want 3", got)
	}
}

func TestAddProgramme_replaceDetachesBookmark(t *testing.T) {
	c := NewChannel("FOO")
	old := addProg(c, "FooTime", dt(2011, 7, 19, 20, 30), dt(2011, 7, 19, 21, 30))

	b := NewBookmark()
	b.SetTitle("FooTime")
	old.SetBookmark(b, FullMatch)

	addProg(c, "FooTime", dt(2011, 7, 19, 20, 30), dt(2011, 7, 19, 21, 30))
	if m, bm := old.BookmarkMatch(); m != NoMatch || bm != nil {
		t.Errorf("displaced programme still carries a match: %v/%v", m, bm)
	}
	if len(b.MatchedProgrammes()) != 0 {
		t.Error("bookmark still references the displaced programme")
	}
}

func TestTrimProgrammes(t *testing.T) {
	c := NewChannel("FOO")
	c.AddDataFor(Date{2011, 7, 19}, time.Time{})
	c.AddDataFor(Date{2011, 7, 20}, time.Time{})

	addProg(c, "Old", dt(2011, 7, 10, 20, 0), dt(2011, 7, 10, 21, 0))
	addProg(c, "Edge", dt(2011, 7, 18, 23, 30), dt(2011, 7, 19, 0, 30))
	addProg(c, "Kept", dt(2011, 7, 19, 20, 0), dt(2011, 7, 19, 21, 0))
	addProg(c, "Future", dt(2011, 7, 25, 20, 0), dt(2011, 7, 25, 21, 0))

	if !c.TrimProgrammes() {
		t.Fatal("TrimProgrammes reported no change")
	}
	timelineValid(t, c)
	var titles []string
	for _, p := range c.Programmes() {
		titles = append(titles, p.Title())
	}
	// "Edge" stops inside the covered range, so it survives.
	if len(titles) != 2 || titles[0] != "Edge" || titles[1] != "Kept" {
		t.Errorf("titles after trim = %v", titles)
	}
	if c.TrimProgrammes() {
		t.Error("second trim should be a no-op")
	}
}

func TestProgrammesForDay(t *testing.T) {
	c := NewChannel("FOO")
	morning := addProg(c, "Breakfast", dt(2011, 7, 19, 7, 0), dt(2011, 7, 19, 9, 0))
	noonSpan := addProg(c, "Midday Movie", dt(2011, 7, 19, 11, 0), dt(2011, 7, 19, 13, 0))
	night := addProg(c, "Evening News", dt(2011, 7, 19, 18, 0), dt(2011, 7, 19, 18, 30))
	late := addProg(c, "Late Flick", dt(2011, 7, 20, 1, 0), dt(2011, 7, 20, 2, 30))

	check := func(periods TimePeriods, want ...*Programme) {
		t.Helper()
		got := c.ProgrammesForDay(Date{2011, 7, 19}, periods)
		if len(got) != len(want) {
			t.Fatalf("periods %#x: got %d programmes, want %d", periods, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("periods %#x: got[%d] = %q", periods, i, got[i].Title())
			}
		}
	}

	check(Morning, morning, noonSpan)
	check(Afternoon, noonSpan)
	check(Night, night)
	check(LateNight, late)
	check(AllPeriods, morning, noonSpan, night, late)
}

func TestBookmarkedProgrammes(t *testing.T) {
	c := NewChannel("FOO")
	hit := addProg(c, "FooTime", dt(2011, 7, 19, 20, 30), dt(2011, 7, 19, 21, 30))
	addProg(c, "Filler", dt(2011, 7, 19, 21, 30), dt(2011, 7, 19, 22, 0))
	outside := addProg(c, "FooTime", dt(2011, 7, 25, 20, 30), dt(2011, 7, 25, 21, 30))

	b := NewBookmark()
	b.SetTitle("FooTime")
	hit.SetBookmark(b, FullMatch)
	outside.SetBookmark(b, FullMatch)

	got := c.BookmarkedProgrammes(Date{2011, 7, 19}, Date{2011, 7, 20})
	if len(got) != 1 || got[0] != hit {
		t.Errorf("BookmarkedProgrammes = %d entries, want just the in-range hit", len(got))
	}
}

func TestDayURLs(t *testing.T) {
	c := NewChannel("FOO")
	c.SetBaseURLs([]string{"http://a.example/xmltv/"})
	urls := c.DayURLs(Date{2011, 7, 19})
	if len(urls) != 1 || urls[0] != "http://a.example/xmltv/FOO_2011-07-19.xml.gz" {
		t.Errorf("DayURLs = %v", urls)
	}

	// Missing trailing slash is repaired; mirrors all appear.
	c.SetBaseURLs([]string{"http://a.example/xmltv", "http://b.example/xmltv/"})
	urls = c.DayURLs(Date{2011, 7, 19})
	if len(urls) != 2 {
		t.Fatalf("DayURLs = %v", urls)
	}
	seen := map[string]bool{}
	for _, u := range urls {
		seen[u] = true
	}
	if !seen["http://a.example/xmltv/FOO_2011-07-19.xml.gz"] ||
		!seen["http://b.example/xmltv/FOO_2011-07-19.xml.gz"] {
		t.Errorf("DayURLs = %v", urls)
	}

	c.SetBaseURLs(nil)
	if got := c.DayURL(Date{2011, 7, 19}); got != "" {
		t.Errorf("DayURL with no base = %q", got)
	}
}

func TestChannelDecodeXML(t *testing.T) {
	doc := `<channel id="FOO">
  <display-name>FooTime</display-name>
  <base-url>http://a.example/xmltv/</base-url>
  <base-url>http://b.example/xmltv/</base-url>
  <datafor lastmodified="20110718220000 +1000">2011-07-19</datafor>
  <datafor lastmodified="20110718220000 +1000">2011-07-20</datafor>
  <icon src="http://a.example/icons/foo.png"/>
</channel>`

	c := NewChannel("FOO")
	dec := xml.NewDecoder(strings.NewReader(doc))
	tok, err := dec.Token()
	if err != nil {
		t.Fatal(err)
	}
	changed, err := c.DecodeXML(dec, tok.(xml.StartElement))
	if err != nil {
		t.Fatalf("DecodeXML: %v", err)
	}
	if !changed {
		t.Error("first decode should report a change")
	}
	if c.Name() != "FooTime" {
		t.Errorf("Name = %q", c.Name())
	}
	if len(c.BaseURLs()) != 2 {
		t.Errorf("BaseURLs = %v", c.BaseURLs())
	}
	if !c.HasDataFor(Date{2011, 7, 19}) || !c.HasDataFor(Date{2011, 7, 20}) {
		t.Error("datafor dates missing")
	}
	if c.HasDataFor(Date{2011, 7, 21}) {
		t.Error("undeclared date reported as covered")
	}
	wantLM := time.Date(2011, 7, 18, 12, 0, 0, 0, time.UTC)
	if !c.DayLastModified(Date{2011, 7, 19}).Equal(wantLM) {
		t.Errorf("DayLastModified = %v, want %v", c.DayLastModified(Date{2011, 7, 19}), wantLM)
	}
	if c.IconURL() != "http://a.example/icons/foo.png" {
		t.Errorf("IconURL = %q", c.IconURL())
	}

	// Decoding identical data again is not a change.
	dec = xml.NewDecoder(strings.NewReader(doc))
	tok, _ = dec.Token()
	changed, err = c.DecodeXML(dec, tok.(xml.StartElement))
	if err != nil {
		t.Fatalf("second DecodeXML: %v", err)
	}
	if changed {
		t.Error("identical decode should not report a change")
	}
}
