package guide

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestFixEpisodeNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		season int
	}{
		{"", "", 0},
		{"0.4.0/2", "1.5, Part 1", 1},
		{"12 . 3 . 1/4", "13.4, Part 2", 13},
		{"1.2", "2.3", 2},
		{"5", "6", 6},
		// The season comes from the first component that parses, not
		// component zero, so a leading empty or junk component is skipped.
		{".5.", "6", 6},
		{"0/13.4/26", "1.5", 1},
		{"junk.2", "3", 3},
	}
	for _, tt := range tests {
		got, season := fixEpisodeNumber(tt.in)
		if got != tt.want || season != tt.season {
			t.Errorf("fixEpisodeNumber(%q) = %q/%d, want %q/%d",
				tt.in, got, season, tt.want, tt.season)
		}
	}
}

func TestProgrammeYear(t *testing.T) {
	p := NewProgramme(NewChannel("FOO"))
	tests := []struct {
		date string
		want int
	}{
		{"2011", 2011},
		{"1900", 1900},
		{"1899", 0},
		{"July 2011", 0},
		{"", 0},
	}
	for _, tt := range tests {
		p.Date = tt.date
		if got := p.Year(); got != tt.want {
			t.Errorf("Year() with date %q = %d, want %d", tt.date, got, tt.want)
		}
	}
}

func TestProgrammeOverlaps(t *testing.T) {
	a := testProgramme(NewChannel("FOO"), "A", dt(2011, 7, 19, 20, 0), dt(2011, 7, 19, 21, 0))
	tests := []struct {
		start, stop DateTime
		want        bool
	}{
		{dt(2011, 7, 19, 20, 30), dt(2011, 7, 19, 21, 30), true},
		{dt(2011, 7, 19, 19, 0), dt(2011, 7, 19, 20, 30), true},
		{dt(2011, 7, 19, 21, 0), dt(2011, 7, 19, 22, 0), false},
		{dt(2011, 7, 19, 19, 0), dt(2011, 7, 19, 20, 0), false},
	}
	for _, tt := range tests {
		b := testProgramme(NewChannel("FOO"), "B", tt.start, tt.stop)
		if got := a.Overlaps(b); got != tt.want {
			t.Errorf("Overlaps(%v..%v) = %v, want %v", tt.start, tt.stop, got, tt.want)
		}
	}
}

func TestProgrammeDecodeXML(t *testing.T) {
	doc := `<programme start="20110719203000 +1000" stop="20110719213000 +1000" channel="FOO">
  <title>FooTime</title>
  <sub-title>The Reckoning</sub-title>
  <desc>An hour of foo.</desc>
  <date>2011</date>
  <credits>
    <director>Jo Director</director>
    <actor>Sam Actor</actor>
  </credits>
  <category>Drama</category>
  <rating><value>M</value></rating>
  <star-rating><value>3.5/5</value></star-rating>
  <episode-num system="onscreen">Ep 5</episode-num>
  <episode-num system="xmltv_ns">1.4.0/2</episode-num>
  <video><aspect>16:9</aspect></video>
  <previously-shown/>
</programme>`

	p := NewProgramme(NewChannel("FOO"))
	dec := xml.NewDecoder(strings.NewReader(doc))
	tok, err := dec.Token()
	if err != nil {
		t.Fatal(err)
	}
	if err := p.DecodeXML(dec, tok.(xml.StartElement)); err != nil {
		t.Fatalf("DecodeXML: %v", err)
	}

	if p.Title() != "FooTime" || p.IndexTitle() != "footime" {
		t.Errorf("title = %q/%q", p.Title(), p.IndexTitle())
	}
	if p.Start != dt(2011, 7, 19, 20, 30) || p.Stop != dt(2011, 7, 19, 21, 30) {
		t.Errorf("times = %v..%v", p.Start, p.Stop)
	}
	if p.SubTitle != "The Reckoning" || p.Description != "An hour of foo." {
		t.Errorf("sub-title/desc = %q/%q", p.SubTitle, p.Description)
	}
	if p.Year() != 2011 {
		t.Errorf("Year = %d", p.Year())
	}
	if len(p.Directors) != 1 || p.Directors[0] != "Jo Director" {
		t.Errorf("Directors = %v", p.Directors)
	}
	if p.Rating != "M" || p.StarRating != "3.5/5" {
		t.Errorf("ratings = %q/%q", p.Rating, p.StarRating)
	}
	if p.EpisodeNumber != "2.5, Part 1" || p.Season != 2 {
		t.Errorf("episode = %q season %d", p.EpisodeNumber, p.Season)
	}
	if p.AspectRatio != "16:9" {
		t.Errorf("aspect = %q", p.AspectRatio)
	}
	if !p.Repeat || p.Premiere {
		t.Errorf("repeat/premiere = %v/%v", p.Repeat, p.Premiere)
	}
}

func TestProgrammeDecodeXML_timezoneConversion(t *testing.T) {
	ch := NewChannel("FOO")
	ch.SetConvertTimezone(true)
	doc := `<programme start="20110719203000 +1000" stop="20110719213000 +1000" channel="FOO"><title>FooTime</title></programme>`
	p := NewProgramme(ch)
	dec := xml.NewDecoder(strings.NewReader(doc))
	tok, _ := dec.Token()
	if err := p.DecodeXML(dec, tok.(xml.StartElement)); err != nil {
		t.Fatalf("DecodeXML: %v", err)
	}
	want := ParseWireTime("20110719203000 +1000", true)
	if p.Start != want {
		t.Errorf("Start = %v, want %v (converted to local)", p.Start, want)
	}
}
