package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openStore(t)
	in := &Entry{
		URL:          "http://guide.example/FOO_2011-07-19.xml.gz",
		ChannelID:    "FOO",
		Day:          "2011-07-19",
		Body:         []byte("<tv/>"),
		ETag:         `"abc"`,
		LastModified: "Tue, 19 Jul 2011 10:00:00 GMT",
		FetchedAt:    time.Unix(1311069600, 0),
	}
	if err := s.Put(in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := s.Get(in.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out == nil {
		t.Fatal("Get returned nil for stored URL")
	}
	if out.ChannelID != in.ChannelID || out.Day != in.Day ||
		string(out.Body) != string(in.Body) ||
		out.ETag != in.ETag || out.LastModified != in.LastModified {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if !out.FetchedAt.Equal(in.FetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", out.FetchedAt, in.FetchedAt)
	}
}

func TestStoreGetAbsent(t *testing.T) {
	s := openStore(t)
	out, err := s.Get("http://guide.example/missing.xml")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out != nil {
		t.Errorf("Get absent = %+v, want nil", out)
	}
}

func TestStorePutReplaces(t *testing.T) {
	s := openStore(t)
	url := "http://guide.example/channels.xml"
	if err := s.Put(&Entry{URL: url, Body: []byte("old"), FetchedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(&Entry{URL: url, Body: []byte("new"), ETag: `"v2"`, FetchedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	out, err := s.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Body) != "new" || out.ETag != `"v2"` {
		t.Errorf("after replace: body=%q etag=%q", out.Body, out.ETag)
	}
}

func TestStoreExpireBefore(t *testing.T) {
	s := openStore(t)
	now := time.Now()
	entries := []*Entry{
		{URL: "u1", ChannelID: "FOO", Day: "2011-07-17", Body: []byte("a"), FetchedAt: now},
		{URL: "u2", ChannelID: "FOO", Day: "2011-07-18", Body: []byte("b"), FetchedAt: now},
		{URL: "u3", ChannelID: "FOO", Day: "2011-07-19", Body: []byte("c"), FetchedAt: now},
		{URL: "u4", Body: []byte("index"), FetchedAt: now}, // empty day, never expired
	}
	for _, e := range entries {
		if err := s.Put(e); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.ExpireBefore("2011-07-19")
	if err != nil {
		t.Fatalf("ExpireBefore: %v", err)
	}
	if n != 2 {
		t.Errorf("expired %d entries, want 2", n)
	}
	for url, want := range map[string]bool{"u1": false, "u2": false, "u3": true, "u4": true} {
		e, err := s.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		if (e != nil) != want {
			t.Errorf("%s present = %v, want %v", url, e != nil, want)
		}
	}
}

func TestStoreClear(t *testing.T) {
	s := openStore(t)
	if err := s.Put(&Entry{URL: "u1", Body: []byte("a"), FetchedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	e, err := s.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		t.Error("entry survived Clear")
	}
}
