package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestConditionalGet_plain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Tue, 19 Jul 2011 10:00:00 GMT")
		w.Write([]byte("<tv/>"))
	}))
	defer srv.Close()

	res, err := ConditionalGet(context.Background(), srv.Client(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("ConditionalGet: %v", err)
	}
	if string(res.Body) != "<tv/>" {
		t.Errorf("body = %q", res.Body)
	}
	if res.ETag != `"v1"` {
		t.Errorf("ETag = %q", res.ETag)
	}
	if res.LastModified != "Tue, 19 Jul 2011 10:00:00 GMT" {
		t.Errorf("LastModified = %q", res.LastModified)
	}
}

func TestConditionalGet_contentEncodingGzip(t *testing.T) {
	body := gzipBytes(t, []byte("<tv>gzipped</tv>"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(body)
	}))
	defer srv.Close()

	res, err := ConditionalGet(context.Background(), srv.Client(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("ConditionalGet: %v", err)
	}
	if string(res.Body) != "<tv>gzipped</tv>" {
		t.Errorf("body = %q", res.Body)
	}
}

// Day documents are served as .xml.gz files; the gzip wrapper is part of
// the payload, not the transport encoding.
func TestConditionalGet_gzipFileBody(t *testing.T) {
	body := gzipBytes(t, []byte("<tv>day</tv>"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(body)
	}))
	defer srv.Close()

	res, err := ConditionalGet(context.Background(), srv.Client(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("ConditionalGet: %v", err)
	}
	if string(res.Body) != "<tv>day</tv>" {
		t.Errorf("body = %q", res.Body)
	}
}

func TestConditionalGet_brotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write([]byte("<tv>br</tv>")); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	res, err := ConditionalGet(context.Background(), srv.Client(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("ConditionalGet: %v", err)
	}
	if string(res.Body) != "<tv>br</tv>" {
		t.Errorf("body = %q", res.Body)
	}
}

func TestConditionalGet_notModified(t *testing.T) {
	var gotETag, gotModified string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	_, err := ConditionalGet(context.Background(), srv.Client(), srv.URL,
		`"v1"`, "Tue, 19 Jul 2011 10:00:00 GMT", "")
	if !errors.Is(err, ErrNotModified) {
		t.Fatalf("err = %v, want ErrNotModified", err)
	}
	if gotETag != `"v1"` {
		t.Errorf("If-None-Match = %q", gotETag)
	}
	if gotModified != "Tue, 19 Jul 2011 10:00:00 GMT" {
		t.Errorf("If-Modified-Since = %q", gotModified)
	}
}

// No validators, no conditional headers.
func TestConditionalGet_noValidators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			t.Error("conditional headers sent without stored validators")
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if _, err := ConditionalGet(context.Background(), srv.Client(), srv.URL, "", "", ""); err != nil {
		t.Fatalf("ConditionalGet: %v", err)
	}
}

func TestConditionalGet_userAgent(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx := context.Background()
	if _, err := ConditionalGet(ctx, srv.Client(), srv.URL, "", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := ConditionalGet(ctx, srv.Client(), srv.URL, "", "", "my-recorder/2.0"); err != nil {
		t.Fatal(err)
	}
	if len(agents) != 2 || agents[0] != DefaultUserAgent || agents[1] != "my-recorder/2.0" {
		t.Errorf("agents = %v", agents)
	}
}

func TestConditionalGet_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := ConditionalGet(context.Background(), srv.Client(), srv.URL, "", "", ""); err == nil {
		t.Fatal("want error on 500")
	}
}

func TestDecodeBody_unsupportedEncoding(t *testing.T) {
	if _, err := decodeBody([]byte("x"), "zstd"); err == nil {
		t.Error("want error for unsupported encoding")
	}
}
