package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrjgit/news/internal/domain"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>First story</title>
      <link>https://example.com/1</link>
      <description>Short description</description>
      <pubDate>Mon, 31 Aug 2026 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second story</title>
      <link>https://example.com/2</link>
      <description>Another description</description>
      <pubDate>Mon, 31 Aug 2026 09:30:00 +0000</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://example.com/untitled</link>
    </item>
  </channel>
</rss>`

func TestRSSFetchBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	f, err := NewRSSFetcher(RSSConfig{
		Feeds: []Feed{{URL: srv.URL, Source: "Example", Category: domain.CategoryDomestic}},
	})
	if err != nil {
		t.Fatalf("NewRSSFetcher: %v", err)
	}

	items, err := f.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (untitled entry skipped)", len(items))
	}
	first := items[0]
	if first.Title != "First story" || first.Source != "Example" || first.Category != domain.CategoryDomestic {
		t.Errorf("unexpected item: %+v", first)
	}
	want := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", first.PublishedAt, want)
	}
}

func TestRSSToleratesPartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	f, err := NewRSSFetcher(RSSConfig{
		Feeds: []Feed{
			{URL: good.URL, Source: "Good", Category: domain.CategoryDomestic},
			{URL: bad.URL, Source: "Bad", Category: domain.CategoryInternational},
		},
	})
	if err != nil {
		t.Fatalf("NewRSSFetcher: %v", err)
	}

	items, err := f.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %d, want 2 from the healthy feed", len(items))
	}
}

func TestRSSAllFeedsFailed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	f, err := NewRSSFetcher(RSSConfig{
		Feeds: []Feed{{URL: bad.URL, Source: "Bad", Category: domain.CategoryDomestic}},
	})
	if err != nil {
		t.Fatalf("NewRSSFetcher: %v", err)
	}

	if _, err := f.FetchBatch(context.Background()); err == nil {
		t.Fatal("expected error when every feed fails")
	}
}

func TestRSSMaxPerFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	f, err := NewRSSFetcher(RSSConfig{
		Feeds:      []Feed{{URL: srv.URL, Source: "Example", Category: domain.CategoryDomestic}},
		MaxPerFeed: 1,
	})
	if err != nil {
		t.Fatalf("NewRSSFetcher: %v", err)
	}

	items, err := f.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}
}
