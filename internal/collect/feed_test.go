package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

func rssFeed(items ...string) string {
	body := ""
	for _, it := range items {
		body += it
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel><title>Test Feed</title><link>https://example.com</link><description>t</description>` +
		body + `</channel></rss>`
}

func rssItem(link, title string, pub time.Time) string {
	return fmt.Sprintf(`<item>
<title>%s</title>
<link>%s</link>
<description>&lt;p&gt;Summary of &lt;b&gt;%s&lt;/b&gt;&lt;/p&gt;</description>
<dc:creator>Jane Reporter</dc:creator>
<enclosure url="%s.jpg" type="image/jpeg" length="100"/>
<pubDate>%s</pubDate>
</item>`, title, link, title, link, pub.Format(time.RFC1123Z))
}

func TestParseAllAssignsCategory(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tech.xml":
			fmt.Fprint(w, rssFeed(
				rssItem("https://example.com/a", "Fresh", now),
				rssItem("https://example.com/b", "Stale", now.AddDate(0, 0, -30)),
			))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fp := NewFeedParser([]FeedConfig{
		{URL: srv.URL + "/tech.xml", Name: "Tech", Category: "technology"},
		{URL: srv.URL + "/missing.xml", Name: "Broken"},
	}, srv.Client())

	entries := fp.ParseAll(context.Background(), 7)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry within window, got %d", len(entries))
	}

	e := entries[0]
	if e.Category != "technology" {
		t.Errorf("expected category technology, got %q", e.Category)
	}
	if e.Source != "Tech" {
		t.Errorf("expected source Tech, got %q", e.Source)
	}
	if e.Description != "Summary of Fresh" {
		t.Errorf("unexpected description %q", e.Description)
	}
	if e.Content != "" {
		t.Errorf("expected teaser to stay out of content, got %q", e.Content)
	}
	if e.Author != "Jane Reporter" {
		t.Errorf("unexpected author %q", e.Author)
	}
	if e.ImageURL != "https://example.com/a.jpg" {
		t.Errorf("unexpected image %q", e.ImageURL)
	}
	if e.PublishedDate != now.Format("2006-01-02") {
		t.Errorf("unexpected published date %q", e.PublishedDate)
	}
}

func TestParseItemRequiresLinkAndTitle(t *testing.T) {
	if parseItem(&gofeed.Item{Title: "No link"}, "S") != nil {
		t.Error("expected nil for item without link or guid")
	}
	if parseItem(&gofeed.Item{Link: "https://x"}, "S") != nil {
		t.Error("expected nil for item without title")
	}
	e := parseItem(&gofeed.Item{GUID: "https://x/guid", Title: " T "}, "S")
	if e == nil || e.URL != "https://x/guid" || e.Title != "T" {
		t.Errorf("expected guid fallback, got %+v", e)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"a &amp; b &lt;c&gt;", "a & b <c>"},
		{"line\n\n  break", "line break"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stripHTML(tt.in); got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractSourceName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://feeds.arstechnica.com/arstechnica/index", "Arstechnica"},
		{"https://www.theverge.com/rss/index.xml", "Theverge"},
		{"http://localhost/feed", "Localhost"},
	}
	for _, tt := range tests {
		if got := extractSourceName(tt.in); got != tt.want {
			t.Errorf("extractSourceName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsWithinWindow(t *testing.T) {
	cutoff := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	if !isWithinWindow("", cutoff) {
		t.Error("undated entries are kept")
	}
	if !isWithinWindow("2026-01-10", cutoff) {
		t.Error("entries on the cutoff day are kept")
	}
	if isWithinWindow("2026-01-09", cutoff) {
		t.Error("entries before the cutoff are dropped")
	}
}
