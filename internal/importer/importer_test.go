package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
	"github.com/hitoshi/autosmm/internal/security"
)

// --- モック ---

// mockGuard はhttptestサーバー(127.0.0.1)に接続できるよう通常のクライアントを返す。
type mockGuard struct {
	blocked map[string]bool
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.blocked[rawURL] {
		return errors.New("blocked")
	}
	return nil
}

func (m *mockGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

type mockFailures struct {
	reasons []string
}

func (m *mockFailures) RecordImportFailure(reason string) {
	m.reasons = append(m.reasons, reason)
}

func newTestImporter(guard *mockGuard, failures *mockFailures) *Importer {
	if guard == nil {
		guard = &mockGuard{}
	}
	if failures == nil {
		failures = &mockFailures{}
	}
	return New(guard, security.NewContentSanitizer(), failures, nil, Config{Timeout: 5 * time.Second})
}

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Pekara &amp; Kafić Blog</title>
    <link>https://pekara.example.com</link>
    <item>
      <title>Božićni kolači</title>
      <link>https://pekara.example.com/bozicni-kolaci</link>
      <description>&lt;p&gt;Probajte naše &lt;strong&gt;nove&lt;/strong&gt; kolače!&lt;/p&gt;</description>
      <pubDate>Mon, 15 Dec 2025 09:00:00 +0100</pubDate>
      <enclosure url="https://cdn.example.com/kolaci.jpg" type="image/jpeg" length="1234"/>
    </item>
    <item>
      <title>Radno vrijeme</title>
      <link>https://pekara.example.com/radno-vrijeme</link>
      <description>Otvoreno svaki dan od 7 do 20.</description>
      <enclosure url="https://cdn.example.com/podcast.mp3" type="audio/mpeg" length="1"/>
    </item>
    <item>
      <title></title>
      <description></description>
    </item>
  </channel>
</rss>`

func serveFeed(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// --- テスト ---

func TestImport_DirectRSS(t *testing.T) {
	ts := serveFeed(t, "application/rss+xml; charset=utf-8", sampleRSS)

	res, err := newTestImporter(nil, nil).Import(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.FeedURL != ts.URL {
		t.Errorf("FeedURL = %q, want %q", res.FeedURL, ts.URL)
	}
	if res.FeedTitle != "Pekara & Kafić Blog" {
		t.Errorf("FeedTitle = %q", res.FeedTitle)
	}
	// タイトルも本文も空の記事は除外される
	if len(res.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(res.Candidates))
	}

	first := res.Candidates[0]
	if first.Title != "Božićni kolači" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Content != "Probajte naše nove kolače!" {
		t.Errorf("Content = %q, want HTML stripped", first.Content)
	}
	if first.ImageURL == nil || *first.ImageURL != "https://cdn.example.com/kolaci.jpg" {
		t.Errorf("ImageURL = %v, want image enclosure", first.ImageURL)
	}
	if first.SourceURL != "https://pekara.example.com/bozicni-kolaci" {
		t.Errorf("SourceURL = %q", first.SourceURL)
	}
	if first.PublishedAt == nil || first.PublishedAt.UTC().Day() != 15 {
		t.Errorf("PublishedAt = %v", first.PublishedAt)
	}

	// 音声enclosureは画像として採用しない
	if res.Candidates[1].ImageURL != nil {
		t.Errorf("audio enclosure must not become ImageURL, got %q", *res.Candidates[1].ImageURL)
	}
}

func TestImport_GenericXMLDetectedByBody(t *testing.T) {
	ts := serveFeed(t, "text/xml", sampleRSS)

	res, err := newTestImporter(nil, nil).Import(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("len(Candidates) = %d, want 2", len(res.Candidates))
	}
}

// TestImport_DiscoversFeedFromHTML はHTMLページのlinkタグからフィードを辿ることを検証する。
func TestImport_DiscoversFeedFromHTML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head>
			<link rel="alternate" type="application/rss+xml" href="/feed.xml">
		</head><body>Pekara</body></html>`)
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := newTestImporter(nil, nil).Import(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.FeedURL != ts.URL+"/feed.xml" {
		t.Errorf("FeedURL = %q, want discovered feed", res.FeedURL)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("len(Candidates) = %d, want 2", len(res.Candidates))
	}
}

func TestImport_CapsCandidates(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>`)
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "<item><title>Objava %d</title><description>Tekst %d</description></item>", i, i)
	}
	b.WriteString(`</channel></rss>`)
	ts := serveFeed(t, "application/rss+xml", b.String())

	res, err := newTestImporter(nil, nil).Import(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if len(res.Candidates) != MaxCandidates {
		t.Fatalf("len(Candidates) = %d, want %d", len(res.Candidates), MaxCandidates)
	}
	if res.Candidates[0].Title != "Objava 0" || res.Candidates[19].Title != "Objava 19" {
		t.Errorf("candidates must keep feed order, got %q .. %q", res.Candidates[0].Title, res.Candidates[19].Title)
	}
}

func TestImport_Errors(t *testing.T) {
	htmlNoFeed := serveFeed(t, "text/html", "<html><head><title>x</title></head><body></body></html>")
	plain := serveFeed(t, "text/plain", "hello")
	broken := serveFeed(t, "application/rss+xml", "this is not a feed")
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	tests := []struct {
		name       string
		url        string
		guard      *mockGuard
		wantCode   string
		wantReason string
	}{
		{name: "空URL", url: "  ", wantCode: model.ErrCodeInvalidURL, wantReason: "empty_url"},
		{name: "SSRFブロック", url: "http://10.0.0.1/feed", guard: &mockGuard{blocked: map[string]bool{"http://10.0.0.1/feed": true}}, wantCode: model.ErrCodeSSRFBlocked, wantReason: "ssrf_blocked"},
		{name: "フィードなしHTML", url: htmlNoFeed.URL, wantCode: model.ErrCodeFeedNotDetected, wantReason: "not_detected"},
		{name: "フィードでもHTMLでもない", url: plain.URL, wantCode: model.ErrCodeFeedNotDetected, wantReason: "not_detected"},
		{name: "404", url: notFound.URL, wantCode: model.ErrCodeImportFailed, wantReason: "fetch"},
		{name: "パース失敗", url: broken.URL, wantCode: model.ErrCodeImportFailed, wantReason: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := &mockFailures{}
			_, err := newTestImporter(tt.guard, failures).Import(context.Background(), tt.url)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *model.APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if len(failures.reasons) != 1 || failures.reasons[0] != tt.wantReason {
				t.Errorf("recorded reasons = %v, want [%s]", failures.reasons, tt.wantReason)
			}
		})
	}
}

// TestImport_BlockedImageIsDropped はSSRF検証を通らない画像URLが候補に載らないことを検証する。
func TestImport_BlockedImageIsDropped(t *testing.T) {
	ts := serveFeed(t, "application/rss+xml", sampleRSS)
	guard := &mockGuard{blocked: map[string]bool{"https://cdn.example.com/kolaci.jpg": true}}

	res, err := newTestImporter(guard, nil).Import(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.Candidates[0].ImageURL != nil {
		t.Errorf("ImageURL = %q, want nil", *res.Candidates[0].ImageURL)
	}
}
