// Package importer はRSS/Atomフィードから投稿の下書き候補を生成する。
//
// 取得した記事は保存せず、タイトル・本文・画像URLを整形した候補として返す。
// 利用者は候補を選んで通常の投稿作成フローに渡す。
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
	"github.com/mmcdole/gofeed"
)

const (
	// MaxCandidates は1回のインポートで返す候補の上限。
	MaxCandidates = 20
	// maxTitleRunes は投稿タイトルの上限文字数に合わせる。
	maxTitleRunes = 200
	// maxContentRunes はInstagramのキャプション上限に合わせる。
	maxContentRunes = 2200

	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 5 * 1024 * 1024
	userAgent       = "AutoSMM/1.0 (+feed import)"
)

// Candidate はフィード記事から生成した投稿の下書き候補。
type Candidate struct {
	Title       string
	Content     string
	ImageURL    *string
	SourceURL   string
	PublishedAt *time.Time
}

// Result はインポート結果。
type Result struct {
	FeedURL    string
	FeedTitle  string
	Candidates []Candidate
}

// URLGuard はSSRF検証のインターフェース。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// TextSanitizer は記事のHTMLをプレーンテキストにする。
type TextSanitizer interface {
	SanitizeText(raw string) string
	Excerpt(raw string, maxRunes int) string
}

// FailureRecorder はインポート失敗を記録する。
type FailureRecorder interface {
	RecordImportFailure(reason string)
}

// Config はImporterの設定。
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

// Importer はフィードインポートを実行する。
type Importer struct {
	guard     URLGuard
	sanitizer TextSanitizer
	metrics   FailureRecorder
	logger    *slog.Logger
	timeout   time.Duration
	maxBytes  int64
}

// New はImporterを生成する。metricsとloggerはnilでもよい。
func New(guard URLGuard, sanitizer TextSanitizer, metrics FailureRecorder, logger *slog.Logger, cfg Config) *Importer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		guard:     guard,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
	}
}

// Import はURLのフィード（またはHTMLページから検出したフィード）を取得し、
// 最大MaxCandidates件の下書き候補を返す。
func (im *Importer) Import(ctx context.Context, rawURL string) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, im.fail("empty_url", model.NewInvalidURLError("URL nije unesen"))
	}
	if err := im.guard.ValidateURL(rawURL); err != nil {
		im.logger.Warn("インポートURLがブロックされました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, im.fail("ssrf_blocked", model.NewSSRFBlockedError())
	}

	client := im.guard.NewSafeClient(im.timeout, im.maxBytes)

	contentType, body, err := im.fetch(ctx, client, rawURL)
	if err != nil {
		return nil, im.fail("fetch", model.NewImportFailedError(err.Error()))
	}

	feedURL := rawURL
	if !looksLikeFeed(contentType, body) {
		if !isHTML(contentType) {
			return nil, im.fail("not_detected", model.NewFeedNotDetectedError(rawURL))
		}
		link, ok := selectFeed(discoverFeedLinks(body, rawURL), rawURL)
		if !ok {
			return nil, im.fail("not_detected", model.NewFeedNotDetectedError(rawURL))
		}
		if err := im.guard.ValidateURL(link.URL); err != nil {
			return nil, im.fail("ssrf_blocked", model.NewSSRFBlockedError())
		}
		feedURL = link.URL
		if _, body, err = im.fetch(ctx, client, feedURL); err != nil {
			return nil, im.fail("fetch", model.NewImportFailedError(err.Error()))
		}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		im.logger.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, im.fail("parse", model.NewImportFailedError("feed nije moguće pročitati"))
	}

	result := &Result{
		FeedURL:    feedURL,
		FeedTitle:  im.sanitizer.SanitizeText(feed.Title),
		Candidates: im.toCandidates(feed.Items),
	}

	im.logger.Info("フィードをインポートしました",
		slog.String("feed_url", feedURL),
		slog.Int("items_total", len(feed.Items)),
		slog.Int("candidates", len(result.Candidates)),
	)
	return result, nil
}

// fetch はURLをGETし、Content-Typeと最大maxBytesまでのボディを返す。
func (im *Importer) fetch(ctx context.Context, client *http.Client, target string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", nil, fmt.Errorf("neispravan URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("dohvat nije uspio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("poslužitelj je vratio status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxBytes))
	if err != nil {
		return "", nil, fmt.Errorf("čitanje odgovora nije uspjelo: %w", err)
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// toCandidates は記事を候補に変換する。タイトルも本文も空の記事は除外する。
func (im *Importer) toCandidates(items []*gofeed.Item) []Candidate {
	candidates := make([]Candidate, 0, min(len(items), MaxCandidates))
	for _, item := range items {
		if len(candidates) == MaxCandidates {
			break
		}
		if item == nil {
			continue
		}

		raw := item.Content
		if strings.TrimSpace(raw) == "" {
			raw = item.Description
		}
		c := Candidate{
			Title:     im.sanitizer.Excerpt(item.Title, maxTitleRunes),
			Content:   im.sanitizer.Excerpt(raw, maxContentRunes),
			SourceURL: item.Link,
			ImageURL:  im.imageOf(item),
		}
		if c.Title == "" && c.Content == "" {
			continue
		}
		if c.Title == "" {
			c.Title = im.sanitizer.Excerpt(c.Content, maxTitleRunes)
		}
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			c.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			c.PublishedAt = &t
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// imageOf は記事画像、なければ画像タイプのenclosureからURLを選ぶ。
// SSRF検証を通らないURLは採用しない。
func (im *Importer) imageOf(item *gofeed.Item) *string {
	var urls []string
	if item.Image != nil {
		urls = append(urls, item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			urls = append(urls, enc.URL)
		}
	}
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u != "" && im.guard.ValidateURL(u) == nil {
			return &u
		}
	}
	return nil
}

// fail は失敗をメトリクスに記録してerrをそのまま返す。
func (im *Importer) fail(reason string, err error) error {
	if im.metrics != nil {
		im.metrics.RecordImportFailure(reason)
	}
	return err
}
