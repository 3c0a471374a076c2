package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/autosmm/internal/importer"
	"github.com/hitoshi/autosmm/internal/model"
)

type mockImporter struct {
	importFn func(ctx context.Context, rawURL string) (*importer.Result, error)
}

func (m *mockImporter) Import(ctx context.Context, rawURL string) (*importer.Result, error) {
	if m.importFn != nil {
		return m.importFn(ctx, rawURL)
	}
	return &importer.Result{}, nil
}

func TestImportHandler_ReturnsCandidates(t *testing.T) {
	published := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	img := "https://blog.example.com/a.jpg"
	h := NewImportHandler(&mockImporter{
		importFn: func(ctx context.Context, rawURL string) (*importer.Result, error) {
			if rawURL != "https://blog.example.com" {
				t.Errorf("rawURL = %q", rawURL)
			}
			return &importer.Result{
				FeedURL:   "https://blog.example.com/feed.xml",
				FeedTitle: "Blog",
				Candidates: []importer.Candidate{
					{Title: "Novi proizvod", Content: "Opis", ImageURL: &img, SourceURL: "https://blog.example.com/p/1", PublishedAt: &published},
				},
			}, nil
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts/import", strings.NewReader(`{"url":"https://blog.example.com"}`))
	h.Import(w, withUserID(req, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body importResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.FeedURL != "https://blog.example.com/feed.xml" || len(body.Candidates) != 1 {
		t.Fatalf("body = %+v", body)
	}
	c := body.Candidates[0]
	if c.Title != "Novi proizvod" || c.ImageURL == nil || *c.ImageURL != img || c.PublishedAt == nil {
		t.Errorf("candidate = %+v", c)
	}
}

func TestImportHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "SSRF", err: model.NewSSRFBlockedError(), wantStatus: http.StatusBadRequest},
		{name: "フィード未検出", err: model.NewFeedNotDetectedError("https://x.example"), wantStatus: http.StatusUnprocessableEntity},
		{name: "取得失敗", err: model.NewImportFailedError("timeout"), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewImportHandler(&mockImporter{
				importFn: func(ctx context.Context, rawURL string) (*importer.Result, error) {
					return nil, tt.err
				},
			})
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/posts/import", strings.NewReader(`{"url":"https://x.example"}`))
			h.Import(w, withUserID(req, "user-1"))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestImportHandler_NoUser_Returns401(t *testing.T) {
	h := NewImportHandler(&mockImporter{})
	w := httptest.NewRecorder()
	h.Import(w, httptest.NewRequest(http.MethodPost, "/api/posts/import", strings.NewReader(`{}`)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestListPlans(t *testing.T) {
	w := httptest.NewRecorder()
	ListPlans(w, httptest.NewRequest(http.MethodGet, "/api/plans", nil))

	var body struct {
		Plans      []planResponse `json:"plans"`
		UpgradeURL string         `json:"upgrade_url"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Plans) != 3 || body.Plans[0].Plan != "free" {
		t.Fatalf("plans = %+v", body.Plans)
	}
	if !body.Plans[1].Recommended {
		t.Error("pro plan should be recommended")
	}
	if body.Plans[2].MonthlyPosts != model.UnlimitedPosts {
		t.Errorf("premium monthly_posts = %d", body.Plans[2].MonthlyPosts)
	}
	if body.UpgradeURL != model.UpgradePath {
		t.Errorf("upgrade_url = %q", body.UpgradeURL)
	}
}
