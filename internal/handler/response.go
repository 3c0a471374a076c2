package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/autosmm/internal/importer"
	"github.com/hitoshi/autosmm/internal/middleware"
	"github.com/hitoshi/autosmm/internal/model"
	"github.com/hitoshi/autosmm/internal/post"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

const dateLayout = "2006-01-02"

// labelResponse は列挙値の表示ラベル。
type labelResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Color string `json:"color,omitempty"`
}

// postResponse は投稿のレスポンスボディ。
type postResponse struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	ScheduledFor   time.Time       `json:"scheduled_for"`
	ScheduledLabel string          `json:"scheduled_label"`
	TimeLabel      string          `json:"time_label"`
	Platforms      []labelResponse `json:"platforms"`
	Status         labelResponse   `json:"status"`
	ImageURL       *string         `json:"image_url,omitempty"`
}

// statusCountsResponse はステータス別件数。
type statusCountsResponse struct {
	Scheduled    int `json:"scheduled"`
	Published    int `json:"published"`
	Failed       int `json:"failed"`
	Unclassified int `json:"unclassified"`
	Total        int `json:"total"`
}

// dashboardResponse はダッシュボードのレスポンスボディ。
type dashboardResponse struct {
	Greeting      string               `json:"greeting"`
	Counts        statusCountsResponse `json:"counts"`
	Posts         []postResponse       `json:"posts"`
	CanCreatePost bool                 `json:"can_create_post"`
	UpgradeURL    string               `json:"upgrade_url,omitempty"`
}

// calendarResponse はカレンダーのレスポンスボディ。
type calendarResponse struct {
	Date            string         `json:"date"`
	Title           string         `json:"title"`
	Posts           []postResponse `json:"posts"`
	HighlightedDays []int          `json:"highlighted_days"`
	CanCreatePost   bool           `json:"can_create_post"`
	UpgradeURL      string         `json:"upgrade_url,omitempty"`
}

// candidateResponse はインポートした下書き候補。
type candidateResponse struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	ImageURL    *string    `json:"image_url,omitempty"`
	SourceURL   string     `json:"source_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// importResponse はインポート結果のレスポンスボディ。
type importResponse struct {
	FeedURL    string              `json:"feed_url"`
	FeedTitle  string              `json:"feed_title"`
	Candidates []candidateResponse `json:"candidates"`
}

// planResponse は料金表のプラン。
type planResponse struct {
	Plan         string   `json:"plan"`
	Name         string   `json:"name"`
	PriceUSD     int      `json:"price_usd"`
	Description  string   `json:"description"`
	MonthlyPosts int      `json:"monthly_posts"`
	Platforms    []string `json:"platforms"`
	Features     []string `json:"features"`
	Recommended  bool     `json:"recommended"`
	TrialDays    int      `json:"trial_days"`
}

func toLabelResponse(l post.Label) labelResponse {
	return labelResponse{Value: l.Value, Label: l.Label, Icon: l.Icon, Color: l.Color}
}

func toPostResponse(v post.PostView) postResponse {
	resp := postResponse{
		ID:             v.ID,
		Title:          v.Title,
		Content:        v.Content,
		ScheduledFor:   v.ScheduledFor,
		ScheduledLabel: v.ScheduledLabel,
		TimeLabel:      v.TimeLabel,
		Platforms:      make([]labelResponse, len(v.Platforms)),
		Status:         toLabelResponse(v.Status),
		ImageURL:       v.ImageURL,
	}
	for i, l := range v.Platforms {
		resp.Platforms[i] = toLabelResponse(l)
	}
	return resp
}

func toPostResponses(views []post.PostView) []postResponse {
	out := make([]postResponse, len(views))
	for i, v := range views {
		out[i] = toPostResponse(v)
	}
	return out
}

func toStatusCountsResponse(c model.StatusCounts) statusCountsResponse {
	return statusCountsResponse{
		Scheduled:    c.Scheduled,
		Published:    c.Published,
		Failed:       c.Failed,
		Unclassified: c.Unclassified,
		Total:        c.Total,
	}
}

func toImportResponse(r *importer.Result) importResponse {
	resp := importResponse{
		FeedURL:    r.FeedURL,
		FeedTitle:  r.FeedTitle,
		Candidates: make([]candidateResponse, len(r.Candidates)),
	}
	for i, c := range r.Candidates {
		resp.Candidates[i] = candidateResponse{
			Title:       c.Title,
			Content:     c.Content,
			ImageURL:    c.ImageURL,
			SourceURL:   c.SourceURL,
			PublishedAt: c.PublishedAt,
		}
	}
	return resp
}

func toPlanResponse(info model.PlanInfo) planResponse {
	platforms := make([]string, len(info.Platforms))
	for i, p := range info.Platforms {
		platforms[i] = string(p)
	}
	return planResponse{
		Plan:         string(info.Plan),
		Name:         info.Name,
		PriceUSD:     info.PriceUSD,
		Description:  info.Description,
		MonthlyPosts: info.MonthlyPosts,
		Platforms:    platforms,
		Features:     info.Features,
		Recommended:  info.Recommended,
		TrialDays:    info.TrialDays,
	}
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 不正なJSONやサイズ超過はINVALID_POSTとして返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.NewInvalidPostError("zahtjev je prevelik")
		}
		return model.NewInvalidPostError("neispravan format zahtjeva")
	}
	return nil
}

// requireUserID はセッションミドルウェアが注入したユーザーIDを返す。
// 取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return "", false
	}
	return userID, true
}
