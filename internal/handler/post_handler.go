package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/autosmm/internal/middleware"
	"github.com/hitoshi/autosmm/internal/model"
	"github.com/hitoshi/autosmm/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
// 閲覧者の解決はアダプタ側で行い、ハンドラーはユーザーIDのみを渡す。
type PostServiceInterface interface {
	Dashboard(ctx context.Context, userID string) (*post.DashboardView, error)
	Calendar(ctx context.Context, userID string, date time.Time) (*post.CalendarView, error)
	List(ctx context.Context, userID string) ([]post.PostView, error)
	Get(ctx context.Context, userID, postID string) (*post.PostView, error)
	Create(ctx context.Context, userID string, in post.CreateInput) (*post.PostView, error)
	// Location はカレンダーの暦日判定に使うロケーションを返す。
	Location() *time.Location
}

// PostHandler は投稿スケジューリング画面のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	now     func() time.Time
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{
		service: service,
		now:     time.Now,
	}
}

// createPostRequest は投稿作成リクエストのボディ。
// scheduled_forはRFC3339、またはタイムゾーンなしの "2006-01-02T15:04"（サービスのロケーションで解釈）。
type createPostRequest struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	ScheduledFor string   `json:"scheduled_for"`
	Platforms    []string `json:"platforms"`
	ImageURL     *string  `json:"image_url"`
}

// Dashboard はダッシュボードのビューモデルを返す。
// GET /api/dashboard
func (h *PostHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Greeting:      view.Greeting,
		Counts:        toStatusCountsResponse(view.Counts),
		Posts:         toPostResponses(view.Posts),
		CanCreatePost: view.CanCreatePost,
		UpgradeURL:    view.UpgradeURL,
	})
}

// Calendar は指定日のカレンダービューモデルを返す。
// GET /api/calendar?date=YYYY-MM-DD
// dateを省略した場合は今日（サービスのロケーション）。
func (h *PostHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	loc := h.service.Location()
	date := h.now().In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			middleware.WriteError(w, r, model.NewInvalidDateError(raw))
			return
		}
		date = parsed
	}

	view, err := h.service.Calendar(r.Context(), userID, date)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	highlighted := view.HighlightedDays
	if highlighted == nil {
		highlighted = []int{}
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		Date:            view.Date.Format(dateLayout),
		Title:           view.Title,
		Posts:           toPostResponses(view.Posts),
		HighlightedDays: highlighted,
		CanCreatePost:   view.CanCreatePost,
		UpgradeURL:      view.UpgradeURL,
	})
}

// List はユーザーの投稿一覧を返す。
// GET /api/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	views, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"posts": toPostResponses(views)})
}

// Get は投稿詳細を返す。
// GET /api/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(*view))
}

// Create は投稿をscheduled状態で作成する。
// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	in := post.CreateInput{
		Title:     req.Title,
		Content:   req.Content,
		Platforms: make([]model.Platform, len(req.Platforms)),
		ImageURL:  req.ImageURL,
	}
	for i, p := range req.Platforms {
		in.Platforms[i] = model.Platform(strings.ToLower(strings.TrimSpace(p)))
	}
	if req.ScheduledFor != "" {
		t, err := parseScheduledFor(req.ScheduledFor, h.service.Location())
		if err != nil {
			middleware.WriteError(w, r, model.NewInvalidDateError(req.ScheduledFor))
			return
		}
		in.ScheduledFor = t
	}

	view, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(*view))
}

// parseScheduledFor はRFC3339、またはフォームのdatetime-local形式を解釈する。
func parseScheduledFor(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", s, loc)
}
