package handler

import (
	"context"
	"time"

	"github.com/hitoshi/autosmm/internal/post"
	"github.com/hitoshi/autosmm/internal/user"
)

// ViewerResolver はユーザーIDから投稿画面の閲覧者情報を解決する。
type ViewerResolver interface {
	Viewer(ctx context.Context, userID string) (post.Viewer, error)
}

// PostServiceAdapter は post.Service を PostServiceInterface に適合させるアダプタ。
// リクエストごとに閲覧者（表示名とプラン）を解決してから投稿サービスに渡す。
type PostServiceAdapter struct {
	posts   *post.Service
	viewers ViewerResolver
}

// NewPostServiceAdapter はPostServiceAdapterを生成する。
func NewPostServiceAdapter(posts *post.Service, viewers ViewerResolver) *PostServiceAdapter {
	return &PostServiceAdapter{posts: posts, viewers: viewers}
}

// Dashboard はダッシュボードのビューモデルを返す。
func (a *PostServiceAdapter) Dashboard(ctx context.Context, userID string) (*post.DashboardView, error) {
	v, err := a.viewers.Viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.posts.Dashboard(ctx, v)
}

// Calendar は指定日のカレンダービューモデルを返す。
func (a *PostServiceAdapter) Calendar(ctx context.Context, userID string, date time.Time) (*post.CalendarView, error) {
	v, err := a.viewers.Viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.posts.Calendar(ctx, v, date)
}

// List は投稿一覧を返す。
func (a *PostServiceAdapter) List(ctx context.Context, userID string) ([]post.PostView, error) {
	v, err := a.viewers.Viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.posts.List(ctx, v)
}

// Get は投稿詳細を返す。
func (a *PostServiceAdapter) Get(ctx context.Context, userID, postID string) (*post.PostView, error) {
	v, err := a.viewers.Viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.posts.Get(ctx, v, postID)
}

// Create は投稿を作成する。
func (a *PostServiceAdapter) Create(ctx context.Context, userID string, in post.CreateInput) (*post.PostView, error) {
	v, err := a.viewers.Viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.posts.Create(ctx, v, in)
}

// Location はカレンダー判定に使うロケーションを返す。
func (a *PostServiceAdapter) Location() *time.Location {
	return a.posts.Location()
}

// --- compile-time interface checks ---

var _ PostServiceInterface = (*PostServiceAdapter)(nil)
var _ ViewerResolver = (*user.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
