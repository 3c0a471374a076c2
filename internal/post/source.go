package post

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
)

// Source は投稿コレクションの供給元インターフェース。
// 静的データ、PostgreSQL、将来のAPI取得などを差し替え可能にする。
type Source interface {
	// FindAll はユーザーの全投稿を返す。順序は供給元に依存する。
	FindAll(ctx context.Context, userID string) ([]model.Post, error)
	// FindByID は指定IDの投稿を返す。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Post, error)
}

// Writer は投稿作成フォームから受け取った投稿を保存するインターフェース。
type Writer interface {
	Create(ctx context.Context, p *model.Post) error
}

// StaticSource はメモリ上の投稿リストを返すSource。
// DBを持たないデモ環境とテストで使用する。全ユーザーに同じ投稿を返す。
type StaticSource struct {
	mu    sync.RWMutex
	posts []model.Post
}

// NewStaticSource は指定した投稿を保持するStaticSourceを生成する。
func NewStaticSource(posts []model.Post) *StaticSource {
	cp := make([]model.Post, len(posts))
	copy(cp, posts)
	return &StaticSource{posts: cp}
}

// FindAll は保持している投稿のコピーを返す。
func (s *StaticSource) FindAll(ctx context.Context, userID string) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make([]model.Post, len(s.posts))
	copy(cp, s.posts)
	return cp, nil
}

// FindByID は指定IDの投稿を返す。見つからない場合はnilを返す。
func (s *StaticSource) FindByID(ctx context.Context, userID, id string) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.posts {
		if s.posts[i].ID == id {
			p := s.posts[i]
			return &p, nil
		}
	}
	return nil, nil
}

// Create は投稿を末尾に追加する。
func (s *StaticSource) Create(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = append(s.posts, *p)
	return nil
}

// DemoPosts はダッシュボードのデモ表示に使う投稿を返す。
// 日時はlocの壁時計時刻として解釈する。
func DemoPosts(loc *time.Location) []model.Post {
	if loc == nil {
		loc = time.UTC
	}
	return []model.Post{
		{
			ID:           "1",
			Title:        "Promocija novih proizvoda",
			Content:      "Otkrijte našu novu kolekciju proizvoda s popustom od 20%!",
			ScheduledFor: time.Date(2024, 12, 20, 10, 0, 0, 0, loc),
			Platforms:    []model.Platform{model.PlatformInstagram, model.PlatformFacebook},
			Status:       model.PostStatusScheduled,
		},
		{
			ID:           "2",
			Title:        "Savjeti za uspjeh",
			Content:      "5 savjeta za uspješno poslovanje u 2024. godini",
			ScheduledFor: time.Date(2024, 12, 18, 15, 30, 0, 0, loc),
			Platforms:    []model.Platform{model.PlatformInstagram, model.PlatformFacebook, model.PlatformTikTok},
			Status:       model.PostStatusPublished,
		},
		{
			ID:           "3",
			Title:        "Pozadina kompanije",
			Content:      "Priča o tome kako je nastala naša kompanija...",
			ScheduledFor: time.Date(2024, 12, 15, 12, 0, 0, 0, loc),
			Platforms:    []model.Platform{model.PlatformFacebook},
			Status:       model.PostStatusFailed,
		},
	}
}

// compile-time interface check
var (
	_ Source = (*StaticSource)(nil)
	_ Writer = (*StaticSource)(nil)
)
