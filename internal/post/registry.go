// Package post は投稿一覧から画面表示用の値を導出するビューモデルを提供する。
//
// 日付ごとのグルーピング、ステータス集計、プランによる作成可否判定はすべて
// 呼び出し元が渡したスライスに対する純粋関数であり、入力を変更しない。
// 返す投稿はPlatformsとImageURLも複製しており、結果を書き換えても入力には影響しない。
package post

import (
	"slices"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
)

// PostsOnDate はdateと同じ暦日に予定されている投稿を元の順序のまま返す。
// 比較はdateのロケーションで年・月・日のみを用い、時刻は無視する。
// 分類不能な投稿は含まれない。
func PostsOnDate(posts []model.Post, date time.Time) []model.Post {
	y, m, d := date.Date()
	loc := date.Location()

	result := make([]model.Post, 0)
	for i := range posts {
		p := &posts[i]
		if !p.Classifiable() {
			continue
		}
		py, pm, pd := p.ScheduledFor.In(loc).Date()
		if py == y && pm == m && pd == d {
			result = append(result, clonePost(p))
		}
	}
	return result
}

// HasPostsOnDate はdateに1件以上の投稿があるかを返す。カレンダーのセル強調に使う。
func HasPostsOnDate(posts []model.Post, date time.Time) bool {
	return len(PostsOnDate(posts, date)) > 0
}

// DaysWithPosts は指定年月のうち投稿がある日を昇順で返す。
func DaysWithPosts(posts []model.Post, year int, month time.Month, loc *time.Location) []int {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)

	days := make([]int, 0)
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		if HasPostsOnDate(posts, d) {
			days = append(days, d.Day())
		}
	}
	return days
}

// CountStatuses は投稿をステータスごとに1パスで集計する。
// Totalは常に入力件数と一致し、分類不能な投稿はUnclassifiedに数える。
func CountStatuses(posts []model.Post) model.StatusCounts {
	counts := model.StatusCounts{Total: len(posts)}
	for i := range posts {
		p := &posts[i]
		if !p.Classifiable() {
			counts.Unclassified++
			continue
		}
		switch p.Status {
		case model.PostStatusScheduled:
			counts.Scheduled++
		case model.PostStatusPublished:
			counts.Published++
		case model.PostStatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// CanCreatePost は新しい投稿を作成できるかを返す。
// 無料プランではscheduled投稿が1件もない場合のみtrue、それ以外のプランは常にtrue。
// 枠の計算はstatusだけを見る。日付やプラットフォームが壊れた投稿でもscheduledなら枠を使う。
//
// この判定はUI向けの助言的なチェックであり枠を予約しない。
// 同時に2件の作成が行われた場合は上限を超え得る。
func CanCreatePost(posts []model.Post, plan model.Plan) bool {
	if plan != model.PlanFree {
		return true
	}
	scheduled := 0
	for i := range posts {
		if posts[i].Status == model.PostStatusScheduled {
			scheduled++
		}
	}
	return scheduled < model.FreeScheduledLimit
}

// clonePost はスライスとポインタを共有しないpのコピーを返す。
func clonePost(p *model.Post) model.Post {
	cp := *p
	cp.Platforms = slices.Clone(p.Platforms)
	if p.ImageURL != nil {
		u := *p.ImageURL
		cp.ImageURL = &u
	}
	return cp
}

// Registry は1リクエスト分の投稿のスナップショット。ServiceがDashboard・Calendar・Createで使う。
type Registry struct {
	posts []model.Post
}

// NewRegistry は渡されたスライスの複製を保持するRegistryを生成する。
func NewRegistry(posts []model.Post) *Registry {
	cp := make([]model.Post, len(posts))
	for i := range posts {
		cp[i] = clonePost(&posts[i])
	}
	return &Registry{posts: cp}
}

// Posts は保持している投稿を元の順序で返す。
func (r *Registry) Posts() []model.Post {
	cp := make([]model.Post, len(r.posts))
	for i := range r.posts {
		cp[i] = clonePost(&r.posts[i])
	}
	return cp
}

// DaysIn はDaysWithPostsと同じ。
func (r *Registry) DaysIn(year int, month time.Month, loc *time.Location) []int {
	return DaysWithPosts(r.posts, year, month, loc)
}

// OnDate はPostsOnDateと同じ。
func (r *Registry) OnDate(date time.Time) []model.Post {
	return PostsOnDate(r.posts, date)
}

// HasPostsOn はHasPostsOnDateと同じ。
func (r *Registry) HasPostsOn(date time.Time) bool {
	return HasPostsOnDate(r.posts, date)
}

// Counts はCountStatusesと同じ。
func (r *Registry) Counts() model.StatusCounts {
	return CountStatuses(r.posts)
}

// CanCreate はCanCreatePostと同じ。
func (r *Registry) CanCreate(plan model.Plan) bool {
	return CanCreatePost(r.posts, plan)
}
