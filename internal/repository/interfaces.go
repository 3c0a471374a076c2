// Package repository はPostgreSQLへの永続化を担う。
// 呼び出し側のサービスは下記インターフェースにのみ依存する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
)

// UserRepository はusersテーブルへのアクセス。
// 「見つからない」は (nil, nil) で表し、エラーにはしない。
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// CreateWithIdentity はuserとidentityを1トランザクションで登録する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
	UpdatePlan(ctx context.Context, id string, plan model.Plan) error
	// DeleteByID はユーザーを削除する。identities・sessions・postsは外部キーで連鎖削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdPアカウントの検索。
type IdentityRepository interface {
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はログインセッションの保存先。
// FindByIDは期限切れのセッションを返さない。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// PostRepository は予約投稿の保存先。
// 画面側（post.Source / post.Writer）と配信ワーカー（publish.PostStore）の両方がこれを使う。
type PostRepository interface {
	// FindAll はユーザーの全投稿をscheduled_forの新しい順で返す。
	FindAll(ctx context.Context, userID string) ([]model.Post, error)
	// FindByID は他人の投稿や存在しないIDに対してnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Post, error)
	Create(ctx context.Context, post *model.Post) error

	// ClaimDueForPublish はnow以前に予約されたscheduled投稿を最大limit件、
	// now+leaseまで専有して返す。専有中の投稿は他のワーカーに返さない。
	ClaimDueForPublish(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.Post, error)
	// UpdateStatus はステータスがfromのときだけtoに変える。変えなかった場合はfalse。
	UpdateStatus(ctx context.Context, id string, from, to model.PostStatus, errorMessage string) (bool, error)
}
