package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/autosmm/internal/model"
)

const postColumns = `id, user_id, title, content, scheduled_for, platforms, status,
		        image_url, error_message, created_at, updated_at`

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost は1行分の投稿を読み取る。
// 列挙外のstatusやplatformはそのまま保持し、分類可否の判定は呼び出し側に委ねる。
func scanPost(s rowScanner) (*model.Post, error) {
	p := &model.Post{}
	var platforms pq.StringArray
	var status string
	var imageURL, errorMessage sql.NullString

	if err := s.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Content, &p.ScheduledFor,
		&platforms, &status, &imageURL, &errorMessage,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Platforms = platformsFromStrings(platforms)
	p.Status = model.PostStatus(status)
	if imageURL.Valid {
		u := imageURL.String
		p.ImageURL = &u
	}
	p.ErrorMessage = nullStringValue(errorMessage)
	return p, nil
}

// FindAll はユーザーの全投稿をscheduled_for降順で返す。
func (r *PostgresPostRepo) FindAll(ctx context.Context, userID string) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts
		 WHERE user_id = $1
		 ORDER BY scheduled_for DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// FindByID はユーザーが所有する指定IDの投稿を返す。見つからない場合はnilを返す。
// 他ユーザーの投稿は存在しないものとして扱う。
func (r *PostgresPostRepo) FindByID(ctx context.Context, userID, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		// 不正なUUID形式もnot foundと同じ扱いにする
		if isInvalidTextRepresentation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return p, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, content, scheduled_for, platforms, status,
		                    image_url, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		post.ID, post.UserID, post.Title, post.Content, post.ScheduledFor,
		pq.Array(platformsToStrings(post.Platforms)), string(post.Status),
		nullStringPtr(post.ImageURL), nullString(post.ErrorMessage),
		post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// ClaimDueForPublish は配信対象の投稿を最大limit件、now+leaseまで専有して返す。
// 対象はstatus = 'scheduled' かつ scheduled_for <= now で、未専有か専有期限が切れた投稿。
// 専有は1文のUPDATEで行うため、同時に呼んだ別のワーカーが同じ投稿を受け取ることはない。
// 配信が中断された投稿は専有期限が切れると再び対象になる。
func (r *PostgresPostRepo) ClaimDueForPublish(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE posts SET claimed_until = $2
		 WHERE id IN (
		     SELECT id FROM posts
		     WHERE status = 'scheduled'
		       AND scheduled_for <= $1
		       AND (claimed_until IS NULL OR claimed_until <= $1)
		     ORDER BY scheduled_for ASC
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+postColumns,
		now, now.Add(lease), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("配信対象投稿の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("配信対象投稿の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信対象投稿の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// UpdateStatus は投稿のステータスをfromからtoへ遷移させる。
// 許可されない遷移はDBに問い合わせる前にエラーを返す。
// 現在のステータスがfromでない場合（他ワーカーが先に処理した場合など）はfalseを返す。
func (r *PostgresPostRepo) UpdateStatus(ctx context.Context, id string, from, to model.PostStatus, errorMessage string) (bool, error) {
	if !model.CanTransition(from, to) {
		return false, model.NewInvalidTransitionError(from, to)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = $3, error_message = $4, claimed_until = NULL, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), nullString(errorMessage),
	)
	if err != nil {
		return false, fmt.Errorf("投稿ステータスの更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func platformsToStrings(platforms []model.Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = string(p)
	}
	return out
}

func platformsFromStrings(values []string) []model.Platform {
	out := make([]model.Platform, len(values))
	for i, v := range values {
		out[i] = model.Platform(v)
	}
	return out
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringPtr はnilポインタをNULLに変換する。
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// isInvalidTextRepresentation はPostgreSQLの型変換エラー（22P02）かを判定する。
func isInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "22P02"
	}
	return false
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
