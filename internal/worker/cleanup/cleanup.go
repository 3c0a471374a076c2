// Package cleanup は不要データの自動削除ジョブを提供する。
// 期限切れセッションと、保持期間（デフォルト90日）を超過した
// 配信済み・配信失敗の投稿を日次バッチで削除する。
// scheduledの投稿は保持期間に関係なく削除しない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は終端状態の投稿を保持する日数。
const DefaultRetentionDays = 90

const (
	deleteExpiredSessionsQuery = `DELETE FROM sessions WHERE expires_at < now()`
	deleteOldPostsQuery        = `DELETE FROM posts
		WHERE status IN ('published', 'failed')
		  AND scheduled_for < now() - $1::interval`
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Result は1回の実行で削除した件数。
type Result struct {
	SessionsDeleted int64
	PostsDeleted    int64
}

// CleanupJob は日次実行のバッチジョブ。削除は冪等。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 投稿の保持日数（0以下ならDefaultRetentionDays）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Start は起動直後に1回、その後interval毎にRunを実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}

// Run は期限切れセッションと保持期間を超過した終端投稿を削除する。
// セッション削除に失敗した場合は投稿削除を行わずにエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	n, err := j.exec(ctx, "sessions", deleteExpiredSessionsQuery)
	if err != nil {
		return res, err
	}
	res.SessionsDeleted = n

	n, err = j.exec(ctx, "posts", deleteOldPostsQuery, fmt.Sprintf("%d days", j.RetentionDays))
	if err != nil {
		return res, err
	}
	res.PostsDeleted = n

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("sessions_deleted", res.SessionsDeleted),
		slog.Int64("posts_deleted", res.PostsDeleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, nil
}

func (j *CleanupJob) exec(ctx context.Context, target, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("クリーンアップの削除に失敗しました",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%sのクリーンアップに失敗: %w", target, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%sの削除件数の取得に失敗: %w", target, err)
	}
	return n, nil
}
