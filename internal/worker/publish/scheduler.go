// Package publish は予約投稿のバックグラウンド配信処理を提供する。
//
// スケジューラが配信時刻を過ぎた投稿を一定時間専有して取得し、Publisherに渡して
// 結果に応じて scheduled → published / failed の遷移を1回だけ適用する。
// 失敗した投稿の再試行は行わない。中断された投稿は専有期限が切れた後のサイクルで再び配信する。
package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
)

const (
	defaultMaxConcurrency = 5
	defaultBatchSize      = 100
	defaultClaimLease     = 10 * time.Minute
	maxErrorMessageLength = 500
)

// Publisher は投稿を外部の配信先に送る。
type Publisher interface {
	Publish(ctx context.Context, post *model.Post) error
}

// PostStore はスケジューラが必要とする投稿リポジトリの操作。
type PostStore interface {
	ClaimDueForPublish(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*model.Post, error)
	UpdateStatus(ctx context.Context, id string, from, to model.PostStatus, errorMessage string) (bool, error)
}

// Recorder は配信結果を記録する。
type Recorder interface {
	RecordPublish(status model.PostStatus, duration time.Duration)
}

// Scheduler は予約投稿の配信スケジューリングと並列制御を行う。
type Scheduler struct {
	store          PostStore
	publisher      Publisher
	recorder       Recorder
	logger         *slog.Logger
	maxConcurrency int
	batchSize      int
	claimLease     time.Duration
	now            func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。recorderはnilでもよい。
func NewScheduler(
	store PostStore,
	publisher Publisher,
	recorder Recorder,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:          store,
		publisher:      publisher,
		recorder:       recorder,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		batchSize:      defaultBatchSize,
		claimLease:     defaultClaimLease,
		now:            time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("配信スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("配信スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("配信サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は配信時刻を過ぎた投稿を1回専有し、並列で配信する。
// 専有期間はclaimLeaseで、1件の配信はこれより短く終わる前提。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	posts, err := s.store.ClaimDueForPublish(ctx, s.now(), s.claimLease, s.batchSize)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		s.logger.Debug("配信対象の投稿はありません")
		return nil
	}

	s.logger.Info("配信サイクルを開始します",
		slog.Int("post_count", len(posts)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, p := range posts {
		wg.Add(1)
		sem <- struct{}{}

		go func(p *model.Post) {
			defer wg.Done()
			defer func() { <-sem }()
			s.publishOne(ctx, p)
		}(p)
	}

	wg.Wait()

	s.logger.Info("配信サイクルが完了しました",
		slog.Int("post_count", len(posts)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// publishOne は1件を配信し、結果に応じた遷移を適用する。
// シャットダウンで配信が中断された場合は遷移させずscheduledのまま残す。
// 遷移はまずpに適用して検証し、成功したときだけ保存する。
func (s *Scheduler) publishOne(ctx context.Context, p *model.Post) {
	start := time.Now()

	to := model.PostStatusPublished
	var errMsg string
	if err := s.publisher.Publish(ctx, p); err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("シャットダウンにより配信を中断しました",
				slog.String("post_id", p.ID),
			)
			return
		}
		to = model.PostStatusFailed
		errMsg = truncate(err.Error(), maxErrorMessageLength)
	}
	duration := time.Since(start)

	from := p.Status
	if err := p.Transition(to); err != nil {
		s.logger.Error("許可されないステータス遷移です",
			slog.String("post_id", p.ID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		return
	}

	updated, err := s.store.UpdateStatus(ctx, p.ID, from, to, errMsg)
	if err != nil {
		s.logger.Error("投稿状態の更新に失敗しました",
			slog.String("post_id", p.ID),
			slog.String("to", string(to)),
			slog.String("error", err.Error()),
		)
		return
	}
	if !updated {
		// 別のワーカーが先に遷移させた
		s.logger.Warn("投稿は既に配信処理済みです",
			slog.String("post_id", p.ID),
		)
		return
	}

	if s.recorder != nil {
		s.recorder.RecordPublish(to, duration)
	}

	attrs := []any{
		slog.String("post_id", p.ID),
		slog.String("user_id", p.UserID),
		slog.String("status", string(to)),
		slog.Int("platforms", len(p.Platforms)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if errMsg != "" {
		s.logger.Warn("投稿の配信に失敗しました", append(attrs, slog.String("error", errMsg))...)
		return
	}
	s.logger.Info("投稿を配信しました", attrs...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
