// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/autosmm/internal/model"
	"github.com/hitoshi/autosmm/internal/post"
	"github.com/hitoshi/autosmm/internal/repository"
)

// Profile はユーザー情報と契約プランの詳細。
type Profile struct {
	User     model.User
	PlanInfo model.PlanInfo
}

// Service はユーザー管理のサービス層。
// プロフィール取得と退会処理を提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// Profile はユーザー情報と契約プランの詳細を返す。
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	p := &Profile{User: *u}
	for _, info := range model.Plans() {
		if info.Plan == u.Plan {
			p.PlanInfo = info
			break
		}
	}
	return p, nil
}

// Viewer は投稿画面に渡す閲覧者情報を返す。
func (s *Service) Viewer(ctx context.Context, userID string) (post.Viewer, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return post.Viewer{}, err
	}
	return post.Viewer{
		UserID:      p.User.ID,
		DisplayName: p.User.DisplayName(),
		Plan:        p.User.EffectivePlan(),
	}, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: identities, posts）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
		slog.String("plan", string(u.Plan)),
	)

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}
