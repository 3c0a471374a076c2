// Package auth はGoogleログインとセッション発行を扱う。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/autosmm/internal/model"
	"github.com/hitoshi/autosmm/internal/repository"
)

var (
	// ErrSessionRequired はセッションIDが空の場合に返される。
	ErrSessionRequired = errors.New("session ID is required")
	// ErrSessionNotFound はセッションが存在しないか期限切れの場合に返される。
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrUserNotFound はセッションに紐づくユーザーが存在しない場合に返される。
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailRequired はIdPからメールアドレスが得られなかった場合に返される。
	ErrEmailRequired = errors.New("email is required")
)

// OAuthUserInfo はIdPから受け取ったプロフィール。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth 2.0の認可コードフローを行うIdP。
type OAuthProvider interface {
	GetLoginURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int        // セッション有効期間（秒）
	DefaultPlan   model.Plan // 新規登録ユーザーのプラン。空の場合はfree
}

// Service はログイン・ログアウトと現在ユーザーの解決を担う。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.DefaultPlan == "" {
		config.DefaultPlan = model.PlanFree
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はIdPの認可画面URLを返す。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードからユーザーを特定し、新しいセッションを返す。
// 初回ログインのユーザーはその場で登録する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("OAuth認可コードの交換に失敗しました: %w", err)
	}
	info.Email = strings.TrimSpace(info.Email)
	info.Name = strings.TrimSpace(info.Name)
	if info.Email == "" {
		return nil, ErrEmailRequired
	}

	userID, err := s.resolveUser(ctx, info)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションの発行に失敗しました: %w", err)
	}
	return session, nil
}

// resolveUser はIdPアカウントに対応するユーザーIDを返す。未登録なら作成する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("identityの検索に失敗しました: %w", err)
	}
	if identity != nil {
		slog.Info("user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", info.Provider),
		)
		return identity.UserID, nil
	}

	now := s.now()
	user := &model.User{
		ID:        uuid.NewString(),
		Email:     info.Email,
		Name:      info.Name,
		Plan:      s.config.DefaultPlan,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.CreateWithIdentity(ctx, user, &model.Identity{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}); err != nil {
		return "", fmt.Errorf("ユーザー登録に失敗しました: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
		slog.String("plan", string(user.Plan)),
	)
	return user.ID, nil
}

// Logout はセッションを削除する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションの持ち主を返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	switch {
	case err != nil:
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	case session == nil:
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	switch {
	case err != nil:
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	case user == nil:
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) issueSession(ctx context.Context, userID string) (*model.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// newSessionID は32バイトの乱数を16進文字列にしたセッションIDを返す。
func newSessionID() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("乱数の生成に失敗しました: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
