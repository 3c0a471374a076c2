package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
	"github.com/hitoshi/autosmm/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) UpdatePlan(_ context.Context, _ string, _ model.Plan) error { return nil }
func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error { return nil }

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(_ context.Context, _ string) error { return nil }

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var (
	_ repository.UserRepository     = (*mockUserRepo)(nil)
	_ repository.IdentityRepository = (*mockIdentityRepo)(nil)
	_ repository.SessionRepository  = (*mockSessionRepo)(nil)
	_ OAuthProvider                 = (*mockOAuthProvider)(nil)
)

func providerReturning(info *OAuthUserInfo) *mockOAuthProvider {
	return &mockOAuthProvider{
		exchangeCodeFn: func(context.Context, string) (*OAuthUserInfo, error) { return info, nil },
	}
}

// --- テスト ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc := NewService(provider, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	want := "https://accounts.google.com/o/oauth2/auth?state=test-state"
	if got := svc.GetLoginURL("test-state"); got != want {
		t.Errorf("GetLoginURL() = %q, want %q", got, want)
	}
}

// 新規ユーザーは無料プランで登録され、セッションが発行されることを検証する。
func TestHandleCallback_NewUser_RegistersOnFreePlan(t *testing.T) {
	var createdUser *model.User
	var createdIdentity *model.Identity
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(_ context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(_ context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := NewService(
		providerReturning(&OAuthUserInfo{ProviderUserID: "g-1", Email: " ana@example.com ", Name: "Ana", Provider: "google"}),
		userRepo, &mockIdentityRepo{}, sessionRepo,
		ServiceConfig{SessionMaxAge: 86400},
	)

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if createdUser == nil || createdIdentity == nil {
		t.Fatal("expected user and identity to be created")
	}
	if createdUser.Plan != model.PlanFree {
		t.Errorf("plan = %q, want free", createdUser.Plan)
	}
	if createdUser.Email != "ana@example.com" {
		t.Errorf("email = %q, want trimmed", createdUser.Email)
	}
	if createdIdentity.UserID != createdUser.ID {
		t.Errorf("identity.UserID = %q, want %q", createdIdentity.UserID, createdUser.ID)
	}
	if createdSession == nil || session.UserID != createdUser.ID {
		t.Fatalf("session = %+v, want session for new user", session)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if !session.ExpiresAt.After(time.Now().Add(23 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want ~24h ahead", session.ExpiresAt)
	}
}

func TestHandleCallback_NewUser_UsesConfiguredDefaultPlan(t *testing.T) {
	var plan model.Plan
	userRepo := &mockUserRepo{
		createWithIdentityFn: func(_ context.Context, user *model.User, _ *model.Identity) error {
			plan = user.Plan
			return nil
		},
	}
	svc := NewService(
		providerReturning(&OAuthUserInfo{ProviderUserID: "g-2", Email: "trial@example.com", Provider: "google"}),
		userRepo, &mockIdentityRepo{}, &mockSessionRepo{},
		ServiceConfig{SessionMaxAge: 60, DefaultPlan: model.PlanPro},
	)

	if _, err := svc.HandleCallback(context.Background(), "code"); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if plan != model.PlanPro {
		t.Errorf("plan = %q, want pro", plan)
	}
}

// 登録日時とセッション期限が注入した時計から計算されることを検証する。
func TestHandleCallback_UsesClock(t *testing.T) {
	fixed := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	var created time.Time
	userRepo := &mockUserRepo{
		createWithIdentityFn: func(_ context.Context, user *model.User, _ *model.Identity) error {
			created = user.CreatedAt
			return nil
		},
	}
	svc := NewService(
		providerReturning(&OAuthUserInfo{ProviderUserID: "g-9", Email: "clock@example.com", Provider: "google"}),
		userRepo, &mockIdentityRepo{}, &mockSessionRepo{},
		ServiceConfig{SessionMaxAge: 3600},
	)
	svc.now = func() time.Time { return fixed }

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if !created.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", created, fixed)
	}
	if want := fixed.Add(time.Hour); !session.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
	}
}

func TestHandleCallback_ExistingUser_DoesNotRegister(t *testing.T) {
	userRepo := &mockUserRepo{
		createWithIdentityFn: func(context.Context, *model.User, *model.Identity) error {
			t.Fatal("CreateWithIdentity must not be called for existing users")
			return nil
		},
	}
	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(_ context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{ID: "i-1", UserID: "existing-user", Provider: provider, ProviderUserID: providerUserID}, nil
		},
	}

	svc := NewService(
		providerReturning(&OAuthUserInfo{ProviderUserID: "g-3", Email: "old@example.com", Provider: "google"}),
		userRepo, identityRepo, &mockSessionRepo{},
		ServiceConfig{SessionMaxAge: 86400},
	)

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserID != "existing-user" {
		t.Errorf("session.UserID = %q, want existing-user", session.UserID)
	}
}

func TestHandleCallback_MissingEmail_ReturnsError(t *testing.T) {
	svc := NewService(
		providerReturning(&OAuthUserInfo{ProviderUserID: "g-4", Email: "  ", Provider: "google"}),
		&mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{},
		ServiceConfig{SessionMaxAge: 86400},
	)

	_, err := svc.HandleCallback(context.Background(), "code")
	if !errors.Is(err, ErrEmailRequired) {
		t.Errorf("err = %v, want ErrEmailRequired", err)
	}
}

func TestHandleCallback_OAuthError_ReturnsError(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(context.Context, string) (*OAuthUserInfo, error) {
			return nil, errors.New("oauth exchange failed")
		},
	}
	svc := NewService(provider, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	if _, err := svc.HandleCallback(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error from HandleCallback")
	}
}

func TestHandleCallback_UserCreationError_ReturnsError(t *testing.T) {
	dbErr := errors.New("db error")
	userRepo := &mockUserRepo{
		createWithIdentityFn: func(context.Context, *model.User, *model.Identity) error { return dbErr },
	}
	svc := NewService(
		providerReturning(&OAuthUserInfo{ProviderUserID: "g-5", Email: "e@example.com", Provider: "google"}),
		userRepo, &mockIdentityRepo{}, nil,
		ServiceConfig{SessionMaxAge: 86400},
	)

	_, err := svc.HandleCallback(context.Background(), "code")
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped db error", err)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	var deleted string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(nil, nil, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	if err := svc.Logout(context.Background(), "session-to-delete"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deleted, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	if err := svc.Logout(context.Background(), ""); !errors.Is(err, ErrSessionRequired) {
		t.Errorf("err = %v, want ErrSessionRequired", err)
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUserWithPlan(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(context.Context, string) (*model.Session, error) {
			return &model.Session{ID: "s", UserID: "u-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "u@example.com", Plan: model.PlanPremium}, nil
		},
	}
	svc := NewService(nil, userRepo, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	user, err := svc.GetCurrentUser(context.Background(), "s")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != "u-1" || user.Plan != model.PlanPremium {
		t.Errorf("user = %+v", user)
	}
}

func TestGetCurrentUser_Errors(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		session   *model.Session
		user      *model.User
		want      error
	}{
		{"empty session ID", "", nil, nil, ErrSessionRequired},
		{"expired session", "s", nil, nil, ErrSessionNotFound},
		{"deleted user", "s", &model.Session{ID: "s", UserID: "gone"}, nil, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessionRepo := &mockSessionRepo{
				findByIDFn: func(context.Context, string) (*model.Session, error) { return tt.session, nil },
			}
			userRepo := &mockUserRepo{
				findByIDFn: func(context.Context, string) (*model.User, error) { return tt.user, nil },
			}
			svc := NewService(nil, userRepo, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

			if _, err := svc.GetCurrentUser(context.Background(), tt.sessionID); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
