// Package handler はJSON APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/autosmm/internal/auth"
	"github.com/hitoshi/autosmm/internal/middleware"
	"github.com/hitoshi/autosmm/internal/model"
)

// loginLandingPath はログイン成功後に表示するフロントエンドのページ。
const loginLandingPath = "/dashboard"

// OAuthフローのエラー。ユーザー向け文言はクロアチア語。
var (
	errOAuthStateInvalid = &model.APIError{
		Code:     "OAUTH_STATE_INVALID",
		Message:  "Prijava je istekla ili nije valjana.",
		Category: "auth",
		Action:   "Pokrenite prijavu ponovno.",
	}
	errOAuthCodeMissing = &model.APIError{
		Code:     "OAUTH_CODE_MISSING",
		Message:  "Nedostaje autorizacijski kod.",
		Category: "auth",
		Action:   "Pokrenite prijavu ponovno.",
	}
	errEmailNotVerified = &model.APIError{
		Code:     "EMAIL_NOT_VERIFIED",
		Message:  "Email adresa Google računa nije potvrđena.",
		Category: "auth",
		Action:   "Potvrdite email adresu i pokušajte ponovno.",
	}
)

// AuthServiceInterface は外部IdP（Google）によるログインとセッション管理。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string // フロントエンドのURL
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン・ログアウトと現在のユーザー情報を扱う。
type AuthHandler struct {
	service AuthServiceInterface
	cookies sessionCookies
	landing string
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: newSessionCookies(config),
		landing: strings.TrimRight(config.BaseURL, "/") + loginLandingPath,
	}
}

// Login はstateをCookieに保存してGoogleの同意画面へリダイレクトする。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.cookies.setState(w, state)
	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はGoogleからの戻りを処理し、セッションを発行してダッシュボードへリダイレクトする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !validState(r, q.Get("state")) {
		slog.Warn("oauth state mismatch", slog.String("remote_addr", r.RemoteAddr))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, errOAuthStateInvalid)
		return
	}
	// stateは一度きり
	h.cookies.clearState(w)

	code := q.Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, errOAuthCodeMissing)
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	switch {
	case errors.Is(err, auth.ErrEmailNotVerified):
		slog.Warn("oauth callback rejected", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusForbidden, errEmailNotVerified)
		return
	case err != nil:
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.cookies.setSession(w, session.ID)
	http.Redirect(w, r, h.landing, http.StatusTemporaryRedirect)
}

// validState はクエリのstateとCookieのstateを定数時間で比較する。
func validState(r *http.Request, state string) bool {
	if state == "" {
		return false
	}
	c, err := r.Cookie(oauthStateCookie)
	if err != nil || c.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) == 1
}

// Logout はセッションを破棄してCookieを削除する。
// セッション削除に失敗してもCookieは削除し、204を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if err := h.service.Logout(r.Context(), c.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.cookies.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// meResponse は /auth/me のレスポンスボディ。
type meResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Plan        string `json:"plan"`
}

// Me はログイン中のユーザーと契約プランを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		middleware.WriteUnauthorized(w)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) {
			slog.Error("failed to get current user", slog.String("error", err.Error()))
		}
		middleware.WriteUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		DisplayName: user.DisplayName(),
		Plan:        string(user.EffectivePlan()),
	})
}

// generateState はOAuthのstate値（128bit）を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
