package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/autosmm/internal/middleware"
)

// UserServiceInterface はアカウント操作のサービス。
type UserServiceInterface interface {
	// Withdraw はユーザーを削除する。セッション・identity・投稿もすべて消える。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はアカウント操作のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookies sessionCookies
}

// NewUserHandler はUserHandlerを生成する。
// Cookie属性はログイン時と揃えるため認証ハンドラーと同じ設定を受け取る。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookies: newSessionCookies(config),
	}
}

// Withdraw は退会処理を行い、ブラウザのセッションCookieを削除する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	slog.Info("user withdrew", slog.String("user_id", userID))
	h.cookies.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
