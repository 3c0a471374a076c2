// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
)

const sessionCookieName = "session_id"

// ErrNoUser はコンテキストに認証済みユーザーがない場合のエラー。
var ErrNoUser = errors.New("no authenticated user in context")

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userIDContextKey = contextKey("user_id")

// SessionFinder はセッションの検索インターフェース（repository.SessionRepositoryの部分集合）。
// 見つからない・期限切れの場合はnilを返す。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はsession_id Cookieを検証し、ユーザーIDをコンテキストに載せる。
// Cookieがない、セッションが無効、検索に失敗した場合はいずれも401を返す。
// 期限はリポジトリ側でも絞り込むが、ここでも時刻で確認する。
func NewSessionMiddleware(sessions SessionFinder) func(next http.Handler) http.Handler {
	return newSessionMiddleware(sessions, time.Now)
}

func newSessionMiddleware(sessions SessionFinder, now func() time.Time) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(sessionCookieName)
			if err != nil || c.Value == "" {
				WriteUnauthorized(w)
				return
			}

			session, err := sessions.FindByID(r.Context(), c.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteUnauthorized(w)
				return
			}
			if !session.Active(now()) {
				WriteUnauthorized(w)
				return
			}

			// 外側のログミドルウェアにユーザーIDを伝える
			if info, ok := r.Context().Value(logInfoContextKey).(*requestLogInfo); ok {
				info.userID = session.UserID
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), session.UserID)))
		})
	}
}

// UserIDFromContext はセッションミドルウェアが載せたユーザーIDを返す。
// ない場合はErrNoUserを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUser
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを載せる。テストでも使う。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
