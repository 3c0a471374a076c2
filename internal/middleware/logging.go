package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// requestLogInfo は内側のミドルウェアがログ用に書き戻す値。
// セッションミドルウェアはルートグループ内で動くため、注入したユーザーIDは
// 外側のリクエストからは見えない。
type requestLogInfo struct {
	userID string
}

var logInfoContextKey = contextKey("log_info")

// StatusRecorder はレスポンスのステータスコードを集計する。
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// statusWriter はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.statusCode = http.StatusOK
		sw.written = true
	}
	return sw.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、route、status、duration_ms、user_id（認証済みの場合）を含む。
// recorderがnilでなければステータスコードも集計する。
func NewLoggingMiddleware(logger *slog.Logger, recorder StatusRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			info := &requestLogInfo{}

			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), logInfoContextKey, info)))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)
			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			// /api/posts/{id} のようなパターン。chi外で使われた場合は省略
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					args = append(args, slog.String("route", pattern))
				}
			}
			userID := info.userID
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				args = append(args, slog.String("user_id", userID))
			}

			level := slog.LevelInfo
			switch {
			case sw.statusCode >= 500:
				level = slog.LevelError
			case sw.statusCode >= 400:
				level = slog.LevelWarn
			}

			if recorder != nil {
				recorder.RecordHTTPStatus(sw.statusCode)
			}
			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
