package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/autosmm/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。プラン制限時は料金ページへの誘導先を含む。
type ErrorResponseBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

// statusByCode はエラーコードとHTTPステータスの対応。
var statusByCode = map[string]int{
	model.ErrCodePostNotFound:       http.StatusNotFound,
	model.ErrCodeUserNotFound:       http.StatusNotFound,
	model.ErrCodeInvalidPost:        http.StatusBadRequest,
	model.ErrCodeInvalidDate:        http.StatusBadRequest,
	model.ErrCodeInvalidURL:         http.StatusBadRequest,
	model.ErrCodeSSRFBlocked:        http.StatusBadRequest,
	model.ErrCodePlanLimit:          http.StatusForbidden,
	model.ErrCodePlatformNotAllowed: http.StatusForbidden,
	model.ErrCodeInvalidTransition:  http.StatusConflict,
	model.ErrCodeFeedNotDetected:    http.StatusUnprocessableEntity,
	model.ErrCodeImportFailed:       http.StatusBadGateway,
}

// StatusForCode はエラーコードに対応するHTTPステータスを返す。未知のコードは500。
func StatusForCode(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:       apiErr.Code,
		Message:    apiErr.Message,
		Category:   apiErr.Category,
		Action:     apiErr.Action,
		UpgradeURL: apiErr.UpgradeURL,
	})
}

// WriteError はerrを統一フォーマットで書き込む。
// *model.APIErrorはコードに応じたステータスで、それ以外は500として扱い詳細はログのみに残す。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
		return
	}
	slog.Error("internal error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}

// WriteUnauthorized は未認証の統一レスポンスを書き込む。
func WriteUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "Niste prijavljeni.",
		Category: "auth",
		Action:   "Prijavite se i pokušajte ponovno.",
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Došlo je do interne pogreške.",
		Category: "system",
		Action:   "Pričekajte trenutak i pokušajte ponovno.",
	})
}
