// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code       string // エラーコード
	Message    string // エラーメッセージ
	Category   string // カテゴリ: auth, validation, post, plan, import, system
	Action     string // ユーザー向け対処方法
	UpgradeURL string // プラン制限時の誘導先。空の場合は出力しない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// UpgradePath はプラン制限時にユーザーを誘導する料金ページのパス。
const UpgradePath = "/pricing"

// 定義済みエラーコード
const (
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeInvalidPost        = "INVALID_POST"
	ErrCodePlanLimit          = "PLAN_LIMIT"
	ErrCodePlatformNotAllowed = "PLATFORM_NOT_ALLOWED"
	ErrCodeInvalidDate        = "INVALID_DATE"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeImportFailed       = "IMPORT_FAILED"
	ErrCodeFeedNotDetected    = "FEED_NOT_DETECTED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("Objava nije pronađena: %s", postID),
		Category: "post",
		Action:   "Provjerite ID objave.",
	}
}

// NewInvalidPostError は投稿内容のバリデーションエラーを生成する。
func NewInvalidPostError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPost,
		Message:  fmt.Sprintf("Neispravna objava: %s", reason),
		Category: "validation",
		Action:   "Ispunite naslov, sadržaj, datum objave i barem jednu platformu.",
	}
}

// NewPlanLimitError は無料プランのscheduled投稿上限エラーを生成する。
// 呼び出し元は UpgradeURL を使って料金ページへ誘導する。
func NewPlanLimitError() *APIError {
	return &APIError{
		Code:       ErrCodePlanLimit,
		Message:    fmt.Sprintf("Free plan omogućuje samo %d zakazanu objavu.", FreeScheduledLimit),
		Category:   "plan",
		Action:     "Nadogradite na Pro ili Premium za više objava.",
		UpgradeURL: UpgradePath,
	}
}

// NewPlatformNotAllowedError はプランで許可されていないプラットフォームへの投稿エラーを生成する。
func NewPlatformNotAllowedError(plan Plan, platform Platform) *APIError {
	return &APIError{
		Code:       ErrCodePlatformNotAllowed,
		Message:    fmt.Sprintf("Plan %s ne uključuje platformu %s.", plan, platform),
		Category:   "plan",
		Action:     "Uklonite platformu ili nadogradite plan.",
		UpgradeURL: UpgradePath,
	}
}

// NewInvalidDateError は日付パラメータの形式エラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("Neispravan datum: %s", value),
		Category: "validation",
		Action:   "Datum navedite u formatu YYYY-MM-DD.",
	}
}

// NewInvalidTransitionError は許可されないステータス遷移エラーを生成する。
func NewInvalidTransitionError(from, to PostStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("invalid status transition: %s -> %s", from, to),
		Category: "system",
		Action:   "Objave u završnom stanju ne mogu se ponovno objaviti.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Neispravan URL: %s", reason),
		Category: "validation",
		Action:   "Unesite ispravan URL koji počinje s http:// ili https://.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "Pristup navedenom URL-u blokiran je sigurnosnim pravilima.",
		Category: "validation",
		Action:   "Koristite javno dostupan URL. Lokalne i privatne adrese nisu dopuštene.",
	}
}

// NewImportFailedError はRSS/Atomインポート失敗エラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("Uvoz nije uspio: %s", reason),
		Category: "import",
		Action:   "Provjerite URL i pokušajte ponovno kasnije.",
	}
}

// NewFeedNotDetectedError はページからフィードが検出できなかった場合のエラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("Na adresi nije pronađen RSS/Atom feed: %s", url),
		Category: "import",
		Action:   "Unesite izravni URL feeda ili stranicu koja ga objavljuje.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Korisnik nije pronađen.",
		Category: "auth",
		Action:   "Prijavite se ponovno.",
	}
}
