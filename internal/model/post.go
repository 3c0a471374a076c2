// Package model はドメインモデルを定義する。
package model

import "time"

// Platform は投稿先のソーシャルネットワークを表す。
type Platform string

const (
	// PlatformInstagram はInstagram。
	PlatformInstagram Platform = "instagram"
	// PlatformFacebook はFacebook。
	PlatformFacebook Platform = "facebook"
	// PlatformTikTok はTikTok。
	PlatformTikTok Platform = "tiktok"
)

// KnownPlatforms は列挙済みプラットフォームを表示順で返す。
func KnownPlatforms() []Platform {
	return []Platform{PlatformInstagram, PlatformFacebook, PlatformTikTok}
}

// IsKnown はプラットフォームが列挙済みの値かを判定する。
func (p Platform) IsKnown() bool {
	switch p {
	case PlatformInstagram, PlatformFacebook, PlatformTikTok:
		return true
	default:
		return false
	}
}

// PostStatus は投稿の配信状態を表す。
type PostStatus string

const (
	// PostStatusScheduled は配信待ち（初期状態）。
	PostStatusScheduled PostStatus = "scheduled"
	// PostStatusPublished は配信成功（終端状態）。
	PostStatusPublished PostStatus = "published"
	// PostStatusFailed は配信失敗（終端状態）。
	PostStatusFailed PostStatus = "failed"
)

// IsKnown はステータスが列挙済みの値かを判定する。
func (s PostStatus) IsKnown() bool {
	switch s {
	case PostStatusScheduled, PostStatusPublished, PostStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal はステータスが終端状態かを判定する。
func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}

// Post はスケジュール済み、または過去のソーシャルメディア投稿を表す。
type Post struct {
	ID           string
	UserID       string
	Title        string
	Content      string
	ScheduledFor time.Time // ゼロ値は日時不明として扱う
	Platforms    []Platform
	Status       PostStatus
	ImageURL     *string
	ErrorMessage string // failed時の配信エラー
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Classifiable は投稿が日付・ステータス集計の対象になるかを判定する。
// ID欠落、日時不明、プラットフォーム未指定（既知の値を1つも含まない）、未知のステータスの
// いずれかに該当する投稿は分類不能として集計から除外される。
func (p *Post) Classifiable() bool {
	if p.ID == "" || p.ScheduledFor.IsZero() {
		return false
	}
	if !p.Status.IsKnown() {
		return false
	}
	for _, pl := range p.Platforms {
		if pl.IsKnown() {
			return true
		}
	}
	return false
}

// CanTransition はステータス遷移が許可されているかを判定する。
// 許可される遷移は scheduled → published と scheduled → failed のみ。
func CanTransition(from, to PostStatus) bool {
	if from != PostStatusScheduled {
		return false
	}
	return to == PostStatusPublished || to == PostStatusFailed
}

// Transition は投稿のステータスを遷移させる。
// 許可されない遷移の場合はステータスを変更せずにエラーを返す。
func (p *Post) Transition(to PostStatus) error {
	if !CanTransition(p.Status, to) {
		return NewInvalidTransitionError(p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return nil
}

// StatusCounts はステータスごとの投稿数を表す。
// Scheduled + Published + Failed + Unclassified は常に Total と一致する。
type StatusCounts struct {
	Scheduled    int
	Published    int
	Failed       int
	Unclassified int
	Total        int
}
