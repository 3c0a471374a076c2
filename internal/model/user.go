// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// User はAutoSMMのアカウント。1ユーザーが複数SNSの投稿を予約する。
type User struct {
	ID        string
	Email     string
	Name      string
	Plan      Plan
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName は画面上の呼び名。空白だけの名前は未設定とみなしメールアドレスを返す。
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return u.Email
}

// EffectivePlan は保存値が不明でも必ず既知のプランを返す。
func (u *User) EffectivePlan() Plan {
	return ParsePlan(string(u.Plan))
}

// Identity はGoogleなど外部IdPのアカウントとUserの対応。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はログイン状態。IDはCookieに載る不透明な値。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Active はnow時点でセッションが使えるかを返す。
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.UserID != "" && s.ExpiresAt.After(now)
}
