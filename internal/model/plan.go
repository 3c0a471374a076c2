// Package model はドメインモデルを定義する。
package model

import "strings"

// Plan はユーザーの契約プランを表す。
// 認証・プロフィール側が所有し、投稿ロジックからは読み取り専用。
type Plan string

const (
	// PlanFree は無料プラン。
	PlanFree Plan = "free"
	// PlanPro はProプラン。
	PlanPro Plan = "pro"
	// PlanPremium はPremiumプラン。
	PlanPremium Plan = "premium"
)

// FreeScheduledLimit は無料プランで同時に保持できるscheduled投稿数の上限。
const FreeScheduledLimit = 1

// UnlimitedPosts は月間投稿数に上限がないことを示す。
const UnlimitedPosts = -1

// PlanInfo は料金表に表示するプラン情報。
type PlanInfo struct {
	Plan         Plan
	Name         string
	PriceUSD     int
	Description  string
	MonthlyPosts int // UnlimitedPosts は無制限
	Platforms    []Platform
	Features     []string
	Recommended  bool
	TrialDays    int
}

// Plans は料金表のプラン一覧を返す。
func Plans() []PlanInfo {
	return []PlanInfo{
		{
			Plan:         PlanFree,
			Name:         "Free",
			PriceUSD:     0,
			Description:  "Savršeno za početak",
			MonthlyPosts: 5,
			Platforms:    []Platform{PlatformInstagram, PlatformFacebook},
			Features: []string{
				"5 objava mjesečno",
				"Osnovni AI sadržaj",
				"Instagram i Facebook",
				"Email podrška",
				"Osnovna analitika",
			},
			TrialDays: 14,
		},
		{
			Plan:         PlanPro,
			Name:         "Pro",
			PriceUSD:     29,
			Description:  "Za rastući biznis",
			MonthlyPosts: 50,
			Platforms:    KnownPlatforms(),
			Features: []string{
				"50 objava mjesečno",
				"Napredni AI sadržaj",
				"Sve društvene mreže",
				"Prioritetna podrška",
				"Detaljna analitika",
				"Automatsko zakazivanje",
				"Brand personalizacija",
			},
			Recommended: true,
			TrialDays:   14,
		},
		{
			Plan:         PlanPremium,
			Name:         "Premium",
			PriceUSD:     79,
			Description:  "Za agencije i timove",
			MonthlyPosts: UnlimitedPosts,
			Platforms:    KnownPlatforms(),
			Features: []string{
				"Neograničene objave",
				"Premium AI sadržaj",
				"Sve društvene mreže",
				"24/7 prioritetna podrška",
				"Napredna analitika",
				"White-label opcija",
				"API pristup",
				"Timska kolaboracija",
				"Prilagođeni izvještaji",
			},
			TrialDays: 14,
		},
	}
}

// ParsePlan は文字列をPlanに変換する。
// 未知の値は無料プランとして扱う。
func ParsePlan(s string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(s))) {
	case PlanPro:
		return PlanPro
	case PlanPremium:
		return PlanPremium
	default:
		return PlanFree
	}
}

// AllowsPlatform はプランが指定プラットフォームへの投稿を許可しているかを判定する。
// 料金表に存在しないプランは全プラットフォームを許可する。
func (p Plan) AllowsPlatform(platform Platform) bool {
	for _, info := range Plans() {
		if info.Plan != p {
			continue
		}
		for _, allowed := range info.Platforms {
			if allowed == platform {
				return true
			}
		}
		return false
	}
	return platform.IsKnown()
}
