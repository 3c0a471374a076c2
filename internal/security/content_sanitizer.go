// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は投稿本文やインポートした記事テキストからHTMLを取り除き、
// SNSにそのまま配信できるプレーンテキストに整える。
// SSRFGuard は画像URL・インポート元URL・配信Webhookへのリクエストを保護する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// ellipsis は切り詰めたテキストの末尾に付与する。
const ellipsis = "…"

// ContentSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeText は全てのHTMLタグを除去したプレーンテキストを返す。
	// 文字参照はデコードされ、行内の連続空白は1つにまとめられる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// Excerpt はSanitizeTextの結果を最大maxRunes文字に切り詰める。
	Excerpt(raw string, maxRunes int) string
}

// ContentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

var _ ContentSanitizerService = (*ContentSanitizer)(nil)

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
// script, styleなどの要素は中身ごと除去される。
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.StrictPolicy()
	// ブロック要素の境界で単語が連結しないよう空白を挿入する
	p.AddSpaceWhenStrippingTag(true)
	return &ContentSanitizer{policy: p}
}

// SanitizeText は全てのHTMLタグを除去したプレーンテキストを返す。
func (s *ContentSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	// bluemondayは出力をHTMLエスケープするため、保存用にデコードし直す。
	// 2回目の適用で "&lt;b&gt;" がタグとして復活しないよう、デコード後に再度除去する。
	text := html.UnescapeString(s.policy.Sanitize(raw))
	if strings.ContainsAny(text, "<>") {
		text = html.UnescapeString(s.policy.Sanitize(text))
	}
	return normalizeWhitespace(text)
}

// Excerpt はSanitizeTextの結果を最大maxRunes文字に切り詰める。
// 切り詰めた場合は末尾に "…" を付与し、その分も文字数に含める。
func (s *ContentSanitizer) Excerpt(raw string, maxRunes int) string {
	text := s.SanitizeText(raw)
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	cut := strings.TrimSpace(string(runes[:maxRunes-1]))
	return cut + ellipsis
}

// normalizeWhitespace は各行の連続空白を1つにまとめ、連続する空行を1行に詰める。
func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
