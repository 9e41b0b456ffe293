// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力する自由記述テキスト（自己紹介、申請メモ、目標メモなど）から
// HTMLを取り除き、管理画面での表示時に格納型XSSが成立しないようにする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由記述テキストのサニタイズ機能を提供する。
// bluemondayのポリシーを保持し、並行呼び出しに対して安全。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
// 全てのタグと属性を除去する strict ポリシーを使用する。
// script と style は中身ごと除去される。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses は除去と復元を繰り返す最大回数。
// エンティティで書かれたタグ（&lt;script&gt; など）は復元後の次の回で除去される。
const maxSanitizePasses = 4

// Sanitize はテキストからHTMLタグを取り除き、前後の空白を除去して返す。
// bluemondayが出力するエンティティ（&amp; や &#39; など）は元の文字に戻し、
// 入力されたプレーンテキストは変更しない。表示時のエスケープは利用側で行う。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	out := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

// SanitizePtr はnilを保ったままSanitizeを適用する。
func (s *TextSanitizer) SanitizePtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	clean := s.Sanitize(*raw)
	return &clean
}
