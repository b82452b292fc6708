// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer は外部プロバイダー由来のプロフィール文字列を
// 保存前にサニタイズし、ダッシュボード表示時のXSSを防ぐ。
// 表示名はプレーンテキストとして扱うため、bluemondayの
// StrictPolicy（全タグ除去）を使用する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxDisplayNameLength は保存する表示名の最大文字数。
const maxDisplayNameLength = 100

// ProfileSanitizer はプロフィール文字列のサニタイズを行う。
// ポリシーはスレッドセーフであり、単一インスタンスを共有できる。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeDisplayName は表示名からHTMLタグを全て除去し、
// 前後の空白を取り除いて最大長に切り詰める。
// 切り詰めはルーン単位で行い、マルチバイト文字を壊さない。
// 同一入力に対して常に同一出力を返す（冪等）。
func (s *ProfileSanitizer) SanitizeDisplayName(name string) string {
	cleaned := strings.TrimSpace(s.policy.Sanitize(name))
	if runes := []rune(cleaned); len(runes) > maxDisplayNameLength {
		cleaned = string(runes[:maxDisplayNameLength])
	}
	return cleaned
}
