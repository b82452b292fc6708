// Package model はドメインモデルを定義する。
package model

import "fmt"

// AuthErrorReason はOAuthフロー失敗時にエラーページへ引き渡す理由タグ。
// /auth/error?error=<tag> のクエリパラメータとして使用される。
type AuthErrorReason string

const (
	// ReasonAccessDenied はユーザーがSpotify側で認可を拒否したことを示す。
	ReasonAccessDenied AuthErrorReason = "access_denied"
	// ReasonInvalidState はstateパラメータの欠落または不一致を示す。
	ReasonInvalidState AuthErrorReason = "invalid_state"
	// ReasonOAuthError はトークン交換またはプロフィール取得の失敗を示す。
	ReasonOAuthError AuthErrorReason = "oauth_error"
	// ReasonEmailRequired はSpotifyプロフィールにメールアドレスが無いことを示す。
	ReasonEmailRequired AuthErrorReason = "email_required"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, spotify, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeSpotifyNotConnected = "SPOTIFY_NOT_CONNECTED"
	ErrCodeSpotifyAPIFailed    = "SPOTIFY_API_FAILED"
	ErrCodeInvalidQuery        = "INVALID_QUERY"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewSpotifyNotConnectedError はSpotify未連携エラーを生成する。
func NewSpotifyNotConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeSpotifyNotConnected,
		Message:  "Spotifyアカウントが連携されていません。",
		Category: "spotify",
		Action:   "Spotifyでログインし直してください。",
	}
}

// NewSpotifyAPIFailedError はSpotify API呼び出し失敗エラーを生成する。
func NewSpotifyAPIFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSpotifyAPIFailed,
		Message:  "Spotify APIの呼び出しに失敗しました。",
		Category: "spotify",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidQueryError は無効なクエリパラメータエラーを生成する。
func NewInvalidQueryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエストパラメータを確認してください。",
	}
}
