// Package model はドメインモデルを定義する。
package model

import "time"

// User はSpotifyアカウントで認証したサービス利用ユーザーを表す。
// spotify_idを一意キーとして、同一のSpotifyアカウントに対して
// ローカルユーザーは最大1件しか存在しない。
type User struct {
	ID           string
	SpotifyID    string
	Email        string
	DisplayName  string
	ProfileImage string
	Country      string
	Product      string

	// Spotify APIアクセス用のトークン。DB上ではAES-256-GCMで暗号化される。
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// 生のセッショントークンは永続化せず、HMAC-SHA256ハッシュのみを保存する。
// is_activeがtrueかつexpires_atが未来の場合のみ有効。
type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	IsActive   bool
	LastUsedAt time.Time
	CreatedAt  time.Time
}
