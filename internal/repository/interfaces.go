// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/playpals/playpals/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindBySpotifyID はSpotifyユーザーIDでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindBySpotifyID(ctx context.Context, spotifyID string) (*model.User, error)

	// Upsert はspotify_idをキーにユーザーを作成または更新する。
	// 単一のINSERT ... ON CONFLICT文でアトミックに実行され、
	// 保存後のユーザー（既存ユーザーの場合は既存のID）を返す。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)

	// UpdateTokens はトークンリフレッシュ後のアクセストークン・
	// リフレッシュトークン・有効期限を更新する。
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 有効性判定（is_active・期限）はサービス層（session.Store）が行い、
// リポジトリは保存されている行をそのまま返す。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// TouchLastUsed はlast_used_atを現在時刻に更新する。
	TouchLastUsed(ctx context.Context, id string) error

	// Invalidate はis_activeをfalseにする。
	// 既に無効・存在しないセッションに対してもエラーにならない（冪等）。
	Invalidate(ctx context.Context, id string) error

	// DeleteExpired はexpires_atが過去のセッションを物理削除し、
	// 削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
