// Package session はサーバーサイドセッションの発行・検証・破棄を提供する。
//
// 発行時に生成した生トークンはハッシュ化してのみ永続化され、
// 呼び出し元（署名付きアサーションへの埋め込み）に一度だけ返される。
// 以後の検証はアサーションが運ぶセッションIDで行う。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playpals/playpals/internal/model"
	"github.com/playpals/playpals/internal/repository"
	"github.com/playpals/playpals/internal/token"
)

// TTL はセッションの有効期間。署名付きアサーションの有効期限と揃える。
const TTL = token.AssertionTTL

// Store はセッションのライフサイクルを管理する。
type Store struct {
	repo          repository.SessionRepository
	sessionSecret string
	now           func() time.Time
}

// NewStore はStoreを生成する。
func NewStore(repo repository.SessionRepository, sessionSecret string) *Store {
	return &Store{
		repo:          repo,
		sessionSecret: sessionSecret,
		now:           time.Now,
	}
}

// CreateSession は新しいセッションを発行する。
// 32バイトの生トークンを生成し、そのHMACハッシュのみを永続化する。
// 生トークンとセッションレコードを返す。生トークンがこの呼び出しの
// 外に出るのはこの戻り値が唯一で、以後参照されることはない。
func (s *Store) CreateSession(ctx context.Context, userID string) (string, *model.Session, error) {
	rawToken, err := token.GenerateRandomToken(token.SessionTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		TokenHash:  token.HashToken(rawToken, s.sessionSecret),
		ExpiresAt:  now.Add(TTL),
		IsActive:   true,
		LastUsedAt: now,
		CreatedAt:  now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to save session: %w", err)
	}

	return rawToken, session, nil
}

// ValidateSession はセッションの有効性を検証する。
// レコードが存在しない・無効化済み・期限切れの場合は(nil, nil)を返す。
// 成功時はlast_used_atをベストエフォートで更新する
// （更新失敗は検証の成否に影響しない）。
func (s *Store) ValidateSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive || !session.ExpiresAt.After(s.now()) {
		return nil, nil
	}

	if err := s.repo.TouchLastUsed(ctx, sessionID); err != nil {
		slog.Warn("failed to update session last_used_at",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	return session, nil
}

// InvalidateSession はセッションを無効化する。
// 既に無効・存在しないセッションへの呼び出しもエラーにならない（冪等）。
func (s *Store) InvalidateSession(ctx context.Context, sessionID string) error {
	return s.repo.Invalidate(ctx, sessionID)
}

// CleanupExpiredSessions は期限切れセッションを物理削除し、削除件数を返す。
// リクエスト処理からは呼び出さず、ワーカーの定期実行専用。
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
