package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/playpals/playpals/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (id, user_id, session_token_hash, expires_at, is_active, last_used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.TokenHash, session.ExpiresAt,
		session.IsActive, session.LastUsedAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
// 期限切れ・無効の行もそのまま返す（有効性判定はサービス層）。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_token_hash, expires_at, is_active, last_used_at, created_at
		 FROM user_sessions
		 WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.ExpiresAt,
		&session.IsActive, &session.LastUsedAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// TouchLastUsed はlast_used_atを現在時刻に更新する。
func (r *PostgresSessionRepo) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET last_used_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Invalidate はis_activeをfalseにする。対象行が無くてもエラーにならない。
func (r *PostgresSessionRepo) Invalidate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// DeleteExpired はexpires_atが過去のセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
