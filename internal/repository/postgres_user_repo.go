package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/playpals/playpals/internal/crypto"
	"github.com/playpals/playpals/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// アクセストークン・リフレッシュトークンは書き込み時に暗号化し、
// 読み出し時に復号する。
type PostgresUserRepo struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB, cipher *crypto.TokenCipher) *PostgresUserRepo {
	return &PostgresUserRepo{db: db, cipher: cipher}
}

const userColumns = `id, spotify_id, email, display_name, profile_image, country, product,
	 access_token, refresh_token, token_expires_at, created_at, updated_at`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scanUser(row)
}

// FindBySpotifyID はSpotifyユーザーIDでユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindBySpotifyID(ctx context.Context, spotifyID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE spotify_id = $1`, spotifyID)
	return r.scanUser(row)
}

// Upsert はspotify_idをキーにユーザーを作成または更新する。
// 同一spotify_idに対する同時実行でも単一文のため両方成功する
// （複数デバイスからの同時ログインを許容する）。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	encAccess, err := r.cipher.Encrypt(user.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := r.cipher.Encrypt(user.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	stored := *user
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, spotify_id, email, display_name, profile_image, country, product,
		                    access_token, refresh_token, token_expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 ON CONFLICT (spotify_id) DO UPDATE SET
		     email = EXCLUDED.email,
		     display_name = EXCLUDED.display_name,
		     profile_image = EXCLUDED.profile_image,
		     country = EXCLUDED.country,
		     product = EXCLUDED.product,
		     access_token = EXCLUDED.access_token,
		     refresh_token = EXCLUDED.refresh_token,
		     token_expires_at = EXCLUDED.token_expires_at,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at`,
		user.ID, user.SpotifyID, user.Email, user.DisplayName, user.ProfileImage,
		user.Country, user.Product, encAccess, encRefresh, user.TokenExpiresAt,
		time.Now(),
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return &stored, nil
}

// UpdateTokens はトークンリフレッシュ後のトークンと有効期限を更新する。
func (r *PostgresUserRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	encAccess, err := r.cipher.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := r.cipher.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users
		 SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = now()
		 WHERE id = $1`,
		id, encAccess, encRefresh, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return nil
}

// scanUser は1行をmodel.Userに変換し、トークンを復号する。
func (r *PostgresUserRepo) scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var encAccess, encRefresh string
	err := row.Scan(
		&user.ID, &user.SpotifyID, &user.Email, &user.DisplayName,
		&user.ProfileImage, &user.Country, &user.Product,
		&encAccess, &encRefresh, &user.TokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.AccessToken, err = r.cipher.Decrypt(encAccess); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if user.RefreshToken, err = r.cipher.Decrypt(encRefresh); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
