// Package auth はSpotify OAuth認証フローとセッション解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playpals/playpals/internal/metrics"
	"github.com/playpals/playpals/internal/model"
	"github.com/playpals/playpals/internal/repository"
	"github.com/playpals/playpals/internal/spotify"
	"github.com/playpals/playpals/internal/token"
)

// refreshLeeway はアクセストークンの残り有効期間がこの値を下回ったら
// リフレッシュする閾値。
const refreshLeeway = time.Minute

// SpotifyClient はOAuthフローとプロフィール取得に必要なSpotify API操作。
type SpotifyClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*spotify.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (*spotify.Profile, error)
	RefreshToken(ctx context.Context, refreshToken string) (*spotify.Token, error)
}

// SessionStore はセッションのライフサイクル操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionStore interface {
	CreateSession(ctx context.Context, userID string) (string, *model.Session, error)
	ValidateSession(ctx context.Context, sessionID string) (*model.Session, error)
	InvalidateSession(ctx context.Context, sessionID string) error
}

// AssertionCodec はセッションアサーションの署名・検証インターフェース。
type AssertionCodec interface {
	SignSessionAssertion(userID, sessionID string) (string, error)
	VerifySessionAssertion(tokenString string) (*token.SessionAssertion, bool)
}

// DisplayNameSanitizer はプロフィール表示名のサニタイズインターフェース。
type DisplayNameSanitizer interface {
	SanitizeDisplayName(name string) string
}

// CallbackError はOAuthコールバック処理の失敗を表す。
// Reasonはエラーページへ引き渡す理由タグとなる。
type CallbackError struct {
	Reason model.AuthErrorReason
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *CallbackError) Error() string {
	return fmt.Sprintf("oauth callback failed (%s): %v", e.Reason, e.Err)
}

// Unwrap はラップされた原因エラーを返す。
func (e *CallbackError) Unwrap() error {
	return e.Err
}

// Service はOAuth認証フローのオーケストレーションと
// リクエストごとのユーザー解決を提供する。
type Service struct {
	spotify   SpotifyClient
	users     repository.UserRepository
	sessions  SessionStore
	codec     AssertionCodec
	sanitizer DisplayNameSanitizer
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewService(
	spotifyClient SpotifyClient,
	users repository.UserRepository,
	sessions SessionStore,
	codec AssertionCodec,
	sanitizer DisplayNameSanitizer,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Service{
		spotify:   spotifyClient,
		users:     users,
		sessions:  sessions,
		codec:     codec,
		sanitizer: sanitizer,
		metrics:   recorder,
		now:       time.Now,
	}
}

// AuthorizeURL は指定stateを含むSpotify認可URLを返す。
func (s *Service) AuthorizeURL(state string) string {
	return s.spotify.AuthorizeURL(state)
}

// HandleCallback は検証済みの認可コードを処理し、署名付きセッション
// アサーションを発行する。stateの検証はハンドラー層で完了している前提。
//
// 処理順序: コード交換 → プロフィール取得 → プロフィール検証 →
// ユーザーupsert → セッション作成 → アサーション署名。
// プロフィール検証に失敗した場合、DBへの書き込みは一切行われない。
// 失敗はすべて*CallbackErrorとして返され、Reasonがエラーページの
// タグになる。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, error) {
	// 1. 認可コードをトークンに交換
	tok, err := s.spotify.ExchangeCode(ctx, code)
	if err != nil {
		return "", s.callbackError(model.ReasonOAuthError, fmt.Errorf("failed to exchange code: %w", err))
	}

	// 2. 新しいアクセストークンでプロフィールを取得
	profile, err := s.spotify.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		return "", s.callbackError(model.ReasonOAuthError, fmt.Errorf("failed to fetch profile: %w", err))
	}

	// 3. 必須フィールドの検証。メールアドレスが無いアカウントは拒否する
	//    （書き込み前に検証し、失敗時はユーザーもセッションも作成しない）。
	if profile.Email == "" {
		return "", s.callbackError(model.ReasonEmailRequired, fmt.Errorf("spotify profile has no email"))
	}

	// 4. 任意フィールドのフォールバック。表示名が無い場合は
	//    Spotify IDから決定的な合成名を生成する。
	displayName := s.sanitizer.SanitizeDisplayName(profile.DisplayName)
	if displayName == "" {
		displayName = "listener-" + profile.ID
	}

	// 5. spotify_idをキーにユーザーをupsert
	user, err := s.users.Upsert(ctx, &model.User{
		ID:             uuid.New().String(),
		SpotifyID:      profile.ID,
		Email:          profile.Email,
		DisplayName:    displayName,
		ProfileImage:   profile.ProfileImageURL(),
		Country:        profile.Country,
		Product:        profile.Product,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: tok.ExpiresAt,
	})
	if err != nil {
		return "", s.callbackError(model.ReasonOAuthError, fmt.Errorf("failed to upsert user: %w", err))
	}

	// 6. セッションを発行（ユーザーupsertとは独立した書き込み。
	//    ここで失敗してもユーザー行は残るが、次回ログインのupsertで
	//    上書きされるため補償処理は不要）。
	_, sess, err := s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return "", s.callbackError(model.ReasonOAuthError, fmt.Errorf("failed to create session: %w", err))
	}

	// 7. セッションIDを埋め込んだアサーションに署名
	assertion, err := s.codec.SignSessionAssertion(user.ID, sess.ID)
	if err != nil {
		return "", s.callbackError(model.ReasonOAuthError, fmt.Errorf("failed to sign session assertion: %w", err))
	}

	s.metrics.RecordLoginSuccess()
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("session_id", sess.ID),
	)

	return assertion, nil
}

// callbackError は失敗メトリクスを記録して*CallbackErrorを返す。
func (s *Service) callbackError(reason model.AuthErrorReason, err error) error {
	s.metrics.RecordCallbackFailure(string(reason))
	return &CallbackError{Reason: reason, Err: err}
}

// CallbackReason はエラーからコールバック失敗の理由タグを取り出す。
// *CallbackError以外はReasonOAuthErrorにフォールバックする。
func CallbackReason(err error) model.AuthErrorReason {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Reason
	}
	return model.ReasonOAuthError
}

// Logout はセッションCookie値を検証し、有効であれば参照先の
// セッションをサーバーサイドで無効化する。検証に失敗した場合は
// 何もしない（Cookieの削除はハンドラー側で常に行われる）。
func (s *Service) Logout(ctx context.Context, assertionString string) error {
	assertion, ok := s.codec.VerifySessionAssertion(assertionString)
	if !ok {
		return nil
	}

	if err := s.sessions.InvalidateSession(ctx, assertion.SessionID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", assertion.SessionID))
	return nil
}

// ResolveCurrentUser はセッションCookie値から認証済みユーザーを解決する。
// アサーション不正・セッション無効・ユーザー欠落・永続化層の失敗は
// すべてnil（未認証）に収束する。永続化層のエラーはログにのみ残す
// （フェイルクローズ）。
func (s *Service) ResolveCurrentUser(ctx context.Context, assertionString string) *model.User {
	if assertionString == "" {
		return nil
	}

	assertion, ok := s.codec.VerifySessionAssertion(assertionString)
	if !ok {
		s.metrics.RecordSessionValidation("invalid")
		return nil
	}

	sess, err := s.sessions.ValidateSession(ctx, assertion.SessionID)
	if err != nil {
		s.metrics.RecordSessionValidation("error")
		slog.Error("session validation failed",
			slog.String("session_id", assertion.SessionID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if sess == nil {
		s.metrics.RecordSessionValidation("invalid")
		return nil
	}

	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		s.metrics.RecordSessionValidation("error")
		slog.Error("failed to load user for session",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if user == nil {
		s.metrics.RecordSessionValidation("invalid")
		return nil
	}

	s.metrics.RecordSessionValidation("valid")
	return user
}

// EnsureFreshAccessToken は有効なSpotifyアクセストークンを返す。
// 保存済みトークンの残り有効期間が十分であればそのまま返し、
// そうでなければリフレッシュして新しいトークンを永続化する。
// リフレッシュトークンのローテーション: プロバイダーが新しい
// リフレッシュトークンを返した場合のみ置き換える。
func (s *Service) EnsureFreshAccessToken(ctx context.Context, user *model.User) (string, error) {
	if user.AccessToken != "" && user.TokenExpiresAt.After(s.now().Add(refreshLeeway)) {
		return user.AccessToken, nil
	}

	if user.RefreshToken == "" {
		return "", fmt.Errorf("no refresh token for user %s", user.ID)
	}

	tok, err := s.spotify.RefreshToken(ctx, user.RefreshToken)
	if err != nil {
		s.metrics.RecordTokenRefresh("failure")
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	refreshToken := user.RefreshToken
	if tok.RefreshToken != "" {
		refreshToken = tok.RefreshToken
	}

	if err := s.users.UpdateTokens(ctx, user.ID, tok.AccessToken, refreshToken, tok.ExpiresAt); err != nil {
		s.metrics.RecordTokenRefresh("failure")
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	user.AccessToken = tok.AccessToken
	user.RefreshToken = refreshToken
	user.TokenExpiresAt = tok.ExpiresAt

	s.metrics.RecordTokenRefresh("success")
	slog.Info("spotify access token refreshed", slog.String("user_id", user.ID))

	return tok.AccessToken, nil
}
