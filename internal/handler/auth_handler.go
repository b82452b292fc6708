// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/playpals/playpals/internal/auth"
	"github.com/playpals/playpals/internal/middleware"
	"github.com/playpals/playpals/internal/model"
	"github.com/playpals/playpals/internal/token"
)

// stateCookieName はOAuth stateを保持する一時Cookieの名前。
const stateCookieName = "spotify_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	AuthorizeURL(state string) string
	HandleCallback(ctx context.Context, code string) (string, error)
	Logout(ctx context.Context, assertionString string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	StateMaxAge   int // stateCookieの有効期間（秒）
}

// AuthHandler はSpotify OAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はSpotify OAuthフローを開始する。
// GET /api/auth/spotify（/api/auth/loginは別名）
// リクエストごとに新しいstateを生成する。並行するログイン試行は
// 後から設定されたstateCookieが勝つ。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := token.GenerateOAuthState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   h.config.StateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.AuthorizeURL(state), http.StatusFound)
}

// Callback はSpotifyからのOAuthコールバックを処理する。
// GET /api/auth/callback/spotify?code=xxx&state=yyy
//
// 失敗はすべて理由タグ付きでエラーページへリダイレクトする:
// access_denied（ユーザーが認可を拒否）、invalid_state（state検証失敗）、
// oauth_error（プロバイダーとの交換・プロフィール取得失敗）、
// email_required（メールアドレスの無いアカウント）。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. プロバイダーからのエラー通知。ユーザーが認可を拒否した場合など
	if errParam := query.Get("error"); errParam != "" {
		slog.Warn("oauth callback returned error", slog.String("provider_error", errParam))
		h.redirectError(w, r, model.ReasonAccessDenied)
		return
	}

	// 2. stateの検証（CSRF対策）。欠落も不一致も同じタグに収束させる
	state := query.Get("state")
	code := query.Get("code")
	stateCookie, err := r.Cookie(stateCookieName)
	if code == "" || state == "" || err != nil || stateCookie.Value == "" {
		slog.Warn("oauth callback missing code or state")
		h.redirectError(w, r, model.ReasonInvalidState)
		return
	}
	if subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch")
		h.redirectError(w, r, model.ReasonInvalidState)
		return
	}

	// 3. stateCookieは一度きり。検証後すぐ削除する
	h.clearStateCookie(w)

	// 4. 認証処理
	assertion, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.redirectError(w, r, auth.CallbackReason(err))
		return
	}

	// 5. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    assertion,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 6. ダッシュボードへリダイレクト
	http.Redirect(w, r, h.config.BaseURL+"/dashboard", http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /api/auth/logout
// サーバーサイドの無効化に失敗してもCookieは必ずクリアし、
// 常に成功レスポンスを返す。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to invalidate session on logout", slog.String("error", logoutErr.Error()))
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{
		"success": true,
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
// セッションミドルウェアの後に配置する。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":           user.ID,
		"spotifyId":    user.SpotifyID,
		"email":        user.Email,
		"displayName":  user.DisplayName,
		"profileImage": user.ProfileImage,
		"country":      user.Country,
		"product":      user.Product,
	})
}

// Dashboard はログイン済みユーザー向けのダッシュボードを返す。
// GET /dashboard
// リダイレクト型の認証ゲートの後に配置する。
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, h.config.BaseURL+"/api/auth/spotify", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"displayName": user.DisplayName,
		"product":     user.Product,
	})
}

// redirectError は理由タグ付きでエラーページへリダイレクトする。
func (h *AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, reason model.AuthErrorReason) {
	h.clearStateCookie(w)
	http.Redirect(w, r, h.config.BaseURL+"/auth/error?error="+string(reason), http.StatusFound)
}

// clearStateCookie はOAuth stateの一時Cookieを削除する。
func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
