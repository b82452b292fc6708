package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/playpals/playpals/internal/middleware"
)

// Pinger はヘルスチェックに必要なデータベース接続確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// Spotifyプロキシ
	SpotifyAPI    SpotifyAPIInterface
	TokenProvider AccessTokenProvider

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
	DebugEnv       *DebugHandler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS →（保護ルートのみ）Session → CSRF → RateLimit(General)
//
// 認証ルート（/api/auth/login、/api/auth/callback/spotify）は
// セッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	spotifyHandler := NewSpotifyHandler(deps.SpotifyAPI, deps.TokenProvider)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.DB))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		// OAuthフロー。ログイン開始はIP単位のレート制限付き。
		// /loginは/spotifyの別名として残す
		r.With(deps.RateLimiter.LoginMiddleware()).Get("/spotify", authHandler.Login)
		r.With(deps.RateLimiter.LoginMiddleware()).Get("/login", authHandler.Login)
		r.Get("/callback/spotify", authHandler.Callback)

		// ログアウトは未認証でも成功する（Cookieクリアのみ行う）
		r.Post("/logout", authHandler.Logout)

		// 現在のユーザー情報は認証必須
		r.With(middleware.NewSessionMiddleware(deps.UserResolver)).Get("/me", authHandler.Me)
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	if deps.DebugEnv != nil {
		r.Get("/api/debug/env", deps.DebugEnv.Env)
	}

	// --- 認証が必要なAPIルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/spotify", func(r chi.Router) {
			r.Get("/profile", spotifyHandler.Profile)
			r.Get("/currently-playing", spotifyHandler.CurrentlyPlaying)
			r.Get("/playlists", spotifyHandler.Playlists)
			r.Get("/search", spotifyHandler.Search)
			r.Get("/recently-played", spotifyHandler.RecentlyPlayed)
		})
	})

	// --- ブラウザ向けページ ---
	// 未認証はログイン開始へリダイレクトする
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionRedirectMiddleware(deps.UserResolver, deps.AuthConfig.BaseURL+"/api/auth/spotify"))

		r.Get("/dashboard", authHandler.Dashboard)
	})

	return r
}

// newHealthHandler はデータベース接続を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
		})
	}
}
