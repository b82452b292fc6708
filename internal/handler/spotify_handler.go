package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/playpals/playpals/internal/middleware"
	"github.com/playpals/playpals/internal/model"
)

const (
	// defaultPageLimit はSpotifyプロキシの1回の取得件数（デフォルト）。
	defaultPageLimit = 20

	// maxPageLimit はSpotify APIが許容する取得件数の上限。
	maxPageLimit = 50
)

// SpotifyAPIInterface はSpotifyプロキシハンドラーが必要とするAPI操作。
type SpotifyAPIInterface interface {
	FetchProfileRaw(ctx context.Context, accessToken string) (json.RawMessage, error)
	FetchCurrentlyPlaying(ctx context.Context, accessToken string) (json.RawMessage, error)
	FetchPlaylists(ctx context.Context, accessToken string, limit, offset int) (json.RawMessage, error)
	SearchTracks(ctx context.Context, accessToken, query string, limit int) (json.RawMessage, error)
	FetchRecentlyPlayed(ctx context.Context, accessToken string, limit int) (json.RawMessage, error)
}

// AccessTokenProvider は認証済みユーザーの有効なSpotifyアクセストークンを
// 取得するインターフェース。必要に応じてリフレッシュを行う。
type AccessTokenProvider interface {
	EnsureFreshAccessToken(ctx context.Context, user *model.User) (string, error)
}

// SpotifyHandler はSpotify Web APIへのプロキシハンドラー。
// フロントエンドにアクセストークンを渡さず、サーバーサイドで
// トークンを付与してAPIを呼び出す。
type SpotifyHandler struct {
	api    SpotifyAPIInterface
	tokens AccessTokenProvider
}

// NewSpotifyHandler はSpotifyHandlerを生成する。
func NewSpotifyHandler(api SpotifyAPIInterface, tokens AccessTokenProvider) *SpotifyHandler {
	return &SpotifyHandler{
		api:    api,
		tokens: tokens,
	}
}

// Profile はSpotifyの最新プロフィールを返す。
// GET /api/spotify/profile
// /api/auth/meが保存済みスナップショットを返すのに対し、
// こちらはSpotify APIへのライブ取得を行う。
func (h *SpotifyHandler) Profile(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := h.accessToken(w, r)
	if !ok {
		return
	}

	raw, err := h.api.FetchProfileRaw(r.Context(), accessToken)
	if err != nil {
		h.handleAPIError(w, "profile", err)
		return
	}

	writeRawJSON(w, raw)
}

// CurrentlyPlaying は再生中のトラックを返す。
// GET /api/spotify/currently-playing
// 何も再生されていない場合は204を返す。
func (h *SpotifyHandler) CurrentlyPlaying(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := h.accessToken(w, r)
	if !ok {
		return
	}

	raw, err := h.api.FetchCurrentlyPlaying(r.Context(), accessToken)
	if err != nil {
		h.handleAPIError(w, "currently-playing", err)
		return
	}
	if raw == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeRawJSON(w, raw)
}

// Playlists はユーザーのプレイリスト一覧を返す。
// GET /api/spotify/playlists?limit=20&offset=0
func (h *SpotifyHandler) Playlists(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := h.accessToken(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultPageLimit)
	offset := queryInt(r, "offset", 0)

	raw, err := h.api.FetchPlaylists(r.Context(), accessToken, limit, offset)
	if err != nil {
		h.handleAPIError(w, "playlists", err)
		return
	}

	writeRawJSON(w, raw)
}

// Search はトラックを検索する。
// GET /api/spotify/search?q=xxx&limit=20
func (h *SpotifyHandler) Search(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := h.accessToken(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidQueryError("q is required"))
		return
	}

	limit := queryInt(r, "limit", defaultPageLimit)

	raw, err := h.api.SearchTracks(r.Context(), accessToken, query, limit)
	if err != nil {
		h.handleAPIError(w, "search", err)
		return
	}

	writeRawJSON(w, raw)
}

// RecentlyPlayed は最近再生したトラックを返す。
// GET /api/spotify/recently-played?limit=20
func (h *SpotifyHandler) RecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := h.accessToken(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultPageLimit)

	raw, err := h.api.FetchRecentlyPlayed(r.Context(), accessToken, limit)
	if err != nil {
		h.handleAPIError(w, "recently-played", err)
		return
	}

	writeRawJSON(w, raw)
}

// accessToken は認証済みユーザーの有効なアクセストークンを解決する。
// 失敗時はエラーレスポンスを書き込み、falseを返す。
func (h *SpotifyHandler) accessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}

	accessToken, err := h.tokens.EnsureFreshAccessToken(r.Context(), user)
	if err != nil {
		slog.Error("failed to ensure fresh access token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewSpotifyNotConnectedError())
		return "", false
	}

	return accessToken, true
}

// handleAPIError はSpotify API呼び出しの失敗を502で返す。
func (h *SpotifyHandler) handleAPIError(w http.ResponseWriter, endpoint string, err error) {
	slog.Error("spotify api request failed",
		slog.String("endpoint", endpoint),
		slog.String("error", err.Error()),
	)
	middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewSpotifyAPIFailedError())
}

// queryInt はクエリパラメータを整数として読み取る。
// 欠落・不正・範囲外の場合はデフォルト値にフォールバックする。
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > maxPageLimit {
		return def
	}
	return v
}

// writeRawJSON はSpotify APIのレスポンスボディをそのまま返す。
func writeRawJSON(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}
