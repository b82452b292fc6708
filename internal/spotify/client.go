// Package spotify はSpotify Web APIのクライアントを提供する。
//
// クライアントはイミュータブルな設定のみを保持し、アクセストークンは
// 呼び出しごとに明示的な引数として渡す。プロセス全体で共有される
// 可変なトークン状態を持たないため、並行リクエスト間で安全に共有できる。
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultAuthURL    = "https://accounts.spotify.com/authorize"
	defaultTokenURL   = "https://accounts.spotify.com/api/token"
	defaultAPIBaseURL = "https://api.spotify.com/v1"
)

// Scopes は認可リクエストで要求する固定のスコープ一覧。
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"user-read-playback-state",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-recently-played",
	"user-top-read",
	"user-read-currently-playing",
	"streaming",
	"user-library-read",
	"user-library-modify",
}

// Config はSpotifyクライアントの設定。
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	APIBaseURL string

	// HTTPClientがnilの場合はタイムアウト付きのデフォルトを使用する。
	HTTPClient *http.Client
}

// Client はSpotify Web APIクライアント。
type Client struct {
	oauth      oauth2.Config
	apiBaseURL string
	http       *http.Client
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	if config.AuthURL == "" {
		config.AuthURL = defaultAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		oauth: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
		},
		apiBaseURL: config.APIBaseURL,
		http:       config.HTTPClient,
	}
}

// AuthorizeURL は指定stateを含むSpotify認可URLを生成する。
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Token はトークンエンドポイントから取得したトークンの組。
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ExchangeCode は認可コードをアクセストークン・リフレッシュトークンに
// 交換する。リトライは行わず、失敗は即座にエラーとして返す。
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

// RefreshToken はリフレッシュトークンで新しいアクセストークンを取得する。
// プロバイダーが新しいリフレッシュトークンを返さない場合、
// 戻り値のRefreshTokenには渡したものがそのまま入る。
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in refresh response")
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

// oauthContext はトークンエンドポイントへのリクエストに
// クライアント設定のHTTPクライアントを使わせる。
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// Image はSpotify上の画像リソース。
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Profile はSpotifyのユーザープロフィール。
type Profile struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	Country     string  `json:"country"`
	Product     string  `json:"product"`
	Images      []Image `json:"images"`
}

// ProfileImageURL は最初のプロフィール画像URLを返す。画像が無ければ空文字列。
func (p *Profile) ProfileImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// FetchProfile はアクセストークンでユーザープロフィールを取得する。
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	body, err := c.get(ctx, accessToken, "/me", nil)
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("empty id in profile response")
	}

	return &profile, nil
}

// FetchProfileRaw はユーザープロフィールをパースせずそのまま取得する。
// プロキシ経由でフロントエンドにレスポンスを素通しする用途。
func (c *Client) FetchProfileRaw(ctx context.Context, accessToken string) (json.RawMessage, error) {
	return c.get(ctx, accessToken, "/me", nil)
}

// FetchCurrentlyPlaying は再生中のトラックを取得する。
// 何も再生されていない場合（204）はnilを返す。
func (c *Client) FetchCurrentlyPlaying(ctx context.Context, accessToken string) (json.RawMessage, error) {
	return c.get(ctx, accessToken, "/me/player/currently-playing", nil)
}

// FetchPlaylists はユーザーのプレイリスト一覧を取得する。
func (c *Client) FetchPlaylists(ctx context.Context, accessToken string, limit, offset int) (json.RawMessage, error) {
	q := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	return c.get(ctx, accessToken, "/me/playlists", q)
}

// SearchTracks はトラックを検索する。
func (c *Client) SearchTracks(ctx context.Context, accessToken, query string, limit int) (json.RawMessage, error) {
	q := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(limit)},
	}
	return c.get(ctx, accessToken, "/search", q)
}

// FetchRecentlyPlayed は最近再生したトラックを取得する。
func (c *Client) FetchRecentlyPlayed(ctx context.Context, accessToken string, limit int) (json.RawMessage, error) {
	q := url.Values{
		"limit": {strconv.Itoa(limit)},
	}
	return c.get(ctx, accessToken, "/me/player/recently-played", q)
}

// get はBearerトークン付きでAPIエンドポイントにGETリクエストを送る。
// 204 No Contentの場合はnilを返す。
func (c *Client) get(ctx context.Context, accessToken, path string, query url.Values) (json.RawMessage, error) {
	u := c.apiBaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	return body, nil
}
