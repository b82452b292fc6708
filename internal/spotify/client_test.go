package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, apiHandler http.HandlerFunc, tokenHandler http.HandlerFunc) *Client {
	t.Helper()

	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	tokenSrv := httptest.NewServer(tokenHandler)
	t.Cleanup(tokenSrv.Close)

	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/api/auth/callback/spotify",
		TokenURL:     tokenSrv.URL,
		APIBaseURL:   api.URL,
	})
}

func TestAuthorizeURL_ContainsStateAndScopes(t *testing.T) {
	c := NewClient(Config{
		ClientID:    "client-id",
		RedirectURI: "http://localhost:8080/api/auth/callback/spotify",
	})

	raw := c.AuthorizeURL("test-state-value")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse URL %q: %v", raw, err)
	}

	if u.Host != "accounts.spotify.com" {
		t.Errorf("host = %q, want accounts.spotify.com", u.Host)
	}
	q := u.Query()
	if q.Get("state") != "test-state-value" {
		t.Errorf("state = %q, want %q", q.Get("state"), "test-state-value")
	}
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q, want %q", q.Get("client_id"), "client-id")
	}
	scope := q.Get("scope")
	for _, s := range []string{"user-read-email", "user-read-private", "streaming"} {
		if !strings.Contains(scope, s) {
			t.Errorf("scope %q should contain %q", scope, s)
		}
	}
}

func TestExchangeCode_ReturnsTokens(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			t.Error("api server should not be called")
		},
		func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if got := r.FormValue("code"); got != "auth-code" {
				t.Errorf("code = %q, want %q", got, "auth-code")
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"access-abc","refresh_token":"refresh-xyz","token_type":"Bearer","expires_in":3600}`)
		},
	)

	tok, err := c.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tok.AccessToken != "access-abc" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "access-abc")
	}
	if tok.RefreshToken != "refresh-xyz" {
		t.Errorf("RefreshToken = %q, want %q", tok.RefreshToken, "refresh-xyz")
	}
	if tok.ExpiresAt.IsZero() {
		t.Error("ExpiresAt must be set")
	}
}

func TestExchangeCode_ProviderError_ReturnsError(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
		},
	)

	if _, err := c.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRefreshToken_NoRotation_ReturnsSuppliedToken(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if got := r.FormValue("grant_type"); got != "refresh_token" {
				t.Errorf("grant_type = %q, want refresh_token", got)
			}
			// リフレッシュトークンを返さないプロバイダー応答
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
		},
	)

	tok, err := c.RefreshToken(context.Background(), "stored-refresh-token")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tok.AccessToken != "new-access" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "new-access")
	}
	if tok.RefreshToken != "stored-refresh-token" {
		t.Errorf("RefreshToken = %q, want the supplied token back", tok.RefreshToken)
	}
}

func TestFetchProfile_ParsesResponse(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me" {
				t.Errorf("path = %q, want /me", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer access-abc" {
				t.Errorf("Authorization = %q, want Bearer token", got)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
				"id": "spotify-abc",
				"email": "listener@example.com",
				"display_name": "Music Fan",
				"country": "JP",
				"product": "premium",
				"images": [{"url": "https://img.example.com/a.jpg", "height": 300, "width": 300}]
			}`)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	profile, err := c.FetchProfile(context.Background(), "access-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.ID != "spotify-abc" {
		t.Errorf("ID = %q, want %q", profile.ID, "spotify-abc")
	}
	if profile.Email != "listener@example.com" {
		t.Errorf("Email = %q, want profile email", profile.Email)
	}
	if got := profile.ProfileImageURL(); got != "https://img.example.com/a.jpg" {
		t.Errorf("ProfileImageURL() = %q, want first image URL", got)
	}
}

func TestFetchProfile_EmptyID_ReturnsError(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{}`)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	if _, err := c.FetchProfile(context.Background(), "access-abc"); err == nil {
		t.Fatal("expected error for profile without id")
	}
}

func TestFetchProfileRaw_ReturnsUnparsedBody(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me" {
				t.Errorf("path = %q, want /me", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer access-abc" {
				t.Errorf("Authorization = %q, want Bearer token", got)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"spotify-abc","display_name":"Music Fan"}`)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	raw, err := c.FetchProfileRaw(context.Background(), "access-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(raw) != `{"id":"spotify-abc","display_name":"Music Fan"}` {
		t.Errorf("raw = %q, want unparsed body", string(raw))
	}
}

func TestProfileImageURL_NoImages_ReturnsEmpty(t *testing.T) {
	p := &Profile{}
	if got := p.ProfileImageURL(); got != "" {
		t.Errorf("ProfileImageURL() = %q, want empty", got)
	}
}

func TestFetchCurrentlyPlaying_NoContent_ReturnsNil(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	raw, err := c.FetchCurrentlyPlaying(context.Background(), "access-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if raw != nil {
		t.Errorf("raw = %q, want nil for 204", raw)
	}
}

func TestFetchPlaylists_SendsPagination(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/playlists" {
				t.Errorf("path = %q, want /me/playlists", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("limit") != "10" || q.Get("offset") != "20" {
				t.Errorf("query = %q, want limit=10 offset=20", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"items":[]}`)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	raw, err := c.FetchPlaylists(context.Background(), "access-abc", 10, 20)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(raw) != `{"items":[]}` {
		t.Errorf("raw = %q, want passthrough body", raw)
	}
}

func TestSearchTracks_SendsQuery(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("q") != "bohemian rhapsody" {
				t.Errorf("q = %q, want search query", q.Get("q"))
			}
			if q.Get("type") != "track" {
				t.Errorf("type = %q, want track", q.Get("type"))
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"tracks":{"items":[]}}`)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	if _, err := c.SearchTracks(context.Background(), "access-abc", "bohemian rhapsody", 20); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestGet_Non200_ReturnsErrorWithStatus(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"status":429,"message":"rate limited"}}`)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	_, err := c.FetchRecentlyPlayed(context.Background(), "access-abc", 20)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q should mention the status code", err)
	}
}
