package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"

	"github.com/playpals/playpals/internal/config"
)

// debugEnvVars は存在を報告する環境変数の一覧。値は決して返さない。
var debugEnvVars = []string{
	"APP_ENV",
	"DATABASE_URL",
	"BASE_URL",
	"SPOTIFY_CLIENT_ID",
	"SPOTIFY_CLIENT_SECRET",
	"JWT_SECRET",
	"SESSION_SECRET",
	"FIELD_ENCRYPTION_KEY",
	"CORS_ALLOWED_ORIGIN",
}

// DebugHandler は運用診断用のHTTPハンドラー。
type DebugHandler struct {
	env       config.Env
	secretKey string
}

// NewDebugHandler はDebugHandlerを生成する。
func NewDebugHandler(env config.Env, secretKey string) *DebugHandler {
	return &DebugHandler{
		env:       env,
		secretKey: secretKey,
	}
}

// Env は環境変数の設定有無（SET/UNSET）を返す。値そのものは返さない。
// GET /api/debug/env?key=xxx
// 本番環境ではDEBUG_SECRET_KEYの一致が必須。キー未設定・不一致は401を返す。
func (h *DebugHandler) Env(w http.ResponseWriter, r *http.Request) {
	if h.env == config.EnvProduction {
		key := r.URL.Query().Get("key")
		if h.secretKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.secretKey)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	status := make(map[string]string, len(debugEnvVars))
	for _, name := range debugEnvVars {
		if os.Getenv(name) != "" {
			status[name] = "SET"
		} else {
			status[name] = "UNSET"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"environment": string(h.env),
		"variables":   status,
	})
}
