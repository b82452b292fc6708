// Package token はセッショントークンの生成・ハッシュ化と、
// 署名付きセッションアサーション（JWT）の発行・検証を提供する。
//
// 生のセッショントークンはDBに保存されない。保存されるのは
// HMAC-SHA256による鍵付きハッシュのみで、DB漏洩時にも
// 使用可能なベアラークレデンシャルが流出しない。
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer はセッションアサーションのissクレーム値。
	Issuer = "playpals"
	// Audience はセッションアサーションのaudクレーム値。
	Audience = "playpals-users"
	// AssertionTTL はセッションアサーションの有効期間。
	AssertionTTL = 7 * 24 * time.Hour

	// SessionTokenBytes はセッショントークンのエントロピー（バイト数）。
	SessionTokenBytes = 32
	// stateBytes はOAuth stateのエントロピー（バイト数）。
	stateBytes = 16
)

// GenerateRandomToken は暗号的に安全なランダムバイト列を生成し、
// hexエンコードして返す。byteLengthバイト → 2*byteLength文字。
func GenerateRandomToken(byteLength int) (string, error) {
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateOAuthState はOAuth認可リクエスト1回分のCSRF対策用state値を
// 生成する。16バイトのランダム値をURLセーフなbase64でエンコードする。
func GenerateOAuthState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken は生トークンの鍵付きハッシュ（HMAC-SHA256、hex）を返す。
// 同一の(token, secret)に対して常に同一の出力を返す。
func HashToken(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// SessionAssertion は検証済みアサーションが主張する(ユーザー, セッション)の組。
type SessionAssertion struct {
	UserID    string
	SessionID string
}

// sessionClaims はセッションアサーションのJWTクレーム。
type sessionClaims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// Codec はセッションアサーションの署名・検証を行う。
// アルゴリズムはHS256に固定し、他のアルゴリズムで署名された
// トークンは検証時に拒否する。
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec は署名シークレットからCodecを生成する。
func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// SignSessionAssertion は(userID, sessionID)を主張する署名付き
// アサーションを発行する。有効期限は発行時刻から7日。
func (c *Codec) SignSessionAssertion(userID, sessionID string) (string, error) {
	now := c.now()
	claims := &sessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AssertionTTL)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// VerifySessionAssertion はアサーションを検証し、成功時にその内容を返す。
// 署名不一致・期限切れ・iss/aud不一致・構造不正・アルゴリズム不一致は
// すべて (nil, false) に収束する。panicやerrorを呼び出し元に伝播しない。
func (c *Codec) VerifySessionAssertion(tokenString string) (*SessionAssertion, bool) {
	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid {
		return nil, false
	}

	if claims.UserID == "" || claims.SessionID == "" {
		return nil, false
	}

	return &SessionAssertion{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
	}, true
}
