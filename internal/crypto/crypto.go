// Package crypto は保存データのフィールド暗号化を提供する。
//
// SpotifyのアクセストークンとリフレッシュトークンはDB保存前に
// AES-256-GCMで暗号化される。キーはFIELD_ENCRYPTION_KEY
// （64文字hex = 32バイト）から導出する。
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidKeyFormat は暗号化キーが64文字hex（32バイト）でないことを示す。
	ErrInvalidKeyFormat = errors.New("encryption key must be 64 hex characters (32 bytes)")
	// ErrInvalidCiphertext は復号できない暗号文を示す。
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// TokenCipher はトークン文字列の暗号化・復号を行う。
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher はhexエンコードされた32バイトキーからTokenCipherを生成する。
// キーの形式が不正な場合はErrInvalidKeyFormatを返す。
func NewTokenCipher(hexKey string) (*TokenCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKeyFormat
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Encrypt は平文をAES-256-GCMで暗号化し、nonceを先頭に付与した
// base64文字列を返す。空文字列はそのまま返す（未設定トークンの表現）。
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt はEncryptの出力を復号して平文を返す。
// 空文字列はそのまま返す。改ざんされた暗号文はErrInvalidCiphertextとなる。
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}
