package crypto

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestNewTokenCipher_ValidKey_Succeeds(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil cipher")
	}
}

func TestNewTokenCipher_InvalidKey_ReturnsError(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"too short", "abcdef"},
		{"63 chars", strings.Repeat("a", 63)},
		{"65 chars", strings.Repeat("a", 65)},
		{"non-hex", strings.Repeat("g", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenCipher(tt.key)
			if !errors.Is(err, ErrInvalidKeyFormat) {
				t.Errorf("error = %v, want ErrInvalidKeyFormat", err)
			}
		})
	}
}

func TestTokenCipher_EncryptDecrypt_Roundtrip(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	plaintext := "BQDxvK3a-spotify-access-token-value"

	encrypted, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if encrypted == plaintext {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := c.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestTokenCipher_Encrypt_EmptyString_PassesThrough(t *testing.T) {
	c, _ := NewTokenCipher(testKey)

	encrypted, err := c.Encrypt("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if encrypted != "" {
		t.Errorf("encrypted = %q, want empty string", encrypted)
	}

	decrypted, err := c.Decrypt("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decrypted != "" {
		t.Errorf("decrypted = %q, want empty string", decrypted)
	}
}

func TestTokenCipher_Encrypt_ProducesUniqueCiphertexts(t *testing.T) {
	c, _ := NewTokenCipher(testKey)

	a, err := c.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := c.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// nonceがランダムなので同一平文でも暗号文は毎回異なる
	if a == b {
		t.Error("same plaintext produced identical ciphertexts")
	}
}

func TestTokenCipher_Decrypt_TamperedCiphertext_ReturnsError(t *testing.T) {
	c, _ := NewTokenCipher(testKey)

	encrypted, err := c.Encrypt("secret-value")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tampered := encrypted[:len(encrypted)-4] + "AAAA"
	if _, err := c.Decrypt(tampered); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("error = %v, want ErrInvalidCiphertext", err)
	}
}

func TestTokenCipher_Decrypt_GarbageInput_ReturnsError(t *testing.T) {
	c, _ := NewTokenCipher(testKey)

	inputs := []string{
		"not-base64!!!",
		"YWJj", // 有効なbase64だがnonceより短い
	}
	for _, input := range inputs {
		if _, err := c.Decrypt(input); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("Decrypt(%q) error = %v, want ErrInvalidCiphertext", input, err)
		}
	}
}

func TestTokenCipher_Decrypt_WrongKey_ReturnsError(t *testing.T) {
	c1, _ := NewTokenCipher(testKey)
	c2, _ := NewTokenCipher(strings.Repeat("ab", 32))

	encrypted, err := c1.Encrypt("secret-value")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := c2.Decrypt(encrypted); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("error = %v, want ErrInvalidCiphertext", err)
	}
}
