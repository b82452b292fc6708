package token

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateRandomToken_ReturnsHexOfRequestedLength(t *testing.T) {
	got, err := GenerateRandomToken(SessionTokenBytes)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(got) != SessionTokenBytes*2 {
		t.Errorf("len = %d, want %d", len(got), SessionTokenBytes*2)
	}
	if _, err := hex.DecodeString(got); err != nil {
		t.Errorf("expected hex string, got %q", got)
	}
}

func TestGenerateRandomToken_ProducesUniqueValues(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		got, err := GenerateRandomToken(SessionTokenBytes)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if seen[got] {
			t.Fatalf("duplicate token generated: %q", got)
		}
		seen[got] = true
	}
}

func TestGenerateOAuthState_ReturnsURLSafeBase64(t *testing.T) {
	got, err := GenerateOAuthState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(got)
	if err != nil {
		t.Fatalf("expected URL-safe base64, got %q: %v", got, err)
	}
	if len(decoded) != 16 {
		t.Errorf("decoded length = %d, want 16", len(decoded))
	}
}

func TestHashToken_IsDeterministic(t *testing.T) {
	a := HashToken("raw-token", "secret")
	b := HashToken("raw-token", "secret")
	if a != b {
		t.Errorf("same input produced different hashes: %q vs %q", a, b)
	}
}

func TestHashToken_DiffersByTokenAndSecret(t *testing.T) {
	base := HashToken("raw-token", "secret")

	if got := HashToken("other-token", "secret"); got == base {
		t.Error("different tokens produced the same hash")
	}
	if got := HashToken("raw-token", "other-secret"); got == base {
		t.Error("different secrets produced the same hash")
	}
}

func TestHashToken_OutputIsNotTheToken(t *testing.T) {
	raw := "raw-session-token-value"
	got := HashToken(raw, "secret")
	if strings.Contains(got, raw) {
		t.Errorf("hash %q leaks the raw token", got)
	}
	if len(got) != 64 { // sha256 hex
		t.Errorf("len = %d, want 64", len(got))
	}
}

func TestCodec_SignAndVerify_Roundtrip(t *testing.T) {
	codec := NewCodec("test-jwt-secret")

	signed, err := codec.SignSessionAssertion("user-123", "session-456")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertion, ok := codec.VerifySessionAssertion(signed)
	if !ok {
		t.Fatal("expected valid assertion")
	}
	if assertion.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", assertion.UserID, "user-123")
	}
	if assertion.SessionID != "session-456" {
		t.Errorf("SessionID = %q, want %q", assertion.SessionID, "session-456")
	}
}

func TestCodec_Verify_GarbageInput_ReturnsFalse(t *testing.T) {
	codec := NewCodec("test-jwt-secret")

	inputs := []string{
		"",
		"not-a-jwt",
		"a.b.c",
		"eyJhbGciOiJIUzI1NiJ9.invalid.signature",
	}
	for _, input := range inputs {
		if _, ok := codec.VerifySessionAssertion(input); ok {
			t.Errorf("VerifySessionAssertion(%q) = true, want false", input)
		}
	}
}

func TestCodec_Verify_WrongSecret_ReturnsFalse(t *testing.T) {
	signer := NewCodec("correct-secret")
	verifier := NewCodec("wrong-secret")

	signed, err := signer.SignSessionAssertion("user-123", "session-456")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := verifier.VerifySessionAssertion(signed); ok {
		t.Error("assertion signed with another secret was accepted")
	}
}

func TestCodec_Verify_ExpiredAssertion_ReturnsFalse(t *testing.T) {
	codec := NewCodec("test-jwt-secret")

	// 発行時刻を8日前に固定して署名する
	past := time.Now().Add(-8 * 24 * time.Hour)
	codec.now = func() time.Time { return past }
	signed, err := codec.SignSessionAssertion("user-123", "session-456")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 現在時刻で検証すると期限切れ
	codec.now = time.Now
	if _, ok := codec.VerifySessionAssertion(signed); ok {
		t.Error("expired assertion was accepted")
	}
}

func TestCodec_Verify_JustBeforeExpiry_Succeeds(t *testing.T) {
	codec := NewCodec("test-jwt-secret")

	issued := time.Now()
	codec.now = func() time.Time { return issued }
	signed, err := codec.SignSessionAssertion("user-123", "session-456")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	codec.now = func() time.Time { return issued.Add(AssertionTTL - time.Minute) }
	if _, ok := codec.VerifySessionAssertion(signed); !ok {
		t.Error("assertion just before expiry was rejected")
	}
}

func TestCodec_Verify_WrongIssuer_ReturnsFalse(t *testing.T) {
	secret := []byte("test-jwt-secret")
	claims := &sessionClaims{
		UserID:    "user-123",
		SessionID: "session-456",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	codec := NewCodec("test-jwt-secret")
	if _, ok := codec.VerifySessionAssertion(signed); ok {
		t.Error("assertion with wrong issuer was accepted")
	}
}

func TestCodec_Verify_WrongAudience_ReturnsFalse(t *testing.T) {
	secret := []byte("test-jwt-secret")
	claims := &sessionClaims{
		UserID:    "user-123",
		SessionID: "session-456",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{"other-audience"},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	codec := NewCodec("test-jwt-secret")
	if _, ok := codec.VerifySessionAssertion(signed); ok {
		t.Error("assertion with wrong audience was accepted")
	}
}

func TestCodec_Verify_UnsignedAlgorithm_ReturnsFalse(t *testing.T) {
	claims := &sessionClaims{
		UserID:    "user-123",
		SessionID: "session-456",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	codec := NewCodec("test-jwt-secret")
	if _, ok := codec.VerifySessionAssertion(signed); ok {
		t.Error("unsigned (alg=none) assertion was accepted")
	}
}

func TestCodec_Verify_MissingIDs_ReturnsFalse(t *testing.T) {
	secret := []byte("test-jwt-secret")
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	codec := NewCodec("test-jwt-secret")
	if _, ok := codec.VerifySessionAssertion(signed); ok {
		t.Error("assertion without user and session IDs was accepted")
	}
}
