package stubserver

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := DefaultTokenConfig("test-secret")

	token, err := CreateAccessToken("user-1", "awa", cfg)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	claims, err := VerifyToken(token, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username != "awa" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestCreateAccessToken_Validation(t *testing.T) {
	if _, err := CreateAccessToken("user-1", "awa", TokenConfig{AccessExpiry: time.Minute}); err == nil {
		t.Fatalf("empty secret accepted")
	}
	if _, err := CreateAccessToken("", "awa", DefaultTokenConfig("s")); err == nil {
		t.Fatalf("empty userID accepted")
	}
	cfg := DefaultTokenConfig("s")
	cfg.AccessExpiry = 0
	if _, err := CreateAccessToken("user-1", "awa", cfg); err == nil {
		t.Fatalf("zero expiry accepted")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	cfg := DefaultTokenConfig("test-secret")
	cfg.AccessExpiry = time.Millisecond

	token, err := CreateAccessToken("user-1", "awa", cfg)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := VerifyToken(token, cfg); err == nil {
		t.Fatalf("expired token accepted")
	}
}
