package auth

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService([]byte("test-secret-key"), time.Hour)

	token, err := svc.GenerateToken("operator")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "operator" {
		t.Errorf("subject = %q, want operator", claims.Subject)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewJWTService([]byte("secret-a"), time.Hour)
	other := NewJWTService([]byte("secret-b"), time.Hour)

	token, err := svc.GenerateToken("operator")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token signed with a different secret should not validate")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewJWTService([]byte("test-secret-key"), -time.Minute)

	token, err := svc.GenerateToken("operator")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expired token should not validate")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewJWTService([]byte("test-secret-key"), time.Hour)

	for _, token := range []string{"", "not-a-token", strings.Repeat("x", 300)} {
		if _, err := svc.ValidateToken(token); err == nil {
			t.Errorf("garbage token %q should not validate", token)
		}
	}
}
