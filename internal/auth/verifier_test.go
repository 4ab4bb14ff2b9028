package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newKeyPair(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return key, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func sign(t *testing.T, key *rsa.PrivateKey, claims TokenClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifyAccessToken(t *testing.T) {
	key, pub := newKeyPair(t)
	v, err := NewVerifier(pub)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token := sign(t, key, TokenClaims{
		UserID:    42,
		TokenType: "access",
		Name:      "Ada Lovelace",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	session, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.UserID != 42 || session.DisplayName != "Ada Lovelace" || !session.Valid() {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	key, pub := newKeyPair(t)
	other, _ := newKeyPair(t)
	v, _ := NewVerifier(pub)

	cases := map[string]string{
		"empty":   "",
		"refresh": sign(t, key, TokenClaims{UserID: 1, TokenType: "refresh"}),
		"expired": sign(t, key, TokenClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}),
		"foreign key": sign(t, other, TokenClaims{UserID: 1}),
		"no user":     sign(t, key, TokenClaims{TokenType: "access"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifySubjectFallback(t *testing.T) {
	key, pub := newKeyPair(t)
	v, _ := NewVerifier(pub)
	token := sign(t, key, TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}})
	session, err := v.Verify(token)
	if err != nil || session.UserID != 7 {
		t.Fatalf("session=%+v err=%v", session, err)
	}
}
