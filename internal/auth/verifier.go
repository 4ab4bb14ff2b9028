package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"cvStudio/internal/config"
)

// Session 是经过验签的调用方身份，显式传递给需要身份的入口（授权校验、持久化）。
type Session struct {
	UserID      uint
	DisplayName string
}

// Valid 判断会话是否带有用户标识。
func (s Session) Valid() bool { return s.UserID != 0 }

// TokenClaims 表示访问令牌中的业务字段。
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	TokenType string `json:"token_type"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken 表示令牌缺失、签名错误、过期或类型不符。
var ErrInvalidToken = errors.New("invalid token")

// Verifier 只负责 RS256 访问令牌验签；签发在认证协作方完成。
type Verifier struct {
	publicKey *rsa.PublicKey
}

// NewVerifier 解析 PEM 公钥。
func NewVerifier(publicKeyPEM []byte) (*Verifier, error) {
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key pem is required")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	return &Verifier{publicKey: publicKey}, nil
}

// NewVerifierFromConfig 优先使用内联 PEM，否则读取 PublicKeyPath。
func NewVerifierFromConfig(cfg config.AuthConfig) (*Verifier, error) {
	if pem := strings.TrimSpace(cfg.PublicKeyPEM); pem != "" {
		return NewVerifier([]byte(pem))
	}
	data, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key %s: %w", cfg.PublicKeyPath, err)
	}
	return NewVerifier(data)
}

// Verify 解析并验证访问令牌，返回会话。
func (v *Verifier) Verify(tokenString string) (Session, error) {
	if tokenString == "" {
		return Session{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.publicKey, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("%w: claims", ErrInvalidToken)
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return Session{}, fmt.Errorf("%w: token type %q", ErrInvalidToken, claims.TokenType)
	}

	userID := claims.UserID
	if userID == 0 && claims.Subject != "" {
		n, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			return Session{}, fmt.Errorf("%w: subject", ErrInvalidToken)
		}
		userID = uint(n)
	}
	if userID == 0 {
		return Session{}, fmt.Errorf("%w: missing user", ErrInvalidToken)
	}
	return Session{UserID: userID, DisplayName: claims.Name}, nil
}
