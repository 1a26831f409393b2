package jwtinfra

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-todo-auth/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Provider signs and verifies JWTs. HS256 is used when a shared secret is
// configured, RS256 with PEM key files otherwise. Changing the key
// invalidates every outstanding token.
type Provider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	expiry    time.Duration
	now       func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.JWTExpiry <= 0 {
		return nil, errors.New("jwt expiry must be positive")
	}
	if cfg.JWTSecret != "" {
		return NewHMACProvider([]byte(cfg.JWTSecret), cfg.JWTExpiry), nil
	}
	if cfg.JWTPrivateKeyPath == "" || cfg.JWTPublicKeyPath == "" {
		return nil, errors.New("no JWT signing key configured")
	}

	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		method:    jwt.SigningMethodRS256,
		signKey:   privKey,
		verifyKey: pubKey,
		expiry:    cfg.JWTExpiry,
		now:       time.Now,
	}, nil
}

// NewHMACProvider returns an HS256 provider keyed by secret.
func NewHMACProvider(secret []byte, expiry time.Duration) *Provider {
	return &Provider{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		expiry:    expiry,
		now:       time.Now,
	}
}

func (p *Provider) Sign(userID, username string) (string, error) {
	now := p.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(p.method, claims)
	return token.SignedString(p.signKey)
}

// Verify checks the signature against the current key and rejects expired tokens.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
