// Package auth holds the JWT validator/generator pair carrying bidder
// identity (weight, admin flag), plus the Token Cache and rate limiters
// that sit in front of it.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
)

// Claims carries everything needed to build a Principal without a
// datastore round-trip: weight and admin status are embedded at issuance
// since they are treated as immutable for the token's lifetime.
type Claims struct {
	UserID   string  `json:"sub"`
	Username string  `json:"username"`
	Weight   float64 `json:"weight"`
	IsAdmin  bool    `json:"is_admin"`
	jwt.RegisteredClaims
}

// JWTConfig configures a validator or generator.
type JWTConfig struct {
	SecretKey string
	Issuer    string
}

// Validator validates bearer tokens and extracts Claims.
type Validator struct {
	secretKey []byte
	issuer    string
}

func NewValidator(cfg JWTConfig) (*Validator, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key required")
	}
	return &Validator{secretKey: []byte(cfg.SecretKey), issuer: cfg.Issuer}, nil
}

func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method)
		}
		return v.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidToken)
	}
	return claims, nil
}

// Generator issues tokens for an administrative login flow outside this
// core's scope; nothing in this repository calls it.
type Generator struct {
	secretKey  []byte
	issuer     string
	expiryTime time.Duration
}

func NewGenerator(cfg JWTConfig, expiry time.Duration) (*Generator, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key required")
	}
	return &Generator{secretKey: []byte(cfg.SecretKey), issuer: cfg.Issuer, expiryTime: expiry}, nil
}

func (g *Generator) GenerateToken(userID, username string, weight float64, isAdmin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Weight:   weight,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiryTime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secretKey)
}
