package service

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prepstack/mockexam-backend/internal/config"
)

// Token validation errors.
var (
	ErrTokenInvalid = errors.New("token is not valid")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims is the identity the external auth service embeds in its tokens.
// This service only validates and reads them; issuing tokens, credentials
// and OTP flows all live in the auth service.
type Claims struct {
	jwt.RegisteredClaims
	StudentID int64  `json:"student_id"`
	Name      string `json:"name,omitempty"`
}

// TokenService validates JWTs issued by the external auth service using the
// shared HMAC secret.
type TokenService struct {
	cfg *config.Config
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{cfg: cfg}
}

// ValidateToken parses and verifies a JWT string, returning its claims.
func (s *TokenService) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	// Some auth service versions omit student_id and only set the subject.
	if claims.StudentID == 0 && claims.Subject != "" {
		if id, convErr := strconv.ParseInt(claims.Subject, 10, 64); convErr == nil {
			claims.StudentID = id
		}
	}
	if claims.StudentID == 0 {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
