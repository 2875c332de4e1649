// Package auth issues and validates the operator tokens that guard the
// administrative read endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors returned by the auth service.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrMissingClaims    = errors.New("missing required claims")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrNotAdmin         = errors.New("token does not grant admin access")
)

// Issuer is stamped into every token this service signs.
const Issuer = "buildswift"

// RoleAdmin is the only role that may read payment and deployment logs.
const RoleAdmin = "admin"

// Claims are the validated contents of an operator token.
type Claims struct {
	Subject string    `json:"sub"`
	Email   string    `json:"email,omitempty"`
	Role    string    `json:"role"`
	Exp     time.Time `json:"exp"`
}

// Config holds authentication configuration.
type Config struct {
	JWTSecret   []byte
	TokenExpiry time.Duration
}

// Service signs and validates operator tokens.
type Service struct {
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new authentication service.
func NewService(cfg *Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		jwtSecret:   cfg.JWTSecret,
		tokenExpiry: expiry,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateToken creates an admin token for subject.
func (s *Service) GenerateToken(subject, email string) (string, error) {
	if subject == "" {
		return "", ErrMissingClaims
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":   Issuer,
		"sub":   subject,
		"email": email,
		"role":  RoleAdmin,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(s.tokenExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature, expiry and issuer of tokenString and
// returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, _ := mapClaims["sub"].(string)
	if subject == "" {
		return nil, ErrMissingClaims
	}
	email, _ := mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)
	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrMissingClaims
	}

	return &Claims{
		Subject: subject,
		Email:   email,
		Role:    role,
		Exp:     exp.Time,
	}, nil
}

// RequireAdmin validates tokenString and checks it carries the admin role.
func (s *Service) RequireAdmin(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

// ExtractBearerToken extracts the token from a Bearer authorization header.
func ExtractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// SecureCompare performs a constant-time comparison of two strings.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
