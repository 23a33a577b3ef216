// Package auth issues and validates the JWTs that gate havenserver's
// HTTP API, keyed to a caller's Ed25519 identity public key rather than a
// phone-verified account, with dual-key rotation and Redis-backed token
// blacklisting adapted from the parent backend's AuthService.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jaydenbeard/haven/internal/config"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidToken     = errors.New("auth: invalid token")
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrJWTSecretEmpty   = errors.New("auth: JWT secret is empty")
	ErrJWTSecretWeak    = errors.New("auth: JWT secret is too weak")
	ErrTokenBlacklisted = errors.New("auth: token has been blacklisted")
)

// Service issues and validates JWTs scoped to a caller's identity
// fingerprint, with dual-key rotation support so tokens signed just
// before a rotation remain valid through the transition window.
type Service struct {
	jwtSecret         []byte
	previousJWTSecret []byte
	secretLock        sync.RWMutex
	rotationLogger    *log.Logger
	securityLogger    *log.Logger
	redisClient       *redis.Client
	blacklistLock     sync.RWMutex
}

// Claims identifies the caller by their Ed25519 identity public key
// (base64) and its fingerprint, rather than by an account ID.
type Claims struct {
	IdentityKey string `json:"identity_key"`
	Fingerprint string `json:"fingerprint"`
	jwt.RegisteredClaims
}

// NewService builds an auth service backed by a Redis blacklist.
func NewService(jwtSecret string, redisClient *redis.Client) (*Service, error) {
	if jwtSecret == "" {
		return nil, ErrJWTSecretEmpty
	}
	if len(jwtSecret) < 32 {
		return nil, ErrJWTSecretWeak
	}
	if !validateSecretStrength(jwtSecret) {
		return nil, ErrJWTSecretWeak
	}

	current, previous, hasPrevious := config.GetAllActiveSecrets()
	if current == "" {
		current = jwtSecret
	}
	if !hasPrevious {
		previous = ""
	}

	return &Service{
		jwtSecret:         []byte(current),
		previousJWTSecret: []byte(previous),
		rotationLogger:    log.New(os.Stdout, "[AUTH-ROTATION] ", log.Ldate|log.Ltime|log.LUTC),
		securityLogger:    log.New(os.Stdout, "[AUTH-SECURITY] ", log.Ldate|log.Ltime|log.LUTC),
		redisClient:       redisClient,
	}, nil
}

func validateSecretStrength(secret string) bool {
	entropy := 0.0
	counts := make(map[rune]int)
	for _, r := range secret {
		counts[r]++
	}
	for _, count := range counts {
		p := float64(count) / float64(len(secret))
		entropy -= p * math.Log2(p)
	}
	return entropy >= 3.5
}

// GetJWTSecret provides thread-safe access to the active secret.
func (s *Service) GetJWTSecret() []byte {
	s.secretLock.RLock()
	defer s.secretLock.RUnlock()
	return s.jwtSecret
}

func (s *Service) getPreviousJWTSecret() []byte {
	s.secretLock.RLock()
	defer s.secretLock.RUnlock()
	return s.previousJWTSecret
}

// RotateJWTSecret rotates the signing secret, keeping the old one valid
// for tokens already issued.
func (s *Service) RotateJWTSecret(newSecret string) error {
	if newSecret == "" {
		return ErrJWTSecretEmpty
	}
	if len(newSecret) < 32 || !validateSecretStrength(newSecret) {
		return ErrJWTSecretWeak
	}

	s.secretLock.Lock()
	defer s.secretLock.Unlock()

	s.previousJWTSecret = s.jwtSecret
	s.jwtSecret = []byte(newSecret)

	if err := config.RotateSecret(newSecret); err != nil {
		s.rotationLogger.Printf("warning: failed to update global key manager: %v", err)
	}
	s.rotationLogger.Printf("JWT secret rotated, previous secret accepted through transition window")
	return nil
}

// IssueToken mints a one-hour access token scoped to an identity key.
func (s *Service) IssueToken(identityKeyB64, fingerprint string) (token string, expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(time.Hour)
	claims := &Claims{
		IdentityKey: identityKeyB64,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   fingerprint,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tok.SignedString(s.GetJWTSecret())
	return token, expiresAt, err
}

// ValidateToken validates a JWT against the current secret, falling back
// to the previous secret during a rotation's transition window, and
// rejects anything on the blacklist.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if blacklisted, reason, err := s.IsTokenBlacklisted(tokenString); err == nil && blacklisted {
		s.securityLogger.Printf("rejected blacklisted token (reason: %s)", reason)
		return nil, ErrTokenBlacklisted
	}

	claims, err := s.validateWithSecret(tokenString, s.GetJWTSecret())
	if err == nil {
		return claims, nil
	}

	if previous := s.getPreviousJWTSecret(); len(previous) > 0 {
		claims, err2 := s.validateWithSecret(tokenString, previous)
		if err2 == nil {
			s.rotationLogger.Printf("token validated against previous secret during rotation window")
			return claims, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	return nil, ErrInvalidToken
}

func (s *Service) validateWithSecret(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BlacklistToken revokes a token before its natural expiry, e.g. after a
// compromised device is removed from an account.
func (s *Service) BlacklistToken(tokenString, reason string) error {
	s.blacklistLock.Lock()
	defer s.blacklistLock.Unlock()

	hash := hashToken(tokenString)
	ctx := context.Background()
	if err := s.redisClient.Set(ctx, "blacklist:"+hash, reason, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	s.securityLogger.Printf("token blacklisted: %s... (reason: %s)", hash[:8], reason)
	return nil
}

// IsTokenBlacklisted checks whether a token has been revoked.
func (s *Service) IsTokenBlacklisted(tokenString string) (bool, string, error) {
	s.blacklistLock.RLock()
	defer s.blacklistLock.RUnlock()

	ctx := context.Background()
	reason, err := s.redisClient.Get(ctx, "blacklist:"+hashToken(tokenString)).Result()
	if err == redis.Nil {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("check token blacklist: %w", err)
	}
	return true, reason, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
