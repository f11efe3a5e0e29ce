// Package crypto verifies the HS256 session tokens minted by the identity
// provider. The shared key is the only trust anchor: this service never
// issues credentials itself, so Generate exists for the provider side and
// for tests.
package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/InfiniteDev0/JoinUp/domain"
)

// sessionClaims is the token payload: the user id plus the registered
// expiry/issued-at pair. Fields must be exported for JSON serialization.
type sessionClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	key    []byte
	maxAge time.Duration
}

func NewJWTManager(key string, maxAge time.Duration) *JWTManager {
	return &JWTManager{key: []byte(key), maxAge: maxAge}
}

// keyFunc hands the shared key to the parser, but only for HMAC tokens. A
// token that names any other algorithm (including "none") is rejected before
// its signature is ever checked.
func (m *JWTManager) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, domain.ErrInvalidSigningAlg
	}
	return m.key, nil
}

func (m *JWTManager) Generate(uid string, now time.Time) (string, error) {
	claims := sessionClaims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenGenerationError, err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the uid carried by the
// token. Every failure maps onto one of the domain token errors so callers
// can distinguish an expired session from a forged one.
func (m *JWTManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, m.keyFunc)
	if err != nil {
		return "", classifyParseError(err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.UID == "" {
		return "", domain.ErrCorruptedToken
	}
	return claims.UID, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidSigningAlg):
		return domain.ErrInvalidSigningAlg
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrExpiredToken
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return domain.ErrInvalidTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.ErrCorruptedToken
	default:
		return fmt.Errorf("%w: %w", domain.UnexpectedTokenVerificationError, err)
	}
}
