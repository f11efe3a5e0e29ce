package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user-not-found")
	UnexpectedBackendError  = errors.New("unexpected-backend-error")
	UnexpectedDatabaseError = errors.New("unexpected-database-error")
)

var (
	UnexpectedTokenGenerationError   = errors.New("unexpected-token-generation-error")
	UnexpectedTokenVerificationError = errors.New("unexpected-token-verification-error")
	ErrInvalidSigningAlg             = errors.New("invalid-signing-alg")
	ErrExpiredToken                  = errors.New("expired-token")
	ErrInvalidTokenSignature         = errors.New("invalid-token-signature")
	ErrCorruptedToken                = errors.New("corrupted-token")
)
