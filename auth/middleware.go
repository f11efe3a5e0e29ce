// Package auth holds the verify-only session middleware. Tokens are minted
// by the external identity provider; this service only checks them and
// extracts the session uid.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/InfiniteDev0/JoinUp/domain"
)

var (
	ErrMissingTokenStr = "missing-token"
	ErrExpiredTokenStr = "expired-token"
	ErrUnknownStr      = "unknown-error"
)

// TokenVerifier turns a session token into the uid it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// sessionToken reads the token from the cookie the web client carries, or
// from the Authorization header for non-browser clients.
func sessionToken(ctx *gin.Context) (string, bool) {
	if token, err := ctx.Cookie("token"); err == nil && token != "" {
		return token, true
	}
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token, true
	}
	return "", false
}

// redactToken keeps enough of the signature to correlate log lines without
// logging a replayable credential.
func redactToken(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return token
	}
	sneak := ""
	r := []rune(parts[2])
	if len(r) >= 10 {
		sneak = string(r[:10]) + strings.Repeat("*", len(r)-10)
	} else {
		sneak = parts[2]
	}
	return parts[0] + "." + parts[1] + "." + sneak
}

// RequireAuth verifies the session token and stores the uid in the gin
// context. Forged-looking tokens get a slow, uninformative 500 instead of a
// helpful 401.
func RequireAuth(verifier TokenVerifier, trollTime time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := sessionToken(ctx)
		if !ok {
			ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
			ctx.Abort()
			return
		}

		uid, err := verifier.Verify(token)
		if err != nil {
			clientIP := ctx.ClientIP()
			userAgent := ctx.Request.UserAgent()

			switch {
			case errors.Is(err, domain.ErrInvalidSigningAlg),
				errors.Is(err, domain.ErrInvalidTokenSignature),
				errors.Is(err, domain.ErrCorruptedToken):

				log.Warn().
					Str("ip", clientIP).
					Str("user_agent", userAgent).
					Str("error", err.Error()).
					Str("token", redactToken(token)).
					Msg("suspicious token attempt")

				time.Sleep(trollTime)
				ctx.Status(http.StatusInternalServerError)
				ctx.Abort()

			case errors.Is(err, domain.ErrExpiredToken):
				log.Info().
					Str("ip", clientIP).
					Str("token", redactToken(token)).
					Msg("token expired")
				ctx.String(http.StatusUnauthorized, ErrExpiredTokenStr)
				ctx.Abort()

			default:
				log.Error().
					Str("ip", clientIP).
					Str("error", err.Error()).
					Str("token", redactToken(token)).
					Msg("internal auth error")
				ctx.String(http.StatusUnauthorized, ErrUnknownStr)
				ctx.Abort()
			}

			return
		}
		ctx.Set("uid", uid)
		ctx.Next()
	}
}
