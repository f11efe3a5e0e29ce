package game

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// Join codes are 6 characters, human-shareable, unique among active rooms.
const codeLength = 6

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codeAttempts bounds generate-and-retry on collision before giving up.
const codeAttempts = 5

var errCodeSpaceBusy = errors.New("could not generate an unused room code")

func randomCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for range codeLength {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// generateCode retries on collisions reported by taken.
func generateCode(taken func(code string) (bool, error)) (string, error) {
	for range codeAttempts {
		code := randomCode()
		inUse, err := taken(code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", errCodeSpaceBusy
}
