package room

import (
	"errors"
	"math/rand/v2"
	"strings"
)

const codeLength = 4
const maxRetries = 100

// I and O are left out; they read as 1 and 0 on most client fonts.
const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// ErrNoCodeAvailable is returned when no unused code was found.
var ErrNoCodeAvailable = errors.New("no room code available")

// GenerateCode creates a random 4-letter uppercase room code that is not in
// existing.
func GenerateCode(existing map[string]bool) (string, error) {
	for range maxRetries {
		code := randomCode()
		if !existing[code] {
			return code, nil
		}
	}
	return "", ErrNoCodeAvailable
}

func randomCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for range codeLength {
		b.WriteByte(letters[rand.IntN(len(letters))])
	}
	return b.String()
}
