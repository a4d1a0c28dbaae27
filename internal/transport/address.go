package transport

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6

	addressPrefix = "pokdeng-"
)

var ErrInvalidCode = errors.New("invalid room code")

// GenerateCode returns a fresh room code. Ambiguous glyphs (0/O, 1/I) are
// not in the alphabet.
func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(CodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = CodeAlphabet[num.Int64()]
	}
	return string(code), nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks a normalized code.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return fmt.Errorf("%w: %q must be %d characters", ErrInvalidCode, code, CodeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidCode, code, r)
		}
	}
	return nil
}

// HostAddress is where the host of room code listens.
func HostAddress(code string) string {
	return addressPrefix + NormalizeCode(code)
}

// GuestAddress is the local address a guest dials from.
func GuestAddress(code, playerID string) string {
	return HostAddress(code) + "-" + playerID
}

// ParseGuestAddress splits a guest address into room code and player id.
func ParseGuestAddress(addr string) (code, playerID string, ok bool) {
	rest, found := strings.CutPrefix(addr, addressPrefix)
	if !found || len(rest) < CodeLength+2 || rest[CodeLength] != '-' {
		return "", "", false
	}
	return rest[:CodeLength], rest[CodeLength+1:], true
}
