// Package token mints verification tokens and the public URLs that embed them.
package token

import (
	"encoding/hex"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/and161185/eventcert/internal/crypto"
)

// Size is the token entropy in bytes; the encoded token is twice as long.
const Size = 16

// VerifyPath is the public route prefix of the verification endpoint.
const VerifyPath = "/api/certificates/verify/"

var reToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

// New returns a fresh 128-bit token as 32 lowercase hex characters.
func New() (string, error) {
	b, err := crypto.RandBytes(Size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Valid reports whether s has the shape of a token minted by New.
func Valid(s string) bool { return reToken.MatchString(s) }

// VerificationURL builds <base>/api/certificates/verify/<token>.
func VerificationURL(base, tok string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", errors.New("base url must be absolute http(s)")
	}
	return base + VerifyPath + tok, nil
}
