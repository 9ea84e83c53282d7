// Package password hashes and verifies user credentials.
//
// The default scheme stores the lower-case hex SHA-256 digest of the raw
// password bytes. The bcrypt scheme can be enabled for new accounts; Verify
// recognises both formats so existing accounts keep working.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// Hasher produces password hashes for a single scheme.
type Hasher struct {
	scheme string
}

// NewHasher returns a Hasher for scheme. Unknown schemes are rejected.
func NewHasher(scheme string) (*Hasher, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	switch scheme {
	case "", SchemeSHA256:
		return &Hasher{scheme: SchemeSHA256}, nil
	case SchemeBcrypt:
		return &Hasher{scheme: SchemeBcrypt}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

func (h *Hasher) Scheme() string {
	return h.scheme
}

func (h *Hasher) Hash(plain string) (string, error) {
	if h.scheme == SchemeBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hashed), nil
	}
	return Digest(plain), nil
}

// Digest returns the hex encoded SHA-256 digest of plain.
func Digest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether plain matches the stored hash.
func Verify(plain, stored string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	}
	computed := Digest(plain)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(stored))) == 1
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}
