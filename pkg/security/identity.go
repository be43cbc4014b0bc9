// Package security holds the anonymisation rules for client identifiers
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// IdentityHasher turns a client address into the identity stored with events
// and creator profiles. Both must use the same hasher so creator exclusion
// and uniqueness compare like with like.
type IdentityHasher struct {
	hash bool
	salt []byte
}

// NewIdentityHasher returns a hasher. With hash false identities are the raw
// address. A non empty salt switches from plain SHA-256 to HMAC-SHA256.
func NewIdentityHasher(hash bool, salt string) *IdentityHasher {
	h := &IdentityHasher{hash: hash}
	if salt != "" {
		h.salt = []byte(salt)
	}

	return h
}

// Identity returns nil for an empty address.
func (h *IdentityHasher) Identity(ip string) *string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil
	}

	if !h.hash {
		return &ip
	}

	var sum []byte
	if h.salt != nil {
		mac := hmac.New(sha256.New, h.salt)
		mac.Write([]byte(ip))
		sum = mac.Sum(nil)
	} else {
		s := sha256.Sum256([]byte(ip))
		sum = s[:]
	}

	id := hex.EncodeToString(sum)
	return &id
}
