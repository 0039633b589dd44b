package graph

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// MinSecretSize is the minimum decoded size of a pseudonym secret.
	MinSecretSize = 16
	// PseudonymSize is the number of hash bytes kept in a pseudonym.
	PseudonymSize = 16
)

var (
	// ErrMissingSecret is returned when no pseudonym secret is configured.
	ErrMissingSecret = errors.New("pseudonym secret is missing")
	// ErrInvalidSecret is returned when the pseudonym secret cannot be used as a key.
	ErrInvalidSecret = errors.New("pseudonym secret is invalid")
)

// Pseudonymizer maps member ids to stable opaque ids using a keyed BLAKE2b hash.
//
// The mapping is deterministic for a given secret. Anyone holding the secret can
// re-identify members by enumerating candidate ids.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer creates a pseudonymizer from a base64 encoded secret.
func NewPseudonymizer(secret string) (*Pseudonymizer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64: %w", ErrInvalidSecret, err)
	}

	if len(key) < MinSecretSize || len(key) > blake2b.Size {
		return nil, fmt.Errorf("%w: decoded size %d, want %d to %d bytes",
			ErrInvalidSecret, len(key), MinSecretSize, blake2b.Size)
	}

	// Validate the key once so Pseudonymize cannot fail later
	if _, err := blake2b.New256(key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}

	return &Pseudonymizer{key: key}, nil
}

// Pseudonymize returns the opaque id for a member.
func (p *Pseudonymizer) Pseudonymize(id MemberID) string {
	h, _ := blake2b.New256(p.key)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	h.Write(buf[:])

	return hex.EncodeToString(h.Sum(nil)[:PseudonymSize])
}
