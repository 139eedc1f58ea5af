// Package crypto seals history journal records with NaCl secretbox.
//
// A 32-byte symmetric key is derived from the user's passphrase using
// HKDF-SHA256 with a per-purpose info string, so the journal key never equals
// any other key derived from the same passphrase. Every record is sealed with
// a random 24-byte nonce prepended to the ciphertext:
//
//	[ 24-byte nonce ][ ciphertext ]
//
// With an empty passphrase callers pass a nil key and records are stored as
// plain JSON.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KeySize   = 32
	nonceSize = 24
)

// Key is a secretbox key.
type Key = [KeySize]byte

// PurposeJournal is the HKDF info for the history journal key.
const PurposeJournal = "clipstack-journal-v1"

// ErrDecrypt is returned when a record fails authentication.
var ErrDecrypt = errors.New("decryption failed (wrong passphrase?)")

// DeriveKey derives a secretbox key from passphrase for purpose.
func DeriveKey(passphrase, purpose string) (*Key, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	h := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(purpose))
	var key Key
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return &key, nil
}

// Seal encrypts plaintext with key, prepending a random nonce.
func Seal(plaintext []byte, key *Key) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open decrypts nonce+ciphertext with key.
func Open(ciphertext []byte, key *Key) ([]byte, error) {
	if len(ciphertext) < nonceSize+secretbox.Overhead {
		return nil, errors.New("ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plain, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
