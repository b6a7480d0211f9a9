// Package vault implements browserlet's credential vault: PBKDF2-derived
// AES-256-GCM encryption of stored credentials at rest, a short-lived
// derived-key cache so an operator does not re-enter a passphrase on
// every run, and a localhost bridge that hands a resolved credential to
// a companion browser extension over single-use, time-bounded tokens.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 600_000
	saltLen          = 16
	gcmNonceLen      = 12
	keyLen           = 32 // AES-256

	// validationPlaintext is encrypted under a freshly derived key at
	// vault creation time and decrypted on every unlock attempt; GCM's
	// auth tag failing to verify is how a wrong passphrase is detected.
	validationPlaintext = "browserlet_vault_v1"
)

// ErrWrongPassphrase is returned by unlock when the derived key fails to
// decrypt the vault's validation ciphertext.
var ErrWrongPassphrase = errors.New("vault: wrong passphrase")

// deriveKey runs PBKDF2-HMAC-SHA256 over passphrase and salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLen, sha256.New)
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}
	return salt, nil
}

// encrypt seals plaintext under key with a fresh random 12-byte nonce,
// prepended to the returned ciphertext.
func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: new gcm: %w", err)
	}
	nonce := make([]byte, gcmNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// decrypt reverses encrypt, reading the nonce from the first 12 bytes.
func decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: new gcm: %w", err)
	}
	if len(ciphertext) < gcmNonceLen {
		return nil, errors.New("vault: ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcmNonceLen], ciphertext[gcmNonceLen:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}
