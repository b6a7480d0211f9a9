package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	deviceKeyLen = 32 // 256-bit
	cacheTTL     = 15 * time.Minute
)

// jwk is a minimal JSON Web Key (octet) encoding of an AES-256 key, per
// RFC 7517 §6.4 ("oct" key type) — just enough structure to serialize
// the derived key, not a general JOSE implementation.
type jwk struct {
	Kty string `json:"kty"`
	K   string `json:"k"`
}

func keyToJWK(key []byte) jwk {
	return jwk{Kty: "oct", K: base64.RawURLEncoding.EncodeToString(key)}
}

func (j jwk) toKey() ([]byte, error) {
	if j.Kty != "oct" {
		return nil, fmt.Errorf("vault: unsupported jwk kty %q", j.Kty)
	}
	return base64.RawURLEncoding.DecodeString(j.K)
}

// cacheEntry is the on-disk shape of the derived-key cache file.
type cacheEntry struct {
	EncryptedJWK []byte    `json:"encrypted_jwk"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeviceKey loads the persistent per-machine device key from path,
// generating and persisting one on first use.
func DeviceKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != deviceKeyLen {
			return nil, errors.New("vault: device key file has wrong length")
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("vault: read device key: %w", err)
	}

	key := make([]byte, deviceKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("vault: generate device key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("vault: mkdir: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("vault: write device key: %w", err)
	}
	return key, nil
}

// CacheWrite persists the vault's derived key, encrypted under the
// device key, to cachePath with a 15-minute absolute TTL. The old file
// is removed first so a fresh create always gets mode 0600, regardless
// of the process umask.
func CacheWrite(cachePath string, deviceKey, derivedKey []byte) error {
	plaintext, err := json.Marshal(keyToJWK(derivedKey))
	if err != nil {
		return fmt.Errorf("vault: marshal jwk: %w", err)
	}
	encJWK, err := encrypt(deviceKey, plaintext)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	entry := cacheEntry{EncryptedJWK: encJWK, CreatedAt: now, ExpiresAt: now.Add(cacheTTL)}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("vault: marshal cache entry: %w", err)
	}

	if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: remove stale cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o700); err != nil {
		return fmt.Errorf("vault: mkdir: %w", err)
	}
	if err := os.WriteFile(cachePath, data, 0o600); err != nil {
		return fmt.Errorf("vault: write cache: %w", err)
	}
	return nil
}

// CacheRead attempts to recover the vault's derived key from cachePath.
// Any failure — missing file, parse error, decrypt failure, or an
// expired entry — is treated as a cache miss, and the file is unlinked
// so a stale or corrupt cache never lingers.
func CacheRead(cachePath string, deviceKey []byte) (key []byte, ok bool) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(cachePath)
		return nil, false
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		_ = os.Remove(cachePath)
		return nil, false
	}

	plaintext, err := decrypt(deviceKey, entry.EncryptedJWK)
	if err != nil {
		_ = os.Remove(cachePath)
		return nil, false
	}
	var j jwk
	if err := json.Unmarshal(plaintext, &j); err != nil {
		_ = os.Remove(cachePath)
		return nil, false
	}
	key, err = j.toKey()
	if err != nil {
		_ = os.Remove(cachePath)
		return nil, false
	}
	return key, true
}

// DefaultCachePath returns the OS temp-dir cache path named after the
// current user, so concurrent users on one machine never collide.
func DefaultCachePath() string {
	uid := fmt.Sprintf("%d", os.Getuid())
	return filepath.Join(os.TempDir(), "browserlet", "vault-cache-"+uid+".enc")
}

// DeviceKeyPath returns the device-key path for the vault at vaultPath,
// persisted alongside it.
func DeviceKeyPath(vaultPath string) string {
	return filepath.Join(filepath.Dir(vaultPath), ".browserlet-device-key")
}
