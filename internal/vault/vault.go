// Package vault implements the credential vault: a symmetric-encrypted blob
// file that is the sole store of API keys and secrets (spec §4.6).
//
// Key derivation uses PBKDF2-HMAC-SHA256 with a high iteration count over a
// per-vault random salt; the blob itself is sealed with AES-128-GCM, an
// authenticated scheme, so tampering is detected on open. No suitable
// third-party authenticated-encryption or KDF primitive exists in the
// retrieval pack beyond golang.org/x/crypto/pbkdf2 (already an indirect
// dependency of the teacher repo, promoted to direct here); the cipher
// itself is taken from the standard library, which is the idiomatic choice
// for raw AEAD primitives in every example repo that touches crypto.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 round count (spec: >=600,000).
	Iterations = 600_000
	saltSize   = 32
	keySize    = 16 // AES-128
)

var (
	// ErrLocked is returned by any operation attempted before Unlock.
	ErrLocked = errors.New("vault: locked")
	// ErrAuthFailed is returned when the blob fails authenticated decryption.
	ErrAuthFailed = errors.New("vault: authentication failed (wrong password or corrupt blob)")
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("vault: key not found")
)

// Vault is a single-writer, in-memory-decrypted credential store.
type Vault struct {
	blobPath string
	saltPath string

	key    []byte // derived key, held in process memory only while unlocked
	values map[string]string
}

// New creates a Vault bound to the given blob/salt file paths. Call Unlock
// (existing vault) or Init (first boot) before any Get/Set/Delete/List call.
func New(blobPath, saltPath string) *Vault {
	return &Vault{blobPath: blobPath, saltPath: saltPath}
}

// Init creates a brand-new, empty vault sealed with password, writing a
// fresh random salt. It fails if a blob already exists at blobPath.
func (v *Vault) Init(password string) error {
	if _, err := os.Stat(v.blobPath); err == nil {
		return fmt.Errorf("vault: blob already exists at %s", v.blobPath)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("vault: generate salt: %w", err)
	}
	if err := os.WriteFile(v.saltPath, salt, 0o600); err != nil {
		return fmt.Errorf("vault: write salt: %w", err)
	}
	v.key = deriveKey(password, salt)
	v.values = map[string]string{}
	return v.persist()
}

// Unlock derives the key from password and the stored salt, then decrypts
// and authenticates the blob. The derived key is held in process memory
// until Close.
func (v *Vault) Unlock(password string) error {
	salt, err := os.ReadFile(v.saltPath)
	if err != nil {
		return fmt.Errorf("vault: read salt: %w", err)
	}
	blob, err := os.ReadFile(v.blobPath)
	if err != nil {
		return fmt.Errorf("vault: read blob: %w", err)
	}
	key := deriveKey(password, salt)
	values, err := decrypt(key, blob)
	if err != nil {
		return ErrAuthFailed
	}
	v.key = key
	v.values = values
	return nil
}

// Close zeroes the derived key held in process memory.
func (v *Vault) Close() {
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
	v.values = nil
}

// Get returns the value for key, or ErrNotFound.
func (v *Vault) Get(key string) (string, error) {
	if v.key == nil {
		return "", ErrLocked
	}
	val, ok := v.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

// Set stores value under key and persists the blob synchronously.
func (v *Vault) Set(key, value string) error {
	if v.key == nil {
		return ErrLocked
	}
	v.values[key] = value
	return v.persist()
}

// Delete removes key and persists the blob synchronously.
func (v *Vault) Delete(key string) error {
	if v.key == nil {
		return ErrLocked
	}
	delete(v.values, key)
	return v.persist()
}

// List returns the set of stored key names only, never values.
func (v *Vault) List() ([]string, error) {
	if v.key == nil {
		return nil, ErrLocked
	}
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Rotate re-encrypts the existing plaintext values under a new password and
// a freshly generated salt.
func (v *Vault) Rotate(newPassword string) error {
	if v.key == nil {
		return ErrLocked
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("vault: generate salt: %w", err)
	}
	if err := os.WriteFile(v.saltPath, salt, 0o600); err != nil {
		return fmt.Errorf("vault: write salt: %w", err)
	}
	v.key = deriveKey(newPassword, salt)
	return v.persist()
}

func (v *Vault) persist() error {
	blob, err := encrypt(v.key, v.values)
	if err != nil {
		return fmt.Errorf("vault: encrypt: %w", err)
	}
	return os.WriteFile(v.blobPath, blob, 0o600)
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, keySize, sha256.New)
}

func encrypt(key []byte, values map[string]string) ([]byte, error) {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(key, blob []byte) (map[string]string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, errors.New("vault: blob too short")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}
	var values map[string]string
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Fingerprint derives a stable hash over config+vault_salt+firstBoot for the
// runtime self-model (spec §4.6). It is itself stored in the vault under a
// reserved key and compared on every subsequent boot.
func Fingerprint(configDigest string, saltPath string, firstBootUnixNano int64) (string, error) {
	salt, err := os.ReadFile(saltPath)
	if err != nil {
		return "", fmt.Errorf("vault: read salt for fingerprint: %w", err)
	}
	h := hmac.New(sha256.New, salt)
	fmt.Fprintf(h, "%s:%d", configDigest, firstBootUnixNano)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
