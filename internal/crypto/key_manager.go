package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	ErrKeyNotFound    = errors.New("encryption key not found")
	ErrKeyNotLoaded   = errors.New("key manager not initialized")
	ErrVersionMissing = errors.New("key version not configured")
)

// KeyManager manages encryption keys for multiple versions, supporting
// rotation by keeping every previously issued version loaded for
// decryption while encrypting new data with the current version.
type KeyManager struct {
	mu           sync.RWMutex
	currentVer   int
	encryptors   map[int]*Encryptor
	envKeyPrefix string
}

// NewKeyManager loads ENCRYPTION_SECRET_KEY (version 1, required) and any
// additional ENCRYPTION_SECRET_KEY_V2.._V10 versions present in the
// environment, mirroring the reference service's KeyManager convention.
func NewKeyManager() (*KeyManager, error) {
	km := &KeyManager{
		encryptors:   make(map[int]*Encryptor),
		envKeyPrefix: "ENCRYPTION_SECRET_KEY",
	}

	if err := km.loadKey(1, km.envKeyPrefix); err != nil {
		return nil, fmt.Errorf("load primary key: %w", err)
	}
	km.currentVer = 1

	for v := 2; v <= 10; v++ {
		envName := fmt.Sprintf("%s_V%d", km.envKeyPrefix, v)
		if err := km.loadKey(v, envName); err == nil {
			km.currentVer = v
		}
	}

	return km, nil
}

// loadKey accepts either a base64-encoded 32-byte key or an arbitrary
// passphrase, which is stretched to 32 bytes via SHA-256 — the reference
// service requires base64 exactly, but ENCRYPTION_SECRET_KEY here is a
// single operator-facing secret so accepting either form avoids a
// footgun on first deploy.
func (km *KeyManager) loadKey(version int, envName string) error {
	raw := os.Getenv(envName)
	if raw == "" {
		return ErrKeyNotFound
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) != KeySize {
		sum := sha256.Sum256([]byte(raw))
		key = sum[:]
	}

	enc, err := NewEncryptor(key, version)
	if err != nil {
		return fmt.Errorf("create encryptor v%d: %w", version, err)
	}

	km.encryptors[version] = enc
	return nil
}

// Encrypt encrypts plaintext using the current (latest) key version.
func (km *KeyManager) Encrypt(plaintext string) (string, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	enc, ok := km.encryptors[km.currentVer]
	if !ok {
		return "", ErrKeyNotLoaded
	}
	return enc.Encrypt(plaintext)
}

// Decrypt decrypts ciphertext, automatically selecting the key version
// embedded in its ENC[vN]: prefix.
func (km *KeyManager) Decrypt(ciphertext string) (string, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	version := ParseVersion(ciphertext)
	if version == 0 {
		return "", ErrInvalidCiphertext
	}
	enc, ok := km.encryptors[version]
	if !ok {
		return "", fmt.Errorf("key version %d not available", version)
	}
	return enc.Decrypt(ciphertext)
}

// CurrentVersion returns the key version new ciphertext is written with.
func (km *KeyManager) CurrentVersion() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.currentVer
}

// HasVersion reports whether a specific key version is loaded.
func (km *KeyManager) HasVersion(version int) bool {
	km.mu.RLock()
	defer km.mu.RUnlock()
	_, ok := km.encryptors[version]
	return ok
}

// GenerateKey returns a new random base64-encoded 32-byte key, suitable
// for ENCRYPTION_SECRET_KEY.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
