// Package otpauth issues and verifies the one-time codes §6's
// send-otp/verify-otp endpoints require for step-up authentication
// (group joins, payout changes), using github.com/pquerna/otp the way
// the rest of this module leans on the example pack's dependency
// surface rather than hand-rolling a TOTP implementation.
package otpauth

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

// ErrInvalidCode is returned by Verify when the submitted code does
// not match the user's current TOTP window.
var ErrInvalidCode = errors.New("otpauth: invalid or expired code")

// Issuer is the TOTP issuer name embedded in generated secrets.
const Issuer = "Brain"

// secretStore holds one per-user TOTP secret in memory, generated on
// first SendCode and consumed by Verify. Production deployments would
// persist this in the users table; this module keeps it in-process
// since the secret only needs to survive the short verification
// window between send and verify.
type secretStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

// Manager issues and verifies OTP codes for a set of users.
type Manager struct {
	store *secretStore
}

func NewManager() *Manager {
	return &Manager{store: &secretStore{secrets: make(map[string]string)}}
}

// SendCode provisions (or reuses) a TOTP secret for userID and returns
// the current 6-digit code a delivery channel (email/SMS) would send.
// Real delivery is out of scope here; callers are expected to forward
// the returned code through whatever channel the deployment wires up.
func (m *Manager) SendCode(userID, accountLabel string) (string, error) {
	m.store.mu.Lock()
	secret, ok := m.store.secrets[userID]
	m.store.mu.Unlock()

	if !ok {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      Issuer,
			AccountName: accountLabel,
		})
		if err != nil {
			return "", err
		}
		secret = key.Secret()
		m.store.mu.Lock()
		m.store.secrets[userID] = secret
		m.store.mu.Unlock()
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks code against userID's current TOTP window, allowing
// one period of clock skew in either direction.
func (m *Manager) Verify(userID, code string) error {
	m.store.mu.Lock()
	secret, ok := m.store.secrets[userID]
	m.store.mu.Unlock()
	if !ok {
		return ErrInvalidCode
	}

	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    6,
		Algorithm: 0,
	})
	if err != nil || !valid {
		return ErrInvalidCode
	}
	// single use: the next SendCode provisions a fresh secret
	m.store.mu.Lock()
	delete(m.store.secrets, userID)
	m.store.mu.Unlock()
	return nil
}

// constantTimeEqual guards callers that compare codes outside Verify
// (e.g. a cached last-sent code) against timing side channels.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
