package crypto

import "testing"

func TestKeyManagerGroupMessageRoundTrip(t *testing.T) {
	t.Setenv("ENCRYPTION_SECRET_KEY", "a-pretend-32-byte-operator-secret")

	km, err := NewKeyManager()
	if err != nil {
		t.Fatalf("NewKeyManager failed: %v", err)
	}

	plaintext := "BTCUSDT breakout above resistance, group strategy signal"
	ciphertext, err := km.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if ParseVersion(ciphertext) != km.CurrentVersion() {
		t.Errorf("ciphertext version = %d, want %d", ParseVersion(ciphertext), km.CurrentVersion())
	}

	decrypted, err := km.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestKeyManagerRotationKeepsOldCiphertextReadable(t *testing.T) {
	t.Setenv("ENCRYPTION_SECRET_KEY", "first-operator-secret-for-group-chat")

	km, err := NewKeyManager()
	if err != nil {
		t.Fatalf("NewKeyManager failed: %v", err)
	}
	oldCiphertext, err := km.Encrypt("pre-rotation group message")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	t.Setenv("ENCRYPTION_SECRET_KEY_V2", "second-operator-secret-after-rotation")
	km2, err := NewKeyManager()
	if err != nil {
		t.Fatalf("NewKeyManager (post-rotation) failed: %v", err)
	}
	if km2.CurrentVersion() != 2 {
		t.Fatalf("expected current version 2 after rotation, got %d", km2.CurrentVersion())
	}

	decrypted, err := km2.Decrypt(oldCiphertext)
	if err != nil {
		t.Fatalf("decrypting pre-rotation ciphertext failed: %v", err)
	}
	if decrypted != "pre-rotation group message" {
		t.Errorf("decrypted = %q, want original", decrypted)
	}
}
