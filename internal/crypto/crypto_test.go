package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestKDFDeriveKey(t *testing.T) {
	kdf, err := NewKDF()
	if err != nil {
		t.Fatalf("NewKDF failed: %v", err)
	}

	if len(kdf.Salt) != SaltSize {
		t.Errorf("Salt size: got %d, want %d", len(kdf.Salt), SaltSize)
	}
	if kdf.Iterations != Iterations {
		t.Errorf("Iterations: got %d, want %d", kdf.Iterations, Iterations)
	}

	key1 := kdf.DeriveKey([]byte("password"))
	key2 := kdf.DeriveKey([]byte("password"))
	if len(key1) != KeySize {
		t.Fatalf("Key size: got %d, want %d", len(key1), KeySize)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("Same password and salt should derive the same key")
	}

	other := &KDF{Salt: make([]byte, SaltSize), Iterations: Iterations}
	if bytes.Equal(key1, other.DeriveKey([]byte("password"))) {
		t.Error("Different salts should derive different keys")
	}
}

func TestSealOpenKnownVector(t *testing.T) {
	// AES-256-GCM, zero key, zero nonce, one zero block
	key := make([]byte, KeySize)
	nonce := make([]byte, NonceSize)
	plaintext := make([]byte, 16)

	enc := NewEncryptor(key)
	ciphertext, tag, err := enc.Seal(nonce, plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if got := hex.EncodeToString(ciphertext); got != "cea7403d4d606b6e074ec5d3baf39d18" {
		t.Errorf("Ciphertext mismatch: got %s", got)
	}
	if got := hex.EncodeToString(tag); got != "d0d1c8a799996bf0265b98b5d48ab919" {
		t.Errorf("Tag mismatch: got %s", got)
	}

	opened, err := enc.Open(nonce, ciphertext, tag)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Plaintext mismatch: got %x", opened)
	}
}

func TestOpenRejectsModifiedTag(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	nonce := bytes.Repeat([]byte{1}, NonceSize)

	enc := NewEncryptor(key)
	ciphertext, tag, err := enc.Seal(nonce, []byte("payload"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	tag[0] ^= 0x01
	if _, err := enc.Open(nonce, ciphertext, tag); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
}

func TestEncryptorDestroy(t *testing.T) {
	key := bytes.Repeat([]byte{0xAA}, KeySize)
	enc := NewEncryptor(key)
	enc.Destroy()

	for i, b := range key {
		if b != 0 {
			t.Fatalf("Key byte %d not cleared: %x", i, b)
		}
	}
}

func TestClearBytes(t *testing.T) {
	data := []byte("sensitive")
	ClearBytes(data)
	if !bytes.Equal(data, make([]byte, len(data))) {
		t.Errorf("ClearBytes left data behind: %q", data)
	}
}
