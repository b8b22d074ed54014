package crypto

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// HeaderSize is the fixed prefix of every blob: salt, nonce and tag.
const HeaderSize = SaltSize + NonceSize + TagSize

// Blob is the decoded form of an encrypted value.
// Wire layout: base64(salt[16] | nonce[12] | tag[16] | ciphertext[N]).
type Blob struct {
	Salt       []byte
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// EncodeBlob concatenates the blob fields in wire order and base64-encodes them.
func EncodeBlob(b Blob) string {
	raw := make([]byte, 0, HeaderSize+len(b.Ciphertext))
	raw = append(raw, b.Salt...)
	raw = append(raw, b.Nonce...)
	raw = append(raw, b.Tag...)
	raw = append(raw, b.Ciphertext...)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeBlob parses a base64 blob. The returned slices alias one buffer.
func DecodeBlob(text string) (Blob, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if len(raw) < HeaderSize {
		return Blob{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedBlob, len(raw), HeaderSize)
	}

	return Blob{
		Salt:       raw[:SaltSize],
		Nonce:      raw[SaltSize : SaltSize+NonceSize],
		Tag:        raw[SaltSize+NonceSize : HeaderSize],
		Ciphertext: raw[HeaderSize:],
	}, nil
}

// EncryptText encrypts a UTF-8 string under a key derived from password
// and a fresh salt, using a fresh nonce.
func EncryptText(plainText string, password []byte) (string, error) {
	kdf, err := NewKDF()
	if err != nil {
		return "", err
	}

	enc := NewEncryptor(kdf.DeriveKey(password))
	defer enc.Destroy()

	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	plaintext := []byte(plainText)
	defer ClearBytes(plaintext)

	ciphertext, tag, err := enc.Seal(nonce, plaintext)
	if err != nil {
		return "", err
	}

	return EncodeBlob(Blob{
		Salt:       kdf.Salt,
		Nonce:      nonce,
		Tag:        tag,
		Ciphertext: ciphertext,
	}), nil
}

// DecryptText reverses EncryptText.
func DecryptText(blobText string, password []byte) (string, error) {
	blob, err := DecodeBlob(blobText)
	if err != nil {
		return "", err
	}

	kdf := &KDF{Salt: blob.Salt, Iterations: Iterations}
	enc := NewEncryptor(kdf.DeriveKey(password))
	defer enc.Destroy()

	plaintext, err := enc.Open(blob.Nonce, blob.Ciphertext, blob.Tag)
	if err != nil {
		return "", err
	}
	defer ClearBytes(plaintext)

	if !utf8.Valid(plaintext) {
		return "", ErrInvalidUTF8
	}

	return string(plaintext), nil
}
