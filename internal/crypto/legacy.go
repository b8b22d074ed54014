package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

// Legacy format, decrypt only:
// base64(salt[16] | iv[16] | AES-256-CBC(PKCS7(plaintext))),
// key = PBKDF2-HMAC-SHA1(password, salt, 10000, 32).
const (
	LegacyIVSize     = aes.BlockSize
	LegacyIterations = 10000
)

// DecryptLegacyText decrypts a blob issued before the GCM format.
// CBC carries no authenticator, so a wrong password is only detectable
// through the padding; a bad pad is reported as ErrAuthFailed.
func DecryptLegacyText(blobText string, password []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blobText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}

	body := len(raw) - SaltSize - LegacyIVSize
	if body < aes.BlockSize || body%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad legacy length %d", ErrMalformedBlob, len(raw))
	}

	salt := raw[:SaltSize]
	iv := raw[SaltSize : SaltSize+LegacyIVSize]
	ciphertext := raw[SaltSize+LegacyIVSize:]

	key := pbkdf2.Key(password, salt, LegacyIterations, KeySize, sha1.New)
	defer ClearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)
	defer ClearBytes(padded)

	plaintext, ok := unpadPKCS7(padded)
	if !ok {
		return "", ErrAuthFailed
	}
	if !utf8.Valid(plaintext) {
		return "", ErrInvalidUTF8
	}

	return string(plaintext), nil
}

func unpadPKCS7(b []byte) ([]byte, bool) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, false
	}

	// Check every pad byte without an early exit
	bad := 0
	for _, c := range b[len(b)-n:] {
		bad |= int(c) ^ n
	}
	if bad != 0 {
		return nil, false
	}
	return b[:len(b)-n], true
}
