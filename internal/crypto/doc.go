// Package crypto provides the cryptographic primitives for labkeys.
//
// Every encrypted value is self-contained:
//
//	base64( salt[16] | nonce[12] | tag[16] | ciphertext[N] )
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 16-byte random salt per value (stored in the blob)
//   - 600,000 iterations (OWASP recommendation, fixed by the format)
//
// Encryption uses AES-256-GCM with a 12-byte random nonce per value and no
// associated data. The layout is shared with other implementations of the
// lab tooling, so field order and sizes must not change.
//
// Errors:
//   - ErrMalformedBlob: bad base64 or a blob shorter than the header
//   - ErrAuthFailed: tag verification failed (wrong password or tampering)
//   - ErrInvalidUTF8: plaintext is not valid UTF-8
//
// DecryptLegacyText reads the older AES-256-CBC format. It is never produced.
//
// Memory safety:
//   - Derived keys are cleared with ClearBytes once a call finishes
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
