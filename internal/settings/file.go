package settings

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/live-labs/labkeys/internal/crypto"
)

const (
	EncryptedSuffix = "_encrypted.json"
	PlainSuffix     = ".json"
	FilePerm        = 0600
)

// EncryptedPath maps settings.json to settings_encrypted.json. Only the
// suffix of the file name is rewritten.
func EncryptedPath(path string) string {
	return strings.TrimSuffix(path, PlainSuffix) + EncryptedSuffix
}

// PlainPath maps settings_encrypted.json to settings.json
func PlainPath(path string) string {
	return strings.TrimSuffix(path, EncryptedSuffix) + PlainSuffix
}

// ReadPlain loads a plaintext settings file. Comments and trailing commas
// are accepted and dropped.
func ReadPlain(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(data)

	doc, err := ParseDocument(jsonc.ToJSON(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ReadEncrypted loads an encrypted settings file, checking that every value
// is a string.
func ReadEncrypted(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, f := range doc.Fields() {
		if len(f.Value) == 0 || f.Value[0] != '"' {
			return nil, fmt.Errorf("%s: field %q: %w", path, f.Key, ErrValueNotString)
		}
	}
	return doc, nil
}

// WriteDocument stores doc with two-space indentation
func WriteDocument(path string, doc *Document) error {
	data, err := doc.Indent()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	defer crypto.ClearBytes(data)

	return os.WriteFile(path, data, FilePerm)
}

// EncryptFile encrypts every value of a plaintext settings file and writes
// the result beside it. Returns the path written.
func EncryptFile(ctx context.Context, path string, password []byte) (string, error) {
	if !strings.HasSuffix(path, PlainSuffix) {
		return "", fmt.Errorf("%s: expected a %s file", path, PlainSuffix)
	}

	doc, err := ReadPlain(path)
	if err != nil {
		return "", err
	}

	encrypted, err := EncryptDocument(ctx, doc, password)
	if err != nil {
		return "", err
	}

	out := EncryptedPath(path)
	if err := WriteDocument(out, encrypted); err != nil {
		return "", err
	}
	return out, nil
}

// DecryptFile decrypts an encrypted settings file and writes the plaintext
// beside it. legacy selects the pre-GCM blob format. Returns the path written.
func DecryptFile(ctx context.Context, path string, password []byte, legacy bool) (string, error) {
	if !strings.HasSuffix(path, EncryptedSuffix) {
		return "", fmt.Errorf("%s: expected a %s file", path, EncryptedSuffix)
	}

	doc, err := ReadEncrypted(path)
	if err != nil {
		return "", err
	}

	decrypt := crypto.DecryptText
	if legacy {
		decrypt = crypto.DecryptLegacyText
	}

	plain, err := DecryptDocumentWith(ctx, doc, password, decrypt)
	if err != nil {
		return "", err
	}

	out := PlainPath(path)
	if err := WriteDocument(out, plain); err != nil {
		return "", err
	}
	return out, nil
}

// RekeyFiles re-encrypts encrypted settings files under newPassword,
// upgrading legacy blobs when legacy is set. Every file is decrypted before
// any is rewritten, so a wrong password leaves all of them untouched.
func RekeyFiles(ctx context.Context, paths []string, oldPassword, newPassword []byte, legacy bool) error {
	decrypt := crypto.DecryptText
	if legacy {
		decrypt = crypto.DecryptLegacyText
	}

	plain := make([]*Document, len(paths))
	for i, path := range paths {
		doc, err := ReadEncrypted(path)
		if err != nil {
			return err
		}
		plain[i], err = DecryptDocumentWith(ctx, doc, oldPassword, decrypt)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	encrypted := make([]*Document, len(paths))
	for i, doc := range plain {
		var err error
		encrypted[i], err = EncryptDocument(ctx, doc, newPassword)
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
	}

	for i, path := range paths {
		if err := WriteDocument(path, encrypted[i]); err != nil {
			return err
		}
	}
	return nil
}
