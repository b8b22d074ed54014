package cmd

import (
	"context"
	"fmt"

	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/settings"
)

// Encrypt encrypts every value of a plaintext settings file into
// <name>_encrypted.json beside it.
func Encrypt(ctx context.Context, g Globals, file, explicitPassword string) {
	password, err := GetNewPassword(explicitPassword)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	out, err := settings.EncryptFile(ctx, file, password)
	if err != nil {
		HandleError(err)
	}

	g.Logger().Debugf("read %s", file)
	fmt.Printf("encrypted: %s\n", out)
}

// Decrypt writes the plaintext settings for an encrypted settings file.
// legacy reads blobs in the pre-GCM format.
func Decrypt(ctx context.Context, g Globals, file, explicitPassword string, legacy bool) {
	password, _, err := GetPassword(explicitPassword, "", "Enter lab password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	out, err := settings.DecryptFile(ctx, file, password, legacy)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("decrypted: %s\n", out)
	g.Logger().Warnf("%s holds plaintext secrets; do not commit it", out)
}
