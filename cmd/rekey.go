package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/live-labs/labkeys/internal/core"
	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/keyring"
	"github.com/live-labs/labkeys/internal/settings"
)

// Rekey re-encrypts every encrypted settings file in the keys directory
// under a new password. With legacy set the current files are read in the
// pre-GCM format and upgraded.
func Rekey(ctx context.Context, g Globals, legacy bool) {
	d := g.Distributor()
	plan := g.Locate(d)

	files, err := discovery.ListEncryptedFiles(plan.KeysDir, d.Layout().FilePattern)
	if err != nil {
		HandleError(err)
	}
	if len(files) == 0 {
		HandleError(fmt.Errorf("%w in %s", discovery.ErrNoEncryptedFiles, plan.KeysDir))
	}

	id := existingInstallID(d, plan)

	currentPassword, _, err := GetPassword("", id, "Enter current password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(currentPassword)

	newPassword, err := core.ReadPasswordConfirm()
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(newPassword)

	if err := settings.RekeyFiles(ctx, files, currentPassword, newPassword, legacy); err != nil {
		HandleError(err)
	}

	for _, file := range files {
		fmt.Printf("rekeyed: %s\n", filepath.Base(file))
	}

	// Keep a stored password in step with the files
	if id != "" && keyring.HasPassword(id) {
		if err := keyring.SavePassword(id, string(newPassword)); err != nil {
			g.Logger().Warnf("failed to update keyring: %s", err)
		} else {
			fmt.Println("Keyring updated with new password")
		}
	}
}
