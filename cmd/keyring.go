package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/live-labs/labkeys/internal/core"
	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/keyring"
)

// KeyringSave checks the password against an encrypted settings file and
// stores it in the OS keyring for this labs directory.
func KeyringSave(ctx context.Context, g Globals, explicitPassword string) {
	d := g.Distributor()
	plan := g.Locate(d)

	files, err := discovery.ListEncryptedFiles(plan.KeysDir, d.Layout().FilePattern)
	if err != nil {
		HandleError(err)
	}
	if len(files) == 0 {
		HandleError(fmt.Errorf("%w in %s", discovery.ErrNoEncryptedFiles, plan.KeysDir))
	}

	password := []byte(explicitPassword)
	if len(password) == 0 {
		password, err = core.ReadPassword("Enter lab password: ")
		if err != nil {
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(password)

	// Verify password is correct
	rendered, err := d.Preview(ctx, password, files[0])
	if err != nil {
		HandleError(err)
	}
	crypto.ClearBytes(rendered)

	id, err := installID(d, plan)
	if err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassword(id, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the stored password
func KeyringDelete(g Globals) {
	d := g.Distributor()
	plan := g.Locate(d)

	id := existingInstallID(d, plan)
	if id == "" {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(id); err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus reports whether a password is stored
func KeyringStatus(g Globals) {
	d := g.Distributor()
	plan := g.Locate(d)

	id := existingInstallID(d, plan)
	if id != "" && keyring.HasPassword(id) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
