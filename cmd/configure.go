package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/live-labs/labkeys/internal/core"
	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/git"
)

// Configure writes the lab env file from one of the encrypted settings
// files, unless it already exists.
func Configure(ctx context.Context, g Globals, explicitPassword string, overwrite bool) {
	log := g.Logger()
	d := g.Distributor()
	plan := g.Locate(d)

	// Skipping needs no password; don't ask for one.
	if !overwrite && fileExists(plan.Destination) {
		log.Infof("%s already exists, skipping (use --overwrite to replace it)", plan.Destination)
		return
	}
	if overwrite {
		log.Infof("overwriting %s", plan.Destination)
	}

	id, err := installID(d, plan)
	if err != nil {
		log.Warnf("keyring lookup disabled: %s", err)
	}

	password, source, err := GetPassword(explicitPassword, id, "Enter lab password: ")
	if err != nil {
		HandleError(err)
	}
	defer func() { crypto.ClearBytes(password) }()

	opts := core.RunOptions{StartPath: g.StartDir(), Overwrite: overwrite}
	result, err := d.Run(ctx, password, opts)

	if errors.Is(err, crypto.ErrAuthFailed) && source == SourceKeyring {
		log.Warnf("password stored in keyring is wrong (remove it with 'labkeys keyring delete')")
		crypto.ClearBytes(password)
		password, err = core.ReadPassword("Enter lab password: ")
		if err != nil {
			HandleError(err)
		}
		source = SourcePrompt
		result, err = d.Run(ctx, password, opts)
	}

	switch {
	case errors.Is(err, core.ErrLedgerUpdate):
		log.Warnf("%s", err)
	case err != nil:
		HandleError(err)
	}

	switch result.State {
	case core.StateSkipped:
		log.Infof("%s was created by another process, skipping", result.Destination)
		return
	case core.StateConfigured:
		log.Infof("selected %s", filepath.Base(result.Source))
		log.Debugf("ledger record #%d", result.LedgerSeq)
		fmt.Printf("configured: %s (%d variables)\n", result.Destination, result.Variables)
	}

	files, err := discovery.ListEncryptedFiles(plan.KeysDir, d.Layout().FilePattern)
	if err == nil {
		for _, problem := range git.CheckDestination(plan.TargetRoot, plan.Destination, files).Problems() {
			log.Warnf("%s", problem)
		}
	}

	if source == SourcePrompt {
		OfferToSavePassword(id, password)
	}
}
