package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/envfile"
	"github.com/live-labs/labkeys/internal/git"
	"github.com/live-labs/labkeys/internal/keyring"
	"github.com/live-labs/labkeys/internal/settings"
	"github.com/live-labs/labkeys/internal/storage"
)

const historyLimit = 10

// Status shows where the lab settings live and whether they have been
// distributed. No password is required and no value is printed.
func Status(g Globals) {
	d := g.Distributor()
	plan := g.Locate(d)

	files, err := discovery.ListEncryptedFiles(plan.KeysDir, d.Layout().FilePattern)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Keys directory: %s\n", plan.KeysDir)
	fmt.Println("Encrypted settings:")
	if len(files) == 0 {
		fmt.Println("  (none)")
	}
	for _, file := range files {
		fmt.Printf("  %s\n", filepath.Base(file))
		if names := settingNames(file); names != "" {
			fmt.Printf("    settings: %s\n", names)
		}
	}

	fmt.Printf("\nDestination: %s\n", plan.Destination)
	content, err := d.ReadDestination(plan)
	switch {
	case err != nil:
		HandleError(err)
	case content == nil:
		fmt.Println("  (not configured, run 'labkeys configure')")
	default:
		vars, err := envfile.Parse(content)
		if err != nil {
			fmt.Printf("  unreadable: %s\n", err)
			break
		}
		fmt.Printf("  %d variables:\n", len(vars))
		for _, name := range envfile.Names(vars) {
			fmt.Printf("    %s\n", name)
		}
	}

	if p := ledgerPath(d, plan); p != "" && fileExists(p) {
		printLastRun(p, content, g.Verbose)
	}

	if id := existingInstallID(d, plan); id != "" {
		if keyring.HasPassword(id) {
			fmt.Println("\nPassword: stored in keyring")
		} else {
			fmt.Println("\nPassword: not stored")
		}
	}

	fmt.Print(git.FormatStatus(git.CheckDestination(plan.TargetRoot, plan.Destination, files)))
}

// settingNames lists the top-level setting names of an encrypted file.
// Names are stored in the clear, so no password is needed.
func settingNames(path string) string {
	doc, err := settings.ReadEncrypted(path)
	if err != nil {
		return ""
	}
	return strings.Join(doc.Keys(), ", ")
}

func printLastRun(path string, current []byte, verbose bool) {
	ledger, err := storage.Open(path, storage.DefaultTimeout)
	if err != nil {
		fmt.Printf("\nLedger: %s\n", err)
		return
	}
	defer ledger.Close()

	last, err := ledger.Latest()
	if err != nil || last == nil {
		return
	}

	fmt.Printf("\nLast configured: %s from %s (%d variables)\n",
		last.Time.Local().Format(time.RFC3339), last.Source, last.Variables)

	if current == nil || last.Destination == "" {
		return
	}
	sum := sha256.Sum256(current)
	if hex.EncodeToString(sum[:]) != last.Checksum {
		fmt.Println("  env file was modified since (see 'labkeys diff')")
	}

	if verbose {
		printHistory(ledger)
	}
}

func printHistory(ledger *storage.Ledger) {
	runs, err := ledger.History(historyLimit)
	if err != nil {
		return
	}
	if created, err := ledger.Created(); err == nil {
		fmt.Printf("\nHistory (since %s):\n", created.Local().Format(time.DateOnly))
	}
	for _, run := range runs {
		action := "configured"
		if run.Overwrite {
			action = "overwrote"
		}
		fmt.Printf("  #%d %s %s from %s\n", run.Seq, run.Time.Local().Format(time.DateTime), action, run.Source)
	}
}
