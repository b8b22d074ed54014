package cmd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/live-labs/labkeys/internal/core"
	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/envfile"
	"github.com/live-labs/labkeys/internal/storage"
)

// Diff compares the env file on disk with what an encrypted settings file
// would produce. Only variable names are shown unless showValues is set.
func Diff(ctx context.Context, g Globals, file, explicitPassword string, showValues bool) {
	d := g.Distributor()
	plan := g.Locate(d)

	source, err := diffSource(d, plan, file)
	if err != nil {
		HandleError(err)
	}
	g.Logger().Infof("comparing with %s", filepath.Base(source))

	current, err := d.ReadDestination(plan)
	if err != nil {
		HandleError(err)
	}

	password, _, err := GetPassword(explicitPassword, existingInstallID(d, plan), "Enter lab password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	rendered, err := d.Preview(ctx, password, source)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(rendered)

	summary, err := summarizeDiff(plan.Destination, current, rendered, showValues)
	if err != nil {
		HandleError(err)
	}
	fmt.Print(summary)
}

// summarizeDiff lists the variable names that differ between the env file
// on disk and the rendered one, followed by the full diff when showValues
// is set.
func summarizeDiff(destination string, current, rendered []byte, showValues bool) (string, error) {
	if bytes.Equal(current, rendered) {
		return "no changes\n", nil
	}

	currentVars, err := envfile.Parse(current)
	if err != nil {
		return "", fmt.Errorf("%s: %w", destination, err)
	}
	renderedVars, err := envfile.Parse(rendered)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	added, removed, changed := core.ChangedKeys(currentVars, renderedVars)
	for _, name := range added {
		fmt.Fprintf(&out, "  + %s\n", name)
	}
	for _, name := range removed {
		fmt.Fprintf(&out, "  - %s\n", name)
	}
	for _, name := range changed {
		fmt.Fprintf(&out, "  ~ %s\n", name)
	}
	if len(added)+len(removed)+len(changed) == 0 {
		out.WriteString("  formatting differs only\n")
	}

	if showValues {
		out.WriteString("\n")
		out.WriteString(core.Diff(filepath.Base(destination), current, rendered))
	}
	return out.String(), nil
}

// diffSource picks the encrypted file to compare with: the one named, the
// one used by the last configured run, or the only candidate.
func diffSource(d *core.Distributor, plan *core.Plan, file string) (string, error) {
	if file != "" {
		if filepath.IsAbs(file) || filepath.Base(file) != file {
			return file, nil
		}
		return filepath.Join(plan.KeysDir, file), nil
	}

	if p := ledgerPath(d, plan); p != "" && fileExists(p) {
		ledger, err := storage.Open(p, storage.DefaultTimeout)
		if err != nil {
			return "", err
		}
		last, err := ledger.Latest()
		ledger.Close()
		if err != nil {
			return "", err
		}
		if last != nil && last.Source != "" {
			candidate := filepath.Join(plan.KeysDir, last.Source)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}

	files, err := discovery.ListEncryptedFiles(plan.KeysDir, d.Layout().FilePattern)
	if err != nil {
		return "", err
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("%w in %s", discovery.ErrNoEncryptedFiles, plan.KeysDir)
	case 1:
		return files[0], nil
	default:
		return "", fmt.Errorf("%d encrypted settings files in %s; choose one with --file", len(files), plan.KeysDir)
	}
}
