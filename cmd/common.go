package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/live-labs/labkeys/internal/config"
	"github.com/live-labs/labkeys/internal/core"
	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/logger"
	"github.com/live-labs/labkeys/internal/security"
	"github.com/live-labs/labkeys/internal/settings"
	"github.com/live-labs/labkeys/internal/storage"
)

// Globals are the flags shared by every command
type Globals struct {
	Dir     string
	Config  string
	Verbose bool
	Debug   bool
}

// Logger returns a logger honoring --verbose and --debug
func (g Globals) Logger() logger.Logger {
	return logger.Logger{Verbose: g.Verbose, Debug: g.Debug}
}

// StartDir is where the keys directory search begins
func (g Globals) StartDir() string {
	if g.Dir == "" {
		return "."
	}
	return g.Dir
}

// Distributor loads the layout and builds a distributor, exiting on a bad
// config file.
func (g Globals) Distributor(opts ...core.Option) *core.Distributor {
	layout, err := config.Load(g.Config)
	if err != nil {
		HandleError(err)
	}
	return core.New(layout, opts...)
}

// Locate resolves the plan or exits
func (g Globals) Locate(d *core.Distributor) *core.Plan {
	plan, err := d.Locate(g.StartDir())
	if err != nil {
		HandleError(err)
	}
	log := g.Logger()
	log.Debugf("keys directory: %s", plan.KeysDir)
	log.Debugf("target root: %s", plan.TargetRoot)
	log.Debugf("destination: %s", plan.Destination)
	return plan
}

// installID identifies the labs directory for the keyring. It comes from
// the ledger; with the ledger disabled it is derived from the path.
func installID(d *core.Distributor, plan *core.Plan) (string, error) {
	ledger, err := d.OpenLedger(plan)
	if err != nil {
		return "", err
	}
	if ledger == nil {
		sum := sha256.Sum256([]byte(plan.TargetRoot))
		return hex.EncodeToString(sum[:16]), nil
	}
	defer ledger.Close()
	return ledger.GetOrCreateID()
}

// existingInstallID is installID without creating a ledger file
func existingInstallID(d *core.Distributor, plan *core.Plan) string {
	if p := ledgerPath(d, plan); p != "" && !fileExists(p) {
		return ""
	}
	id, err := installID(d, plan)
	if err != nil {
		return ""
	}
	return id
}

func ledgerPath(d *core.Distributor, plan *core.Plan) string {
	name := d.Layout().LedgerFile
	if name == "" {
		return ""
	}
	return filepath.Join(plan.TargetRoot, name)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// errorMessage maps known errors to the lines shown to the user
func errorMessage(err error) []string {
	switch {
	case errors.Is(err, discovery.ErrKeysDirNotFound):
		return []string{
			"Error: no keys directory found",
			"Run inside the labs repository or pass -C <dir>",
		}
	case errors.Is(err, discovery.ErrNoEncryptedFiles):
		return []string{
			fmt.Sprintf("Error: %s", err),
			"Create one with 'labkeys encrypt <settings.json>'",
		}
	case errors.Is(err, core.ErrTargetDirNotFound):
		return []string{fmt.Sprintf("Error: %s", err)}
	case errors.Is(err, crypto.ErrAuthFailed):
		return []string{"Error: wrong password or corrupted data"}
	case errors.Is(err, crypto.ErrMalformedBlob), errors.Is(err, crypto.ErrInvalidUTF8):
		return []string{
			fmt.Sprintf("Error: %s", err),
			"The encrypted settings file is damaged or was not written by labkeys",
		}
	case errors.Is(err, settings.ErrNotObject), errors.Is(err, settings.ErrValueNotString):
		return []string{fmt.Sprintf("Error: invalid settings file: %s", err)}
	case errors.Is(err, core.ErrPasswordRequired):
		return []string{
			"Error: password required",
			fmt.Sprintf("Pass --password, set %s or save it with 'labkeys keyring save'", config.EnvPassword),
		}
	case errors.Is(err, storage.ErrLocked):
		return []string{
			fmt.Sprintf("Error: %s", err),
			"Another labkeys process is running; try again",
		}
	case errors.Is(err, security.ErrPathEscapes), errors.Is(err, security.ErrAbsolutePath):
		return []string{fmt.Sprintf("Error: refusing to write outside the labs directory: %s", err)}
	default:
		return []string{fmt.Sprintf("Error: %s", err)}
	}
}

// HandleError prints a user-facing message and exits with status 1
func HandleError(err error) {
	for _, line := range errorMessage(err) {
		fmt.Fprintln(os.Stderr, line)
	}
	os.Exit(1)
}
