package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/live-labs/labkeys/internal/core"
	"github.com/live-labs/labkeys/internal/keyring"
)

// PasswordSource records where a password came from
type PasswordSource int

const (
	SourceFlag PasswordSource = iota
	SourceEnv
	SourceKeyring
	SourcePrompt
)

// GetPassword resolves the lab password from, in order: the explicit
// value (flag or positional argument), LABKEYS_PASSWORD, the keyring entry
// for installID and finally a terminal prompt.
// The caller is responsible for calling crypto.ClearBytes on the result.
func GetPassword(explicit, installID, prompt string) ([]byte, PasswordSource, error) {
	if explicit != "" {
		return []byte(explicit), SourceFlag, nil
	}

	if password := core.GetPasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	if installID != "" {
		if password, ok, err := keyring.LookupPassword(installID); err == nil && ok {
			return []byte(password), SourceKeyring, nil
		}
	}

	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, SourcePrompt, err
	}
	return password, SourcePrompt, nil
}

// GetNewPassword is used where a password is being chosen: an explicit
// value or LABKEYS_PASSWORD, otherwise a prompt with confirmation.
func GetNewPassword(explicit string) ([]byte, error) {
	if explicit != "" {
		return []byte(explicit), nil
	}
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, nil
	}
	return core.ReadPasswordConfirm()
}

// OfferToSavePassword asks on an interactive terminal whether to keep the
// password in the OS keyring.
func OfferToSavePassword(installID string, password []byte) {
	if installID == "" || !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	if keyring.HasPassword(installID) {
		return
	}

	fmt.Fprint(os.Stderr, "Save password to OS keyring? [y/N]: ")
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return
	}
	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		return
	}

	if err := keyring.SavePassword(installID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save to keyring: %s\n", err)
		return
	}
	fmt.Println("Password saved to keyring")
}
