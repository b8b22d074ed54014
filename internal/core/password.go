package core

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/live-labs/labkeys/internal/config"
	"github.com/live-labs/labkeys/internal/crypto"
)

// ReadPassword reads a password from the terminal without echoing. The
// prompt goes to stderr so stdout stays clean for scripts.
func ReadPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal", ErrPasswordRequired)
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm() ([]byte, error) {
	password1, err := ReadPassword("Enter lab password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm lab password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, fmt.Errorf("passwords do not match")
	}

	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// GetPasswordFromEnv reads the password from LABKEYS_PASSWORD
func GetPasswordFromEnv() []byte {
	password, ok := os.LookupEnv(config.EnvPassword)
	if !ok || password == "" {
		return nil
	}
	return []byte(password)
}
