package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "labkeys"

// ErrNotFound is returned when no password is stored for the installation
var ErrNotFound = keyring.ErrNotFound

// SavePassword stores the lab password for an installation ID
func SavePassword(installID string, password string) error {
	return keyring.Set(serviceName, installID, password)
}

// GetPassword retrieves the lab password for an installation ID
func GetPassword(installID string) (string, error) {
	return keyring.Get(serviceName, installID)
}

// LookupPassword is GetPassword with a missing entry reported as ok=false
// instead of an error.
func LookupPassword(installID string) (string, bool, error) {
	password, err := GetPassword(installID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return password, true, nil
}

// DeletePassword removes the stored password
func DeletePassword(installID string) error {
	return keyring.Delete(serviceName, installID)
}

// HasPassword checks if a password is stored for the installation
func HasPassword(installID string) bool {
	_, err := keyring.Get(serviceName, installID)
	return err == nil
}
