package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables read by labkeys
const (
	EnvConfig          = "LABKEYS_CONFIG"
	EnvPassword        = "LABKEYS_PASSWORD"
	EnvTargetSubdir    = "LABKEYS_TARGET_SUBDIR"
	EnvFileName        = "LABKEYS_ENV_FILE"
	EnvExclusiveCreate = "LABKEYS_EXCLUSIVE_CREATE"
)

// Layout describes where secrets live and where the environment file goes.
type Layout struct {
	// KeysDirName is the directory that holds encrypted settings files.
	// Matched case-insensitively when walking up, literally when looking
	// into a child directory.
	KeysDirName string `yaml:"keys_dir"`
	// FilePattern selects encrypted settings files inside the keys directory.
	FilePattern string `yaml:"file_pattern"`
	// TargetRootName is the ancestor of the keys directory that anchors the
	// destination.
	TargetRootName string `yaml:"target_root"`
	// TargetSubdir and EnvFileName give the destination relative to the
	// target root.
	TargetSubdir string `yaml:"target_subdir"`
	EnvFileName  string `yaml:"env_file"`
	// LedgerFile is the run history, relative to the target root. Empty
	// disables it.
	LedgerFile string `yaml:"ledger_file"`
	// ExclusiveCreate makes first-run writes fail-if-exists, so concurrent
	// distributors agree on a single winner.
	ExclusiveCreate bool `yaml:"exclusive_create"`
}

// Default returns the layout used by the lab repositories
func Default() Layout {
	return Layout{
		KeysDirName:     "keys",
		FilePattern:     "*.appsettings.Local_encrypted.json",
		TargetRootName:  "labs",
		TargetSubdir:    "python",
		EnvFileName:     ".env",
		LedgerFile:      ".labkeys.db",
		ExclusiveCreate: true,
	}
}

// Load reads a YAML layout file on top of the defaults. An empty path falls
// back to $LABKEYS_CONFIG; a missing file is not an error.
func Load(path string) (Layout, error) {
	layout := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Layout{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &layout); err != nil {
				return Layout{}, fmt.Errorf("parsing YAML config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv(EnvTargetSubdir); v != "" {
		layout.TargetSubdir = v
	}
	if v := os.Getenv(EnvFileName); v != "" {
		layout.EnvFileName = v
	}
	if v := os.Getenv(EnvExclusiveCreate); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Layout{}, fmt.Errorf("%s: %w", EnvExclusiveCreate, err)
		}
		layout.ExclusiveCreate = b
	}

	return layout, layout.Validate()
}

// Validate checks that the required names are set
func (l Layout) Validate() error {
	switch {
	case l.KeysDirName == "":
		return fmt.Errorf("config: keys_dir must not be empty")
	case l.FilePattern == "":
		return fmt.Errorf("config: file_pattern must not be empty")
	case l.TargetRootName == "":
		return fmt.Errorf("config: target_root must not be empty")
	case l.EnvFileName == "":
		return fmt.Errorf("config: env_file must not be empty")
	}
	return nil
}
