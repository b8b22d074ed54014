package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrKeysDirNotFound  = errors.New("unable to locate a keys directory containing encrypted settings files")
	ErrNoEncryptedFiles = errors.New("no encrypted settings files found")
)

// FindKeysDirectory walks from start toward the filesystem root. A directory
// matches when its own name equals dirName (case-insensitive), or when it
// has a child literally named dirName holding at least one file that matches
// pattern. The first match wins.
func FindKeysDirectory(start, dirName, pattern string) (string, error) {
	current, err := resolve(start)
	if err != nil {
		return "", err
	}

	for {
		if strings.EqualFold(filepath.Base(current), dirName) {
			return current, nil
		}

		candidate := filepath.Join(current, dirName)
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			files, err := ListEncryptedFiles(candidate, pattern)
			if err != nil {
				return "", err
			}
			if len(files) > 0 {
				return candidate, nil
			}
		} else if err != nil && !os.IsNotExist(err) {
			// Permission problems are worth reporting, absence is not
			return "", fmt.Errorf("error checking for %s directory at %s: %w", dirName, current, err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w (searched upward from %s)", ErrKeysDirNotFound, start)
		}
		current = parent
	}
}

// FindAncestor returns the closest directory at or above from whose name
// equals name, ignoring case.
func FindAncestor(from, name string) (string, bool) {
	current, err := resolve(from)
	if err != nil {
		return "", false
	}

	for {
		if strings.EqualFold(filepath.Base(current), name) {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// ListEncryptedFiles returns the regular files directly under dir whose
// names match pattern, sorted by name.
func ListEncryptedFiles(dir, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); ok {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// resolve makes path absolute and resolves symlinks
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return resolved, nil
}
