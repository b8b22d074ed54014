package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes target root")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")

	// ErrExists is returned by WriteFileExclusive when the file is already
	// there. It wraps fs.ErrExist.
	ErrExists = fmt.Errorf("destination already exists: %w", fs.ErrExist)
)

const tempPrefix = ".labkeys-"

// PathValidator confines destination writes to a target root directory
// (the labs directory) using os.Root, so a crafted layout or symlink cannot
// make a distribution write outside of it.
type PathValidator struct {
	root     *os.Root
	rootPath string
}

// New opens rootPath as the confinement root
func New(rootPath string) (*PathValidator, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open target root: %w", err)
	}

	return &PathValidator{
		root:     root,
		rootPath: absPath,
	}, nil
}

// Close releases the root handle
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// RootPath returns the absolute path of the root directory
func (pv *PathValidator) RootPath() string {
	return pv.rootPath
}

// Rel converts an absolute path below the root into a validated relative one
func (pv *PathValidator) Rel(absPath string) (string, error) {
	rel, err := filepath.Rel(pv.rootPath, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	return pv.ValidateAndNormalize(rel)
}

// ValidateAndNormalize rejects empty, absolute and escaping paths and
// returns the cleaned path with forward slashes.
func (pv *PathValidator) ValidateAndNormalize(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(userPath) {
		if filepath.IsAbs(userPath) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, userPath)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	cleanPath := filepath.Clean(userPath)
	relPath, err := filepath.Rel(pv.rootPath, filepath.Join(pv.rootPath, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	return filepath.ToSlash(relPath), nil
}

func (pv *PathValidator) platformPath(path string) (string, error) {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return platformPath, nil
}

// MkdirAllInRoot creates a directory and its parents inside the root
func (pv *PathValidator) MkdirAllInRoot(path string, perm os.FileMode) error {
	platformPath, err := pv.platformPath(path)
	if err != nil {
		return err
	}
	return pv.root.MkdirAll(platformPath, perm)
}

// WriteFileExclusive creates path and writes data, failing with ErrExists
// if the file is already present. On a failed write the new file is removed
// so no partial file stays behind.
func (pv *PathValidator) WriteFileExclusive(path string, data []byte, perm os.FileMode) error {
	platformPath, err := pv.platformPath(path)
	if err != nil {
		return err
	}

	f, err := pv.root.OpenFile(platformPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return err
	}

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		pv.root.Remove(platformPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data. The content goes to a temporary
// file in the same directory first and is renamed over the destination, so
// readers see either the old or the new file.
func (pv *PathValidator) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	platformPath, err := pv.platformPath(path)
	if err != nil {
		return err
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Errorf("failed to generate temp name: %w", err)
	}
	tmpPath := filepath.Join(filepath.Dir(platformPath), tempPrefix+hex.EncodeToString(suffix))

	if err := pv.WriteFileExclusive(filepath.ToSlash(tmpPath), data, perm); err != nil {
		return err
	}
	if err := pv.root.Rename(tmpPath, platformPath); err != nil {
		pv.root.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadFileInRoot reads a file inside the root
func (pv *PathValidator) ReadFileInRoot(path string) ([]byte, error) {
	platformPath, err := pv.platformPath(path)
	if err != nil {
		return nil, err
	}
	return pv.root.ReadFile(platformPath)
}

// StatInRoot stats a file inside the root
func (pv *PathValidator) StatInRoot(path string) (os.FileInfo, error) {
	platformPath, err := pv.platformPath(path)
	if err != nil {
		return nil, err
	}
	return pv.root.Stat(platformPath)
}

// Exists reports whether path is present inside the root. Errors other than
// "not exist" are returned.
func (pv *PathValidator) Exists(path string) (bool, error) {
	_, err := pv.StatInRoot(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
