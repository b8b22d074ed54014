package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/live-labs/labkeys/internal/config"
	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/envfile"
	"github.com/live-labs/labkeys/internal/security"
	"github.com/live-labs/labkeys/internal/settings"
	"github.com/live-labs/labkeys/internal/storage"
)

const (
	DirPerm  = 0755
	FilePerm = settings.FilePerm
)

var (
	ErrTargetDirNotFound = errors.New("target root not found above keys directory")
	ErrPasswordRequired  = errors.New("password required")

	// ErrLedgerUpdate means the env file was written but the run could not
	// be recorded. The Result returned alongside it is valid.
	ErrLedgerUpdate = errors.New("env file written but ledger update failed")
)

// State is where a distribution run ended up
type State int

const (
	StateNotConfigured State = iota
	StateDistributing
	StateConfigured
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateNotConfigured:
		return "not configured"
	case StateDistributing:
		return "distributing"
	case StateConfigured:
		return "configured"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunOptions controls a single distribution
type RunOptions struct {
	StartPath string
	Overwrite bool
}

// Plan is where a distribution reads from and writes to
type Plan struct {
	KeysDir     string
	TargetRoot  string
	Destination string
}

// Result describes a finished run
type Result struct {
	State       State
	KeysDir     string
	Source      string // empty when skipped
	Destination string
	Variables   int
	LedgerSeq   uint64
}

// Recorder stores configured runs
type Recorder interface {
	Record(run storage.Run) (uint64, error)
}

// Option configures a Distributor
type Option func(*Distributor)

// WithSelector replaces the random file selector
func WithSelector(s *discovery.Selector) Option {
	return func(d *Distributor) {
		d.selector = s
	}
}

// WithLedger records runs into r instead of the ledger file named by the
// layout.
func WithLedger(r Recorder) Option {
	return func(d *Distributor) {
		d.ledger = r
	}
}

// Distributor materializes an encrypted lab settings file as an env file.
// It is safe to run repeatedly and from several processes at once: an
// existing destination is left alone unless an overwrite is requested.
type Distributor struct {
	layout   config.Layout
	selector *discovery.Selector
	ledger   Recorder
}

// New creates a Distributor for the given layout
func New(layout config.Layout, opts ...Option) *Distributor {
	d := &Distributor{
		layout:   layout,
		selector: discovery.NewSelector(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Layout returns the layout the distributor works with
func (d *Distributor) Layout() config.Layout {
	return d.layout
}

// Locate finds the keys directory from startPath and derives the
// destination below the target root that contains it.
func (d *Distributor) Locate(startPath string) (*Plan, error) {
	keysDir, err := discovery.FindKeysDirectory(startPath, d.layout.KeysDirName, d.layout.FilePattern)
	if err != nil {
		return nil, err
	}

	targetRoot, ok := discovery.FindAncestor(keysDir, d.layout.TargetRootName)
	if !ok {
		return nil, fmt.Errorf("%w: no %q directory above %s", ErrTargetDirNotFound, d.layout.TargetRootName, keysDir)
	}

	return &Plan{
		KeysDir:     keysDir,
		TargetRoot:  targetRoot,
		Destination: filepath.Join(targetRoot, d.layout.TargetSubdir, d.layout.EnvFileName),
	}, nil
}

// Run locates, selects, decrypts, flattens and writes. When the destination
// exists and opts.Overwrite is false it returns StateSkipped without
// reading any encrypted file. Nothing is written unless every field
// decrypted.
func (d *Distributor) Run(ctx context.Context, password []byte, opts RunOptions) (*Result, error) {
	plan, err := d.Locate(opts.StartPath)
	if err != nil {
		return nil, err
	}

	result := &Result{
		State:       StateNotConfigured,
		KeysDir:     plan.KeysDir,
		Destination: plan.Destination,
	}

	validator, err := security.New(plan.TargetRoot)
	if err != nil {
		return nil, err
	}
	defer validator.Close()

	dest, err := validator.Rel(plan.Destination)
	if err != nil {
		return nil, fmt.Errorf("destination %s is not inside %s: %w", plan.Destination, validator.RootPath(), err)
	}

	if !opts.Overwrite {
		exists, err := validator.Exists(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", plan.Destination, err)
		}
		if exists {
			result.State = StateSkipped
			return result, nil
		}
	}

	result.State = StateDistributing

	source, err := d.selector.Select(plan.KeysDir, d.layout.FilePattern)
	if err != nil {
		return nil, err
	}
	result.Source = source

	content, count, err := d.render(ctx, source, password)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(content)

	if dir := filepath.Dir(filepath.FromSlash(dest)); dir != "." {
		if err := validator.MkdirAllInRoot(dir, DirPerm); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(plan.Destination), err)
		}
	}

	switch {
	case opts.Overwrite || !d.layout.ExclusiveCreate:
		err = validator.WriteFileAtomic(dest, content, FilePerm)
	default:
		err = validator.WriteFileExclusive(dest, content, FilePerm)
		if errors.Is(err, security.ErrExists) {
			// another process won the first-run race
			result.State = StateSkipped
			result.Source = ""
			return result, nil
		}
	}
	if err != nil {
		return nil, err
	}

	result.State = StateConfigured
	result.Variables = count

	seq, err := d.record(plan, result, content, opts.Overwrite)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrLedgerUpdate, err)
	}
	result.LedgerSeq = seq

	return result, nil
}

// Preview decrypts source and renders the env file content Run would write
func (d *Distributor) Preview(ctx context.Context, password []byte, source string) ([]byte, error) {
	content, _, err := d.render(ctx, source, password)
	return content, err
}

func (d *Distributor) render(ctx context.Context, source string, password []byte) ([]byte, int, error) {
	doc, err := settings.ReadEncrypted(source)
	if err != nil {
		return nil, 0, err
	}

	plain, err := settings.DecryptDocument(ctx, doc, password)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", filepath.Base(source), err)
	}

	lines, err := envfile.Flatten(plain)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", filepath.Base(source), err)
	}
	return envfile.Render(lines), len(lines), nil
}

// ReadDestination returns the env file currently at the plan's destination,
// or nil when there is none.
func (d *Distributor) ReadDestination(plan *Plan) ([]byte, error) {
	validator, err := security.New(plan.TargetRoot)
	if err != nil {
		return nil, err
	}
	defer validator.Close()

	dest, err := validator.Rel(plan.Destination)
	if err != nil {
		return nil, err
	}
	data, err := validator.ReadFileInRoot(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// OpenLedger opens the ledger file of a plan's target root
func (d *Distributor) OpenLedger(plan *Plan) (*storage.Ledger, error) {
	if d.layout.LedgerFile == "" {
		return nil, nil
	}
	return storage.Open(filepath.Join(plan.TargetRoot, d.layout.LedgerFile), storage.DefaultTimeout)
}

func (d *Distributor) record(plan *Plan, result *Result, content []byte, overwrite bool) (uint64, error) {
	rec := d.ledger
	if rec == nil {
		ledger, err := d.OpenLedger(plan)
		if err != nil {
			return 0, err
		}
		if ledger == nil {
			return 0, nil
		}
		defer ledger.Close()
		rec = ledger
	}

	sum := sha256.Sum256(content)
	return rec.Record(storage.Run{
		KeysDir:     result.KeysDir,
		Source:      filepath.Base(result.Source),
		Destination: result.Destination,
		Checksum:    hex.EncodeToString(sum[:]),
		Variables:   result.Variables,
		Overwrite:   overwrite,
	})
}
