package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/live-labs/labkeys/internal/config"
	"github.com/live-labs/labkeys/internal/crypto"
	"github.com/live-labs/labkeys/internal/discovery"
	"github.com/live-labs/labkeys/internal/security"
	"github.com/live-labs/labkeys/internal/storage"
)

const labPassword = "lab-password"

// Encrypted with labPassword by an independent implementation
const labSettings = `{
  "AzureOpenAI": "AAECAwQFBgcICQoLDA0OD2RlZmdoaWprbG1ub+139Q9rPxVl94jKP4P8AB408jZ1GDHKwseyhUYhh8B9j38r/I1z+pI6M5I/lKR8s/rquIWOqfzkTm0+aIgLEJKx1OYbI4uTyBB62QK+59gHJV68Ag==",
  "ModelName": "AAECAwQFBgcICQoLDA0OD2RlZmdoaWprbG1ub9pTP1qRSG0dZEZI2zJa2NQooAc2SC4=",
  "MaxTokens": "AAECAwQFBgcICQoLDA0OD2RlZmdoaWprbG1ubwiFWE2R7HphxYHjqjclqlN34EM="
}`

const wantEnv = "AZUREOPENAI__ENDPOINT=https://example.openai.azure.com/\n" +
	"AZUREOPENAI__APIKEY=\"k=1 2\"\n" +
	"MODELNAME=gpt-4o\n" +
	"MAXTOKENS=800\n"

type fakeRecorder struct {
	mu   sync.Mutex
	runs []storage.Run
	err  error
}

func (f *fakeRecorder) Record(run storage.Run) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.runs = append(f.runs, run)
	return uint64(len(f.runs)), nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

// newLab creates <tmp>/labs/keys/lab1.appsettings.Local_encrypted.json and
// <tmp>/labs/notebooks, returning the labs directory.
func newLab(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	labs := filepath.Join(root, "labs")
	for _, dir := range []string{"keys", "notebooks"} {
		if err := os.MkdirAll(filepath.Join(labs, dir), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	source := filepath.Join(labs, "keys", "lab1.appsettings.Local_encrypted.json")
	if err := os.WriteFile(source, []byte(labSettings), 0644); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}
	return labs
}

func testLayout() config.Layout {
	layout := config.Default()
	layout.LedgerFile = ""
	return layout
}

func readEnv(t *testing.T, labs string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(labs, "python", ".env"))
	if err != nil {
		t.Fatalf("Failed to read env file: %v", err)
	}
	return string(data)
}

func TestRunConfiguresThenSkips(t *testing.T) {
	labs := newLab(t)
	rec := &fakeRecorder{}
	d := New(testLayout(), WithLedger(rec), WithSelector(discovery.NewSeededSelector(1)))
	ctx := context.Background()

	result, err := d.Run(ctx, []byte(labPassword), RunOptions{StartPath: filepath.Join(labs, "notebooks")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.State != StateConfigured {
		t.Fatalf("Expected configured, got %v", result.State)
	}
	if result.KeysDir != filepath.Join(labs, "keys") {
		t.Errorf("KeysDir: got %s", result.KeysDir)
	}
	if result.Destination != filepath.Join(labs, "python", ".env") {
		t.Errorf("Destination: got %s", result.Destination)
	}
	if filepath.Base(result.Source) != "lab1.appsettings.Local_encrypted.json" {
		t.Errorf("Source: got %s", result.Source)
	}
	if result.Variables != 4 {
		t.Errorf("Variables: got %d, want 4", result.Variables)
	}
	if result.LedgerSeq != 1 {
		t.Errorf("LedgerSeq: got %d, want 1", result.LedgerSeq)
	}

	first := readEnv(t, labs)
	if first != wantEnv {
		t.Errorf("Env content:\ngot  %q\nwant %q", first, wantEnv)
	}

	// Second run from inside the keys directory must not touch anything,
	// not even with a wrong password.
	result, err = d.Run(ctx, []byte("wrong"), RunOptions{StartPath: filepath.Join(labs, "keys")})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if result.State != StateSkipped {
		t.Errorf("Expected skipped, got %v", result.State)
	}
	if result.Source != "" {
		t.Errorf("Skipped run should not select a file, got %s", result.Source)
	}
	if got := readEnv(t, labs); got != first {
		t.Errorf("Env file changed on skip:\n%q\n%q", first, got)
	}
	if rec.count() != 1 {
		t.Errorf("Expected one recorded run, got %d", rec.count())
	}

	run := rec.runs[0]
	sum := sha256.Sum256([]byte(wantEnv))
	if run.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum mismatch: %s", run.Checksum)
	}
	if run.Source != "lab1.appsettings.Local_encrypted.json" || run.Variables != 4 || run.Overwrite {
		t.Errorf("Unexpected run record: %+v", run)
	}
}

func TestRunOverwrite(t *testing.T) {
	labs := newLab(t)
	if err := os.MkdirAll(filepath.Join(labs, "python"), 0755); err != nil {
		t.Fatalf("Failed to create python dir: %v", err)
	}
	envPath := filepath.Join(labs, "python", ".env")
	if err := os.WriteFile(envPath, []byte("STALE=1\n"), 0600); err != nil {
		t.Fatalf("Failed to write stale env: %v", err)
	}

	d := New(testLayout(), WithLedger(&fakeRecorder{}))
	ctx := context.Background()

	result, err := d.Run(ctx, []byte(labPassword), RunOptions{StartPath: labs})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.State != StateSkipped {
		t.Errorf("Expected skipped without overwrite, got %v", result.State)
	}
	if got := readEnv(t, labs); got != "STALE=1\n" {
		t.Errorf("Stale file modified: %q", got)
	}

	result, err = d.Run(ctx, []byte(labPassword), RunOptions{StartPath: labs, Overwrite: true})
	if err != nil {
		t.Fatalf("Overwrite run failed: %v", err)
	}
	if result.State != StateConfigured {
		t.Errorf("Expected configured, got %v", result.State)
	}
	if got := readEnv(t, labs); got != wantEnv {
		t.Errorf("Env content after overwrite: %q", got)
	}
}

func TestRunWrongPasswordWritesNothing(t *testing.T) {
	labs := newLab(t)
	rec := &fakeRecorder{}
	d := New(testLayout(), WithLedger(rec))

	_, err := d.Run(context.Background(), []byte("not-the-password"), RunOptions{StartPath: labs})
	if !errors.Is(err, crypto.ErrAuthFailed) {
		t.Fatalf("Expected ErrAuthFailed, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(labs, "python")); !os.IsNotExist(err) {
		t.Error("Target directory should not be created on failure")
	}
	if rec.count() != 0 {
		t.Error("Failed run should not be recorded")
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("no target root", func(t *testing.T) {
		root, _ := filepath.EvalSymlinks(t.TempDir())
		keys := filepath.Join(root, "course", "keys")
		if err := os.MkdirAll(keys, 0755); err != nil {
			t.Fatalf("Failed to create keys: %v", err)
		}
		layout := testLayout()
		layout.TargetRootName = "labs-root-that-does-not-exist"

		_, err := New(layout).Run(context.Background(), []byte(labPassword), RunOptions{StartPath: keys})
		if !errors.Is(err, ErrTargetDirNotFound) {
			t.Errorf("Expected ErrTargetDirNotFound, got %v", err)
		}
	})

	t.Run("no keys directory", func(t *testing.T) {
		layout := testLayout()
		layout.KeysDirName = "keys-dir-that-does-not-exist"

		_, err := New(layout).Run(context.Background(), []byte(labPassword), RunOptions{StartPath: t.TempDir()})
		if !errors.Is(err, discovery.ErrKeysDirNotFound) {
			t.Errorf("Expected ErrKeysDirNotFound, got %v", err)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		labs := newLab(t)
		empty := filepath.Join(labs, "keys", "lab1.appsettings.Local_encrypted.json")
		if err := os.Remove(empty); err != nil {
			t.Fatalf("Failed to remove settings: %v", err)
		}

		_, err := New(testLayout()).Run(context.Background(), []byte(labPassword), RunOptions{StartPath: filepath.Join(labs, "keys")})
		if !errors.Is(err, discovery.ErrNoEncryptedFiles) {
			t.Errorf("Expected ErrNoEncryptedFiles, got %v", err)
		}
	})
}

func TestRunConcurrentFirstRun(t *testing.T) {
	labs := newLab(t)
	rec := &fakeRecorder{}
	d := New(testLayout(), WithLedger(rec))

	const workers = 4
	var wg sync.WaitGroup
	states := make([]State, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := d.Run(context.Background(), []byte(labPassword), RunOptions{StartPath: labs})
			errs[i] = err
			if result != nil {
				states[i] = result.State
			}
		}(i)
	}
	wg.Wait()

	configured := 0
	for i := range states {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		switch states[i] {
		case StateConfigured:
			configured++
		case StateSkipped:
		default:
			t.Errorf("worker %d ended in %v", i, states[i])
		}
	}
	if configured != 1 {
		t.Errorf("Expected exactly one writer, got %d", configured)
	}
	if rec.count() != 1 {
		t.Errorf("Expected one recorded run, got %d", rec.count())
	}
	if got := readEnv(t, labs); got != wantEnv {
		t.Errorf("Env content: %q", got)
	}
}

func TestRunLedgerFile(t *testing.T) {
	labs := newLab(t)
	d := New(config.Default())

	result, err := d.Run(context.Background(), []byte(labPassword), RunOptions{StartPath: labs})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	plan, err := d.Locate(labs)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	ledger, err := d.OpenLedger(plan)
	if err != nil {
		t.Fatalf("OpenLedger failed: %v", err)
	}
	defer ledger.Close()

	if ledger.Path() != filepath.Join(labs, ".labkeys.db") {
		t.Errorf("Ledger path: %s", ledger.Path())
	}

	latest, err := ledger.Latest()
	if err != nil || latest == nil {
		t.Fatalf("Latest = %v, %v", latest, err)
	}
	if latest.Seq != result.LedgerSeq || latest.Destination != result.Destination {
		t.Errorf("Unexpected ledger record %+v for result %+v", latest, result)
	}
}

func TestRunLedgerFailure(t *testing.T) {
	labs := newLab(t)
	d := New(testLayout(), WithLedger(&fakeRecorder{err: errors.New("disk full")}))

	result, err := d.Run(context.Background(), []byte(labPassword), RunOptions{StartPath: labs})
	if !errors.Is(err, ErrLedgerUpdate) {
		t.Fatalf("Expected ErrLedgerUpdate, got %v", err)
	}
	if result == nil || result.State != StateConfigured {
		t.Fatalf("Expected configured result alongside ledger error, got %+v", result)
	}
	if got := readEnv(t, labs); got != wantEnv {
		t.Errorf("Env content: %q", got)
	}
}

func TestRunNonExclusiveLayout(t *testing.T) {
	labs := newLab(t)
	layout := testLayout()
	layout.ExclusiveCreate = false
	layout.TargetSubdir = ""
	layout.EnvFileName = "lab.env"

	result, err := New(layout, WithLedger(&fakeRecorder{})).Run(context.Background(), []byte(labPassword), RunOptions{StartPath: labs})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Destination != filepath.Join(labs, "lab.env") {
		t.Errorf("Destination: %s", result.Destination)
	}
	data, err := os.ReadFile(result.Destination)
	if err != nil || string(data) != wantEnv {
		t.Errorf("Env content = %q, %v", data, err)
	}
}

func TestPreviewAndDiff(t *testing.T) {
	labs := newLab(t)
	d := New(testLayout())
	source := filepath.Join(labs, "keys", "lab1.appsettings.Local_encrypted.json")

	rendered, err := d.Preview(context.Background(), []byte(labPassword), source)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if string(rendered) != wantEnv {
		t.Errorf("Preview: %q", rendered)
	}

	if out := Diff(".env", rendered, rendered); out != "" {
		t.Errorf("Expected empty diff, got %q", out)
	}

	current := []byte("MODELNAME=gpt-35\nMAXTOKENS=800\n")
	out := Diff(".env", current, rendered)
	for _, want := range []string{"--- a/.env", "+++ b/.env", "-MODELNAME=gpt-35", "+MODELNAME=gpt-4o"} {
		if !strings.Contains(out, want) {
			t.Errorf("Diff missing %q:\n%s", want, out)
		}
	}
}

func TestChangedKeys(t *testing.T) {
	current := map[string]string{"A": "1", "B": "2", "C": "3"}
	rendered := map[string]string{"A": "1", "B": "20", "D": "4"}

	added, removed, changed := ChangedKeys(current, rendered)
	if strings.Join(added, ",") != "D" || strings.Join(removed, ",") != "C" || strings.Join(changed, ",") != "B" {
		t.Errorf("got added=%v removed=%v changed=%v", added, removed, changed)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateNotConfigured: "not configured",
		StateDistributing:  "distributing",
		StateConfigured:    "configured",
		StateSkipped:       "skipped",
		State(9):           "State(9)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%d: got %q, want %q", int(state), got, want)
		}
	}
}

func TestGetPasswordFromEnv(t *testing.T) {
	t.Setenv(config.EnvPassword, "")
	if GetPasswordFromEnv() != nil {
		t.Error("Expected nil for empty variable")
	}

	t.Setenv(config.EnvPassword, labPassword)
	if got := string(GetPasswordFromEnv()); got != labPassword {
		t.Errorf("got %q", got)
	}
}

func TestReadDestination(t *testing.T) {
	labs := newLab(t)
	d := New(testLayout())

	plan, err := d.Locate(labs)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	current, err := d.ReadDestination(plan)
	if err != nil {
		t.Fatalf("ReadDestination failed: %v", err)
	}
	if current != nil {
		t.Errorf("Expected nil before configuring, got %q", current)
	}

	if _, err := d.Run(context.Background(), []byte(labPassword), RunOptions{StartPath: labs}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	current, err = d.ReadDestination(plan)
	if err != nil {
		t.Fatalf("ReadDestination failed: %v", err)
	}
	if string(current) != wantEnv {
		t.Errorf("ReadDestination: got %q, want %q", current, wantEnv)
	}
}

func TestRunRejectsDestinationOutsideTargetRoot(t *testing.T) {
	labs := newLab(t)
	layout := testLayout()
	layout.TargetSubdir = filepath.Join("..", "outside")
	d := New(layout)

	result, err := d.Run(context.Background(), []byte(labPassword), RunOptions{StartPath: labs})
	if !errors.Is(err, security.ErrPathEscapes) {
		t.Fatalf("Expected ErrPathEscapes, got %v (result %+v)", err, result)
	}
	if !strings.Contains(err.Error(), labs) {
		t.Errorf("Error does not name the target root %s: %v", labs, err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(labs), "outside", ".env")); !os.IsNotExist(statErr) {
		t.Errorf("Env file written outside the target root (stat err=%v)", statErr)
	}
}
