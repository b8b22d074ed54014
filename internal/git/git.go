package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Status describes how the lab files sit in git
type Status struct {
	IsRepo             bool
	EnvPath            string
	EnvTracked         bool     // the plaintext env file is committed (bad)
	EnvIgnored         bool     // the env file is covered by .gitignore (good)
	TrackedEncrypted   []string // encrypted settings under version control (good)
	UntrackedEncrypted []string // encrypted settings missing from git (warning)
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	return cmd.Run() == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a path is ignored by any .gitignore. The file does
// not need to exist.
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--no-index", "--", path)
	cmd.Dir = workDir
	return cmd.Run() == nil
}

// CheckDestination reports whether the env destination is kept out of git
// and the encrypted settings files are kept in it. Paths may be absolute
// as long as they are inside workDir's repository.
func CheckDestination(workDir, envPath string, encryptedFiles []string) *Status {
	status := &Status{EnvPath: envPath}
	if !IsGitRepo(workDir) {
		return status
	}
	status.IsRepo = true

	status.EnvTracked = IsTracked(workDir, envPath)
	status.EnvIgnored = IsIgnored(workDir, envPath)

	for _, file := range encryptedFiles {
		if IsTracked(workDir, file) {
			status.TrackedEncrypted = append(status.TrackedEncrypted, file)
		} else {
			status.UntrackedEncrypted = append(status.UntrackedEncrypted, file)
		}
	}
	return status
}

// Problems returns one line per issue found, empty when everything is fine
func (s *Status) Problems() []string {
	if !s.IsRepo {
		return nil
	}

	var problems []string
	name := filepath.Base(s.EnvPath)
	if s.EnvTracked {
		problems = append(problems, fmt.Sprintf("%s is tracked by git (run: git rm --cached %s)", name, s.EnvPath))
	} else if !s.EnvIgnored {
		problems = append(problems, fmt.Sprintf("%s is not in .gitignore", name))
	}
	for _, file := range s.UntrackedEncrypted {
		problems = append(problems, fmt.Sprintf("%s is not tracked by git", filepath.Base(file)))
	}
	return problems
}

// FormatStatus formats the git checks for display
func FormatStatus(status *Status) string {
	if !status.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit Integration:\n")

	name := filepath.Base(status.EnvPath)
	switch {
	case status.EnvTracked:
		result.WriteString(fmt.Sprintf("   error: %s is tracked by git (run: git rm --cached %s)\n", name, status.EnvPath))
	case !status.EnvIgnored:
		result.WriteString(fmt.Sprintf("   warning: %s not in .gitignore (add to .gitignore)\n", name))
	default:
		result.WriteString(fmt.Sprintf("   ok: %s is ignored by git\n", name))
	}

	for _, file := range status.UntrackedEncrypted {
		result.WriteString(fmt.Sprintf("   warning: %s not tracked (run: git add %s)\n", filepath.Base(file), file))
	}
	if n := len(status.TrackedEncrypted); n > 0 {
		result.WriteString(fmt.Sprintf("   ok: %d encrypted file(s) tracked by git\n", n))
	}

	return result.String()
}
