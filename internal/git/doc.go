// Package git checks that lab secrets sit in git the right way round.
//
// Checks performed:
//   - Whether the materialized .env file is tracked by git (must not be)
//   - Whether the .env file is in .gitignore (should be)
//   - Whether the encrypted settings files are tracked (should be)
//
// The checks shell out to the git binary and report nothing outside a
// repository.
package git
