// Package storage keeps the distribution ledger, a small bbolt database in
// the labs directory.
//
// Database structure uses two buckets:
//   - config: format version, creation time, random installation ID
//   - runs: one JSON record per configured run, keyed by big-endian sequence
//
// The ledger never holds secrets. It records which encrypted file was used,
// where the env file was written and a checksum of what was written, so
// status can report on the last distribution without a password.
//
// Lab processes may configure concurrently; bbolt's file lock serializes
// them and Open gives up with ErrLocked after its timeout.
package storage
