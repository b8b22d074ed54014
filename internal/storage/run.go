package storage

import "time"

// Run is one configured distribution
type Run struct {
	Seq         uint64    `json:"seq"`
	Time        time.Time `json:"time"`
	KeysDir     string    `json:"keysDir"`
	Source      string    `json:"source"` // file name inside KeysDir
	Destination string    `json:"destination"`
	Checksum    string    `json:"checksum"` // sha256 of the written content, hex
	Variables   int       `json:"variables"`
	Overwrite   bool      `json:"overwrite"`
}
