package storage

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket = []byte("config") // version, creation time, install ID
	RunsBucket   = []byte("runs")   // one JSON record per configured run, keyed by sequence
)

// Config keys
var (
	ConfigVersion = []byte("version")
	ConfigCreated = []byte("created")
	ConfigID      = []byte("id")
)

const (
	// DefaultTimeout bounds the wait for another process holding the file lock
	DefaultTimeout = 5 * time.Second

	// MaxRuns is how many run records are kept; older ones are dropped
	MaxRuns = 200
)

// ErrLocked is returned when the ledger stays locked by another process
// longer than the open timeout.
var ErrLocked = errors.New("ledger is locked by another process")

// Ledger is the bbolt-backed distribution history
type Ledger struct {
	db *bolt.DB
}

// Open opens or creates the ledger at path and makes sure its buckets exist
func Open(path string, timeout time.Duration) (*Ledger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path
func (l *Ledger) Path() string {
	return l.db.Path()
}

func (l *Ledger) initialize() error {
	return l.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, RunsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}
		created, _ := time.Now().MarshalBinary()
		return config.Put(ConfigCreated, created)
	})
}

// Created returns when the ledger was first initialized
func (l *Ledger) Created() (time.Time, error) {
	var created time.Time
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(ConfigBucket).Get(ConfigCreated)
		if data == nil {
			return fmt.Errorf("created time not found")
		}
		return created.UnmarshalBinary(data)
	})
	return created, err
}

// GetOrCreateID returns the random identifier of this labs installation,
// generating it on first use. The keyring stores passwords under it.
func (l *Ledger) GetOrCreateID() (string, error) {
	var id string
	err := l.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if data := config.Get(ConfigID); data != nil {
			id = string(data)
			return nil
		}

		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("failed to generate ledger ID: %w", err)
		}
		id = hex.EncodeToString(b)
		return config.Put(ConfigID, []byte(id))
	})
	return id, err
}

// Record appends a run and drops the oldest records beyond MaxRuns.
// Seq is assigned by the ledger.
func (l *Ledger) Record(run Run) (uint64, error) {
	var seq uint64
	err := l.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(RunsBucket)

		var err error
		seq, err = runs.NextSequence()
		if err != nil {
			return err
		}
		run.Seq = seq
		if run.Time.IsZero() {
			run.Time = time.Now()
		}

		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if err := runs.Put(seqKey(seq), data); err != nil {
			return err
		}
		return trim(runs, MaxRuns)
	})
	return seq, err
}

// Latest returns the most recent run, or nil if none was recorded
func (l *Ledger) Latest() (*Run, error) {
	runs, err := l.History(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// History returns up to limit runs, newest first. A limit <= 0 returns all.
func (l *Ledger) History(limit int) ([]Run, error) {
	var runs []Run
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(RunsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run record %x: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

func trim(runs *bolt.Bucket, keep int) error {
	var keys [][]byte
	c := runs.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	if len(keys) <= keep {
		return nil
	}

	stale := keys[:len(keys)-keep]
	for _, k := range stale {
		if err := runs.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
