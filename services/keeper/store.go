package keeper

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"
)

var bucketSchedules = []byte("schedules")

// Cursors persists when each schedule is next due so a restarted keeper does
// not donate again before the interval elapses.
type Cursors interface {
	Load(name string) (Cursor, bool, error)
	Save(name string, cursor Cursor) error
}

// Cursor is the stored progress of one schedule. Token guards against a
// schedule name being reused for a different token.
type Cursor struct {
	Token       common.Address `json:"token"`
	Next        time.Time      `json:"next"`
	LastOutcome string         `json:"lastOutcome,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Store keeps schedule cursors in a BoltDB file.
type Store struct {
	db *bolt.DB
}

// NewStore opens (and creates) the cursor database at path.
func NewStore(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSchedules)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the cursor stored for name.
func (s *Store) Load(name string) (Cursor, bool, error) {
	var (
		cursor Cursor
		found  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSchedules).Get([]byte(name))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &cursor)
	})
	if err != nil {
		return Cursor{}, false, err
	}
	return cursor, found, nil
}

// Save replaces the cursor stored for name.
func (s *Store) Save(name string, cursor Cursor) error {
	if name == "" {
		return errors.New("keeper: schedule name required")
	}
	raw, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSchedules).Put([]byte(name), raw)
	})
}
