package checkpoint

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
)

// Key prefix for committed values: /checkpoint/{name}
const prefixCheckpoint = "/checkpoint/"

// Pebble configuration constants. The store holds one tiny key, so the
// memtable is kept small.
const (
	memTableSize             = 4 << 20 // 4MB
	maxConcurrentCompactions = 1
)

// PebbleStore keeps the committed value under a single Pebble key
type PebbleStore struct {
	db     *pebble.DB
	path   string
	key    []byte
	closed atomic.Bool
}

// NewPebbleStore opens (or creates) {dir}/checkpoint and addresses the value by name
func NewPebbleStore(dir, name string) (*PebbleStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("pebble checkpoint directory is required")
	}
	if name == "" {
		return nil, fmt.Errorf("pebble checkpoint name is required")
	}

	path := filepath.Join(dir, "checkpoint")
	opts := &pebble.Options{
		MemTableSize:             memTableSize,
		MaxConcurrentCompactions: func() int { return maxConcurrentCompactions },
		DisableWAL:               false,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, ioError("open", path, err)
	}

	return &PebbleStore{
		db:   db,
		path: path,
		key:  []byte(prefixCheckpoint + name),
	}, nil
}

// Load returns the committed value or nil when the key is absent
func (s *PebbleStore) Load() (*string, error) {
	if s.closed.Load() {
		return nil, ioError("read", s.path, fmt.Errorf("store is closed"))
	}

	val, closer, err := s.db.Get(s.key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("read", s.path, err)
	}
	defer closer.Close()

	if len(val) == 0 {
		return nil, nil
	}

	// val is only valid until closer.Close
	value := string(val)
	log.Info().Str("path", s.path).Str("value", value).Msg("Loaded committed value")
	return &value, nil
}

// Save writes value synchronously
func (s *PebbleStore) Save(value string) error {
	if s.closed.Load() {
		return ioError("write", s.path, fmt.Errorf("store is closed"))
	}

	if err := s.db.Set(s.key, []byte(value), pebble.Sync); err != nil {
		return ioError("write", s.path, err)
	}
	return nil
}

// Close closes the Pebble database
func (s *PebbleStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
