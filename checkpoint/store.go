// Package checkpoint persists the single committed cursor value of a reader
// across restarts.
//
// A store holds exactly one opaque string. Load returns nil when nothing has
// been committed yet. Save overwrites the previous value wholesale. Stores are
// single-writer: two readers sharing one location race with no locking.
package checkpoint

import (
	"errors"
	"fmt"
)

// DefaultPath is the relative location of the file store
const DefaultPath = "committed_value.backup"

// ErrCheckpointIO wraps every failure to read or write a checkpoint
var ErrCheckpointIO = errors.New("checkpoint I/O failure")

// Store persists a single cursor value
type Store interface {
	// Load returns the committed value, or nil if none was committed
	Load() (*string, error)
	// Save replaces the committed value
	Save(value string) error
	// Close releases the underlying resources
	Close() error
}

// Kind selects a Store implementation
type Kind string

const (
	KindFile   Kind = "file"
	KindPebble Kind = "pebble"
)

// Options configures Open
type Options struct {
	Kind      Kind
	Path      string // file store location
	PebbleDir string // pebble store directory
	Name      string // pebble key suffix
}

// Open creates the store selected by opts.Kind
func Open(opts Options) (Store, error) {
	switch opts.Kind {
	case KindFile, "":
		path := opts.Path
		if path == "" {
			path = DefaultPath
		}
		return NewFileStore(path), nil
	case KindPebble:
		return NewPebbleStore(opts.PebbleDir, opts.Name)
	default:
		return nil, fmt.Errorf("unknown checkpoint store: %s", opts.Kind)
	}
}

func ioError(op, location string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrCheckpointIO, op, location, err)
}
