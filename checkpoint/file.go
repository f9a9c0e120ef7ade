package checkpoint

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileStore keeps the committed value as plain UTF-8 text in a single file
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. Nothing is touched until Load.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the committed value. A missing file is created empty.
func (s *FileStore) Load() (*string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.create(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, ioError("read", s.path, err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		log.Info().Str("path", s.path).Msg("Checkpoint file is empty")
		return nil, nil
	}

	log.Info().Str("path", s.path).Str("value", value).Msg("Loaded committed value")
	return &value, nil
}

func (s *FileStore) create() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return ioError("create", s.path, err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return ioError("create", s.path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("create", s.path, err)
	}

	abs, _ := filepath.Abs(s.path)
	log.Info().Str("path", abs).Msg("Created checkpoint file")
	return nil
}

// Save truncates the file and writes value
func (s *FileStore) Save(value string) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return ioError("write", s.path, err)
	}

	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return ioError("write", s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return ioError("sync", s.path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("write", s.path, err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save
func (s *FileStore) Close() error {
	return nil
}
