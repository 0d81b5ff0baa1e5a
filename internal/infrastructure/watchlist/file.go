// Package watchlist provides the stores that hold watched product codes.
package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dealtracker/backend/internal/application/alert"
)

// FileStore keeps the watchlist as a JSON array of product codes. A missing
// file is an empty watchlist.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ alert.EditableWatchlist = (*FileStore)(nil)

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the watched codes in file order.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Add appends code unless it is already watched.
func (s *FileStore) Add(_ context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("watchlist: empty product code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.read()
	if err != nil {
		return err
	}
	if slices.Contains(codes, code) {
		return nil
	}
	return s.write(append(codes, code))
}

// Remove drops code from the file.
func (s *FileStore) Remove(_ context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.read()
	if err != nil {
		return false, err
	}
	i := slices.Index(codes, code)
	if i < 0 {
		return false, nil
	}
	return true, s.write(slices.Delete(codes, i, i+1))
}

func (s *FileStore) read() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []string{}, nil
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", s.path, err)
	}
	return codes, nil
}

// write replaces the file through a rename so readers never see a partial
// array.
func (s *FileStore) write(codes []string) error {
	data, err := json.MarshalIndent(codes, "", "    ")
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watchlist directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".watchlist-*.json")
	if err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write watchlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace watchlist: %w", err)
	}
	return nil
}
