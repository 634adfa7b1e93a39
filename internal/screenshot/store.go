// Package screenshot manages the directory screenshots are saved to or
// discovered in.
package screenshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

const (
	filePrefix = "screenshot_"
	fileExt    = ".png"

	// maxAllocateAttempts bounds the collision retry in Save.
	maxAllocateAttempts = 64
)

// Entry is a regular file found in the store's directory.
type Entry struct {
	Name      string
	Path      string
	CreatedAt time.Time
}

// Store owns one screenshot directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore returns a store rooted at dir. The directory is not created until
// EnsureDir is called.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// EnsureDir creates the directory if it does not exist and returns its path.
func (s *Store) EnsureDir() (string, error) {
	if s.dir == "" {
		return "", fmt.Errorf("%w: screenshot directory not configured", types.ErrIO)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create directory %s: %w", types.ErrIO, s.dir, err)
	}
	return s.dir, nil
}

// AllocateFilename returns the name a screenshot taken at t is saved under,
// e.g. screenshot_2024-06-01_09-15-22-042.png.
func AllocateFilename(t time.Time) string {
	return fmt.Sprintf("%s%s-%03d%s",
		filePrefix,
		t.Format("2006-01-02_15-04-05"),
		t.Nanosecond()/int(time.Millisecond),
		fileExt)
}

// Save writes data under a name allocated from t and returns the full path.
// An existing file is never overwritten: on a name clash the timestamp is
// advanced one millisecond and allocation retried.
func (s *Store) Save(t time.Time, data []byte) (string, error) {
	if _, err := s.EnsureDir(); err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		path := filepath.Join(s.dir, AllocateFilename(t))
		err := writeExclusive(path, data)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: write %s: %w", types.ErrIO, path, err)
		}
		s.logger.Debug("Screenshot filename taken, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1))
		t = t.Add(time.Millisecond)
	}
	return "", fmt.Errorf("%w: no free filename in %s after %d attempts", types.ErrIO, s.dir, maxAllocateAttempts)
}

// Write writes data to path, replacing any existing file.
func (s *Store) Write(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrIO, path, err)
	}
	return nil
}

// Read returns the contents of a file in the store.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrIO, path, err)
	}
	return data, nil
}

// List returns the regular files in the directory sorted by name.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", types.ErrIO, s.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		entries = append(entries, Entry{
			Name:      de.Name(),
			Path:      path,
			CreatedAt: creationTime(path, info),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
