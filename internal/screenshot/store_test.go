package screenshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

func TestAllocateFilename(t *testing.T) {
	ts := time.Date(2024, 6, 1, 9, 15, 22, 42*int(time.Millisecond), time.Local)
	assert.Equal(t, "screenshot_2024-06-01_09-15-22-042.png", AllocateFilename(ts))
}

func TestStoreEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "shots")
	s := NewStore(dir, zaptest.NewLogger(t))

	got, err := s.EnsureDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStoreEnsureDirFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewStore(filepath.Join(blocker, "shots"), nil)
	_, err := s.EnsureDir()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIO))
}

func TestStoreSaveNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, zaptest.NewLogger(t))
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)

	first, err := s.Save(ts, []byte("first"))
	require.NoError(t, err)
	second, err := s.Save(ts, []byte("second"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "screenshot_2024-01-01_10-00-00-000.png", filepath.Base(first))
	assert.Equal(t, "screenshot_2024-01-01_10-00-00-001.png", filepath.Base(second))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.png", entries[0].Name)
	assert.Equal(t, "b.png", entries[1].Name)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestMatcher(t *testing.T) {
	m := NewMatcher(nil)
	tests := []struct {
		name string
		want bool
	}{
		{"Screenshot 2024-06-01 at 09.15.22.png", true},
		{"screen shot 2024-01-01 at 10.00.00.png", true},
		{"SCREENSHOT_2024.PNG", true},
		{"CleanShot 2024-03-03.png", true},
		{"Screenshot 2024-06-01 at 09.15.22.jpg", false},
		{"b.png", false},
		{"notes.txt", false},
		{".Screenshot 2024-06-01.png", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.name))
		})
	}

	custom := NewMatcher([]string{" Bildschirmfoto "})
	assert.True(t, custom.Match("Bildschirmfoto 2024.png"))
	assert.False(t, custom.Match("Screenshot 2024.png"))
}

func TestStoreWriteReplacesContents(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, zaptest.NewLogger(t))
	path := filepath.Join(dir, "Screenshot 2024-06-01 at 09.15.22.png")

	require.NoError(t, s.Write(path, []byte("first")))
	require.NoError(t, s.Write(path, []byte("second")))

	got, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestStoreWriteFailure(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)

	err := s.Write(filepath.Join(dir, "missing", "shot.png"), []byte("png"))
	assert.ErrorIs(t, err, types.ErrIO)

	_, err = s.Read(filepath.Join(dir, "missing", "shot.png"))
	assert.ErrorIs(t, err, types.ErrIO)
}
