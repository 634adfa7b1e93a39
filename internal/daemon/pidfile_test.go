package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "ezpaste.pid")

	_, err := ReadPIDFile(path)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, WritePIDFile(path))
	pid, err := RunningPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	RemovePIDFile(path)
	assert.NoFileExists(t, path)
}

func TestPIDFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ezpaste.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))
	_, err := ReadPIDFile(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRunning)
}

func TestRemovePIDFileKeepsForeignPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ezpaste.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid()+1)), 0644))
	RemovePIDFile(path)
	assert.FileExists(t, path)
}
