package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EZPASTE_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	t.Setenv("EZPASTE_LOG_LEVEL", "error")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "today", "abc123")
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    1.2.3")
	assert.Contains(t, out, "Commit:     abc123")
}

func TestConfigInitAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized at: "+path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "config:   "+path)
	assert.Contains(t, out, "ezpaste.db")
	assert.Contains(t, out, "poll mode")
}

func TestConfigValidateRejectsBadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: sideways\n"), 0644))

	_, err := execute(t, "config", "validate", path)
	assert.ErrorContains(t, err, "validation failed")
}

func TestServiceFor(t *testing.T) {
	const (
		exe  = "/usr/local/bin/ezpaste"
		conf = "/home/ada/.config/ezpaste/config.yaml"
		home = "/home/ada"
		logs = "/home/ada/.local/share/ezpaste/logs"
	)

	t.Run("darwin", func(t *testing.T) {
		svc, err := serviceFor("darwin", exe, conf, home, logs)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "Library", "LaunchAgents", "com.berrythewa.ezpaste.plist"), svc.Path)
		assert.Contains(t, svc.Content, "<string>"+exe+"</string>\n\t\t<string>run</string>")
		assert.Equal(t, []string{"launchctl", "list", serviceLabel}, svc.Status)
	})

	t.Run("linux", func(t *testing.T) {
		svc, err := serviceFor("linux", exe, conf, home, logs)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config", "systemd", "user", "ezpaste.service"), svc.Path)
		assert.Contains(t, svc.Content, `ExecStart="/usr/local/bin/ezpaste" run --config "`+conf+`"`)
		require.Len(t, svc.Enable, 2)
		assert.Equal(t, "daemon-reload", svc.Enable[0][2])
	})

	t.Run("windows", func(t *testing.T) {
		svc, err := serviceFor("windows", `C:\ezpaste.exe`, `C:\config.yaml`, `C:\Users\ada`, "")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(svc.Path, "ezpaste.cmd"))
		assert.Empty(t, svc.Enable)
		assert.Contains(t, svc.Content, "\r\n")
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := serviceFor("plan9", exe, conf, home, logs)
		assert.Error(t, err)
	})
}

func TestParseServiceStatus(t *testing.T) {
	tests := []struct {
		output, goos, want string
	}{
		{"active\n", "linux", "EzPaste service is running."},
		{"inactive", "linux", "EzPaste service is installed but inactive."},
		{`{ "PID" = 412; "Label" = "com.berrythewa.ezpaste"; }`, "darwin", "EzPaste service is running."},
		{"Could not find service", "darwin", "EzPaste service is installed but not loaded."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseServiceStatus(tt.output, tt.goos), tt.output)
	}
}
