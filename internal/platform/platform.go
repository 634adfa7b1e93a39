package platform

import (
	"errors"
	"net/url"
	"strings"

	atotto "github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// ErrUnsupportedType is returned when a backend cannot read or write a
// representation.
var ErrUnsupportedType = errors.New("clipboard representation not supported by backend")

// Clipboard is the contract the engine needs from the OS clipboard
// subsystem. Implementations never cache content beyond a single call.
type Clipboard interface {
	// Name returns a human-readable backend name.
	Name() string

	// Snapshot returns the current change token and the representations
	// present at that token.
	Snapshot() (types.Snapshot, error)

	// Read returns the raw bytes of one representation.
	Read(t types.DataType) ([]byte, error)

	// Write clears the clipboard and writes all items as one operation.
	Write(items []types.Item) error

	// Close releases any resources held by the backend.
	Close()
}

// Daemonizer starts the current executable detached from the terminal.
type Daemonizer interface {
	// Daemonize starts executable with args in the background and returns
	// its PID.
	Daemonize(executable string, args []string, workDir string) (int, error)
}

// NewClipboard returns the best clipboard backend available on this host:
// the native one, a text-only fallback, or an in-memory clipboard when no
// display is available.
func NewClipboard(logger *zap.Logger) Clipboard {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb, err := newNativeClipboard(logger)
	if err == nil {
		logger.Info("Using native clipboard", zap.String("backend", cb.Name()))
		return cb
	}
	logger.Warn("Native clipboard unavailable", zap.Error(err))

	if !atotto.Unsupported {
		logger.Info("Falling back to text-only clipboard")
		return newTextClipboard(logger)
	}

	logger.Warn("No system clipboard available, running headless")
	return NewMemoryClipboard()
}

// FileURL returns the file:// URL for an absolute path.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// isFileURL reports whether text holds a single file:// URL.
func isFileURL(text []byte) bool {
	s := strings.TrimSpace(string(text))
	return strings.HasPrefix(s, "file://") && !strings.ContainsAny(s, "\r\n")
}

// pickItem returns the first item whose type is listed in prefs.
func pickItem(items []types.Item, prefs ...types.DataType) (types.Item, bool) {
	for _, want := range prefs {
		for _, it := range items {
			if it.Type == want {
				return it, true
			}
		}
	}
	return types.Item{}, false
}
