package platform

import (
	"fmt"
	"strings"
	"sync"

	atotto "github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// textClipboard is a text-only backend for hosts where only command-line
// clipboard tools (pbcopy, xclip, wl-copy) are available. A published file
// is represented by its file:// URL.
type textClipboard struct {
	mu     sync.Mutex
	token  int64
	last   string
	logger *zap.Logger
}

func newTextClipboard(logger *zap.Logger) *textClipboard {
	return &textClipboard{logger: logger}
}

func (c *textClipboard) Name() string { return "text (atotto)" }

func (c *textClipboard) Snapshot() (types.Snapshot, error) {
	text, err := atotto.ReadAll()
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("read clipboard text: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if text != c.last {
		c.last = text
		c.token++
	}
	snap := types.Snapshot{Token: c.token}
	if text != "" {
		snap.Types = append(snap.Types, types.TypeText)
		if isFileURL([]byte(text)) {
			snap.Types = append(snap.Types, types.TypeFileURL)
		}
	}
	return snap, nil
}

func (c *textClipboard) Read(t types.DataType) ([]byte, error) {
	if t != types.TypeText && t != types.TypeFileURL {
		return nil, fmt.Errorf("read %s: %w", t, ErrUnsupportedType)
	}
	text, err := atotto.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clipboard text: %w", err)
	}
	if t == types.TypeFileURL && !isFileURL([]byte(text)) {
		return nil, fmt.Errorf("read %s: clipboard holds no file url", t)
	}
	return []byte(strings.TrimSpace(text)), nil
}

func (c *textClipboard) Write(items []types.Item) error {
	it, ok := pickItem(items, types.TypeFileURL, types.TypeText)
	if !ok {
		return fmt.Errorf("write: %w", ErrUnsupportedType)
	}
	if err := atotto.WriteAll(string(it.Data)); err != nil {
		return fmt.Errorf("write clipboard text: %w", err)
	}
	c.logger.Debug("Wrote text clipboard", zap.String("type", string(it.Type)))
	return nil
}

func (c *textClipboard) Close() {}
