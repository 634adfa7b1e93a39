//go:build !darwin || !cgo

package platform

import (
	"bytes"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.design/x/clipboard"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// portableClipboard wraps golang.design/x/clipboard. That library exposes only
// text and PNG and keeps a single representation per write, so a published
// file is offered as its file:// URL and the change token is synthesised by
// comparing content between snapshots.
type portableClipboard struct {
	mu       sync.Mutex
	token    int64
	lastText []byte
	lastImg  []byte
	logger   *zap.Logger
}

func newNativeClipboard(logger *zap.Logger) (Clipboard, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("clipboard init: %w", err)
	}
	return &portableClipboard{logger: logger}, nil
}

func (c *portableClipboard) Name() string { return "x/clipboard (text+png)" }

func (c *portableClipboard) Snapshot() (types.Snapshot, error) {
	text := clipboard.Read(clipboard.FmtText)
	img := clipboard.Read(clipboard.FmtImage)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !bytes.Equal(text, c.lastText) || !bytes.Equal(img, c.lastImg) {
		c.lastText = text
		c.lastImg = img
		c.token++
	}

	snap := types.Snapshot{Token: c.token}
	if len(text) > 0 {
		snap.Types = append(snap.Types, types.TypeText)
		if isFileURL(text) {
			snap.Types = append(snap.Types, types.TypeFileURL)
		}
	}
	if len(img) > 0 {
		snap.Types = append(snap.Types, types.TypePNG)
	}
	return snap, nil
}

func (c *portableClipboard) Read(t types.DataType) ([]byte, error) {
	var data []byte
	switch t {
	case types.TypeText:
		data = clipboard.Read(clipboard.FmtText)
	case types.TypeFileURL:
		data = clipboard.Read(clipboard.FmtText)
		if !isFileURL(data) {
			data = nil
		}
	case types.TypePNG:
		data = clipboard.Read(clipboard.FmtImage)
	default:
		return nil, fmt.Errorf("read %s: %w", t, ErrUnsupportedType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read %s: clipboard holds no such data", t)
	}
	return bytes.TrimSpace(data), nil
}

func (c *portableClipboard) Write(items []types.Item) error {
	if it, ok := pickItem(items, types.TypeFileURL, types.TypeText); ok {
		clipboard.Write(clipboard.FmtText, it.Data)
		c.logger.Debug("Wrote clipboard text", zap.String("type", string(it.Type)))
		return nil
	}
	if it, ok := pickItem(items, types.TypePNG); ok {
		clipboard.Write(clipboard.FmtImage, it.Data)
		c.logger.Debug("Wrote clipboard image", zap.Int("size", len(it.Data)))
		return nil
	}
	return fmt.Errorf("write: %w", ErrUnsupportedType)
}

func (c *portableClipboard) Close() {}
