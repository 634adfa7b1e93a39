// Package clipboard publishes file-backed screenshot payloads and defends
// them against being overwritten by the screenshot tool.
package clipboard

import (
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
	"github.com/berrythewa/ezpaste-daemon/pkg/format"
)

// Publisher writes a screenshot to the clipboard as a file reference plus the
// bitmap itself, so both "paste as file" and "paste as image" work.
type Publisher struct {
	cb     platform.Clipboard
	clock  clock.Clock
	logger *zap.Logger
}

// NewPublisher returns a publisher writing to cb.
func NewPublisher(cb platform.Clipboard, clk clock.Clock, logger *zap.Logger) *Publisher {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cb: cb, clock: clk, logger: logger}
}

// Items returns the representations written for p: the path as text, its
// file URL, a file list and the image bytes.
func Items(p types.Payload) ([]types.Item, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("payload has no file path")
	}
	list, err := json.Marshal([]string{p.Path})
	if err != nil {
		return nil, err
	}

	items := []types.Item{
		{Type: types.TypeText, Data: []byte(p.Path)},
		{Type: types.TypeFileURL, Data: []byte(platform.FileURL(p.Path))},
		{Type: types.TypeFileList, Data: list},
	}
	if len(p.Image) > 0 {
		items = append(items, types.Item{Type: imageType(p), Data: p.Image})
	}
	return items, nil
}

func imageType(p types.Payload) types.DataType {
	if p.ImageType.IsImage() {
		return p.ImageType
	}
	if t, ok := format.Sniff(p.Image); ok {
		return t
	}
	return types.TypePNG
}

// Publish replaces the clipboard content with p and reads back the resulting
// change token. On failure the returned state carries types.UnknownToken and
// the error wraps types.ErrClipboardWrite; callers treat it as non-fatal.
func (pub *Publisher) Publish(p types.Payload) (types.PublishedState, error) {
	state := types.PublishedState{
		Token:       types.UnknownToken,
		Payload:     p,
		PublishedAt: pub.clock.Now(),
	}

	items, err := Items(p)
	if err != nil {
		return state, fmt.Errorf("%w: %w", types.ErrClipboardWrite, err)
	}
	if err := pub.cb.Write(items); err != nil {
		return state, fmt.Errorf("%w: %s: %w", types.ErrClipboardWrite, pub.cb.Name(), err)
	}

	snap, err := pub.cb.Snapshot()
	if err != nil {
		return state, fmt.Errorf("%w: read back token: %w", types.ErrClipboardWrite, err)
	}
	state.Token = snap.Token

	pub.logger.Debug("Published screenshot",
		zap.String("path", p.Path),
		zap.Int64("token", state.Token),
		zap.Int("items", len(items)))
	return state, nil
}
