package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

func TestMemoryClipboardWriteReplacesContent(t *testing.T) {
	cb := NewMemoryClipboard()

	snap, err := cb.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Token)
	assert.Empty(t, snap.Types)

	require.NoError(t, cb.Write([]types.Item{
		{Type: types.TypeText, Data: []byte("/tmp/a.png")},
		{Type: types.TypePNG, Data: []byte{1, 2, 3}},
	}))
	require.NoError(t, cb.Write([]types.Item{{Type: types.TypeTIFF, Data: []byte{9}}}))

	snap, err = cb.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Token)
	assert.Equal(t, []types.DataType{types.TypeTIFF}, snap.Types)

	_, err = cb.Read(types.TypeText)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	data, err := cb.Read(types.TypeTIFF)
	require.NoError(t, err)
	data[0] = 0
	again, _ := cb.Read(types.TypeTIFF)
	assert.Equal(t, []byte{9}, again, "Read must return a copy")
}

func TestMemoryClipboardWriteError(t *testing.T) {
	cb := NewMemoryClipboard()
	boom := errors.New("boom")
	cb.SetWriteError(boom)

	err := cb.Write([]types.Item{{Type: types.TypeText, Data: []byte("x")}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cb.Writes())

	cb.SetWriteError(nil)
	require.NoError(t, cb.Write([]types.Item{{Type: types.TypeText, Data: []byte("x")}}))
	assert.Equal(t, 1, cb.Writes())
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "file:///tmp/shots/screen%20shot.png", FileURL("/tmp/shots/screen shot.png"))
	assert.True(t, isFileURL([]byte("file:///tmp/a.png\n")))
	assert.False(t, isFileURL([]byte("/tmp/a.png")))
	assert.False(t, isFileURL([]byte("file:///a.png\nfile:///b.png")))
}

func TestPickItemHonoursPreferenceOrder(t *testing.T) {
	items := []types.Item{
		{Type: types.TypeText, Data: []byte("path")},
		{Type: types.TypeFileURL, Data: []byte("url")},
	}
	it, ok := pickItem(items, types.TypeFileURL, types.TypeText)
	require.True(t, ok)
	assert.Equal(t, types.TypeFileURL, it.Type)

	_, ok = pickItem(items, types.TypePNG)
	assert.False(t, ok)
}
