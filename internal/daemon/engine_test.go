package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/image/tiff"

	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/screenshot"
	"github.com/berrythewa/ezpaste-daemon/internal/source"
	"github.com/berrythewa/ezpaste-daemon/internal/storage"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

const (
	settle   = 300 * time.Millisecond
	waitFor  = 2 * time.Second
	pollTick = time.Millisecond
)

func testBitmap(t *testing.T, shade uint8) *image.RGBA {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 40), B: uint8(y * 60), A: 255})
		}
	}
	return img
}

func tiffBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, testBitmap(t, shade), nil))
	return buf.Bytes()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testBitmap(t, 7)))
	return buf.Bytes()
}

// fakeSource hands the engine whatever candidates the test pushes.
type fakeSource struct {
	mu       sync.Mutex
	queue    []types.Candidate
	wake     chan struct{}
	startErr error
	starts   int
	closes   int
}

func (f *fakeSource) Kind() source.Kind { return source.KindPoll }

func (f *fakeSource) Start(ctx context.Context) (<-chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.starts++
	f.wake = make(chan struct{}, 1)
	return f.wake, nil
}

func (f *fakeSource) Collect() ([]types.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queue
	f.queue = nil
	return q, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) push(c types.Candidate) {
	f.mu.Lock()
	f.queue = append(f.queue, c)
	wake := f.wake
	f.mu.Unlock()
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (f *fakeSource) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.closes
}

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (n *recordingNotifier) Notify(title, body string) error {
	n.mu.Lock()
	n.bodies = append(n.bodies, body)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.bodies...)
}

type harness struct {
	t      *testing.T
	db     *storage.BoltStorage
	mock   *clock.Mock
	cb     *platform.MemoryClipboard
	dir    string
	engine *Engine
	copied atomic.Int32
}

// newHarness builds an engine on a memory clipboard and a mock clock and
// runs its loop until the test ends. src may be nil to build the source
// from kind.
func newHarness(t *testing.T, kind source.Kind, src source.Source, tweak func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		mock: clock.NewMock(),
		cb:   platform.NewMemoryClipboard(),
		dir:  filepath.Join(t.TempDir(), "shots"),
	}
	logger := zaptest.NewLogger(t)

	if src == nil {
		var err error
		src, err = source.New(kind, source.Options{
			Clipboard: h.cb,
			Interval:  300 * time.Millisecond,
			Dir:       h.dir,
			Clock:     h.mock,
			Logger:    logger,
		})
		require.NoError(t, err)
		if kind == source.KindWatch {
			require.NoError(t, os.MkdirAll(h.dir, 0755))
		}
	}

	opts := Options{
		Clipboard:    h.cb,
		Source:       src,
		Store:        screenshot.NewStore(h.dir, logger),
		OnCopied:     func(string) { h.copied.Add(1) },
		SettleDelay:  settle,
		VerifyDelays: []time.Duration{150 * time.Millisecond, 500 * time.Millisecond},
		DeviceID:     "device-1",
		Clock:        h.mock,
		Logger:       logger,
	}
	if tweak != nil {
		tweak(&opts)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	h.engine = e
	h.db, _ = opts.Storage.(*storage.BoltStorage)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) status() types.EngineStatus {
	h.t.Helper()
	st, err := h.engine.Status()
	require.NoError(h.t, err)
	return st
}

func (h *harness) waitTimers(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.engine.sched.Pending() == n },
		waitFor, pollTick, "waiting for %d pending timers", n)
}

func (h *harness) waitStatus(desc string, cond func(types.EngineStatus) bool) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return cond(h.status()) }, waitFor, pollTick, desc)
}

func (h *harness) pngFiles() []string {
	h.t.Helper()
	files, err := filepath.Glob(filepath.Join(h.dir, "*.png"))
	require.NoError(h.t, err)
	return files
}

func (h *harness) fileURL() string {
	h.t.Helper()
	data, err := h.cb.Read(types.TypeFileURL)
	require.NoError(h.t, err)
	return string(data)
}

func TestEnginePollPublishesAndRestores(t *testing.T) {
	db, err := storage.NewBoltStorage(storage.StorageConfig{
		DBPath:   filepath.Join(t.TempDir(), "ezpaste.db"),
		DeviceID: "device-1",
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer db.Close()
	notifier := &recordingNotifier{}

	h := newHarness(t, source.KindPoll, nil, func(o *Options) {
		o.Storage = db
		o.Notifier = notifier
	})
	require.NoError(t, h.engine.Start())

	// The screenshot tool puts a raw TIFF on the clipboard.
	raw := tiffBytes(t, 200)
	require.NoError(t, h.cb.Write([]types.Item{{Type: types.TypeTIFF, Data: raw}}))

	h.mock.Add(300 * time.Millisecond) // poll tick detects it
	h.waitTimers(1)                    // settle
	h.mock.Add(settle)
	h.waitTimers(2) // verification passes armed

	st := h.status()
	assert.Equal(t, 1, st.Published)
	assert.Equal(t, types.StageVerifying, st.Stage)
	assert.Equal(t, "poll", st.Mode)
	assert.Equal(t, h.dir, st.Directory)
	assert.Equal(t, 2, h.cb.Writes())

	files := h.pngFiles()
	require.Len(t, files, 1)
	assert.Equal(t, files[0], st.LastPath)
	saved, err := os.ReadFile(files[0])
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(saved))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
	assert.Equal(t, 3, cfg.Height)

	assert.Equal(t, platform.FileURL(files[0]), h.fileURL())
	text, err := h.cb.Read(types.TypeText)
	require.NoError(t, err)
	assert.Equal(t, files[0], string(text))
	bitmap, err := h.cb.Read(types.TypeTIFF)
	require.NoError(t, err)
	assert.Equal(t, raw, bitmap, "the original bitmap is offered alongside the file")

	// The OS clipboard manager writes the raw bitmap back over us.
	require.NoError(t, h.cb.Write([]types.Item{{Type: types.TypeTIFF, Data: raw}}))

	h.mock.Add(150 * time.Millisecond)
	h.waitStatus("republish after first pass", func(st types.EngineStatus) bool { return st.Republished == 1 })
	assert.Equal(t, 4, h.cb.Writes())
	assert.Equal(t, platform.FileURL(files[0]), h.fileURL())

	h.mock.Add(350 * time.Millisecond)
	h.waitStatus("settled after final pass", func(st types.EngineStatus) bool { return st.Stage == types.StageSettled })

	st = h.status()
	assert.Equal(t, 1, st.Published, "the clobbering write is not a new screenshot")
	assert.Equal(t, 1, st.Republished)
	assert.Equal(t, 4, h.cb.Writes())
	assert.Len(t, h.pngFiles(), 1)
	assert.Equal(t, int32(1), h.copied.Load())

	require.Eventually(t, func() bool { return len(notifier.sent()) == 1 }, waitFor, pollTick)
	assert.Equal(t, []string{files[0]}, notifier.sent())

	rec, err := db.Latest()
	require.NoError(t, err)
	assert.Equal(t, files[0], rec.Path)
	assert.Equal(t, types.OriginClipboard, rec.Origin)
	assert.Equal(t, int64(len(raw)), rec.Size)
	assert.Equal(t, 1, rec.Republished)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats[storage.StatPublished])
	assert.Equal(t, uint64(1), stats[storage.StatRepublished])
}

func TestEngineWatchRestoresClobberedReference(t *testing.T) {
	h := newHarness(t, source.KindWatch, nil, nil)
	require.NoError(t, h.engine.Start())

	path := filepath.Join(h.dir, "Screenshot 2024-06-01 at 09.15.22.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t), 0644))

	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)

	st := h.status()
	assert.Equal(t, 1, st.Published)
	assert.Equal(t, "watch", st.Mode)
	assert.Equal(t, path, st.LastPath)
	assert.Equal(t, platform.FileURL(path), h.fileURL())
	bitmap, err := h.cb.Read(types.TypePNG)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), bitmap)

	// Something else takes the clipboard before the first pass.
	require.NoError(t, h.cb.Write([]types.Item{{Type: types.TypeText, Data: []byte("hello")}}))

	h.mock.Add(150 * time.Millisecond)
	h.waitStatus("republish after first pass", func(st types.EngineStatus) bool { return st.Republished == 1 })
	assert.Equal(t, platform.FileURL(path), h.fileURL())

	h.mock.Add(350 * time.Millisecond)
	h.waitStatus("settled after final pass", func(st types.EngineStatus) bool { return st.Stage == types.StageSettled })
	assert.Equal(t, 3, h.cb.Writes())
	assert.Equal(t, int32(1), h.copied.Load())
	assert.Len(t, h.pngFiles(), 1, "watch mode never writes files")
}

func TestEngineWatchIgnoresOtherFiles(t *testing.T) {
	h := newHarness(t, source.KindWatch, nil, nil)
	require.NoError(t, h.engine.Start())

	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "notes.txt"), []byte("todo"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "holiday.png"), pngBytes(t), 0644))
	assert.Never(t, func() bool { return h.engine.sched.Pending() > 0 }, 100*time.Millisecond, 5*time.Millisecond)

	path := filepath.Join(h.dir, "screenshot-1.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t), 0644))
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)

	st := h.status()
	assert.Equal(t, 1, st.Published)
	assert.Equal(t, path, st.LastPath)
	assert.Equal(t, 1, h.cb.Writes())
}

func TestEngineStartStopAreIdempotent(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, nil)

	require.NoError(t, h.engine.Start())
	require.NoError(t, h.engine.Start())
	starts, _ := src.counts()
	assert.Equal(t, 1, starts)
	assert.True(t, h.status().Active)

	require.NoError(t, h.engine.Stop())
	require.NoError(t, h.engine.Stop())
	_, closes := src.counts()
	assert.Equal(t, 1, closes)
	assert.False(t, h.status().Active)

	active, err := h.engine.Toggle()
	require.NoError(t, err)
	assert.True(t, active)
	active, err = h.engine.Toggle()
	require.NoError(t, err)
	assert.False(t, active)

	starts, closes = src.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, closes)
}

func TestEngineStopCancelsVerification(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, nil)
	require.NoError(t, h.engine.Start())

	src.push(types.Candidate{Origin: types.OriginClipboard, Data: tiffBytes(t, 10), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)

	require.NoError(t, h.engine.Stop())
	assert.Equal(t, 0, h.engine.sched.Pending())

	require.NoError(t, h.cb.Write([]types.Item{{Type: types.TypeText, Data: []byte("foreign")}}))
	writes := h.cb.Writes()
	h.mock.Add(time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, writes, h.cb.Writes(), "no republish after stop")
	st := h.status()
	assert.Equal(t, 0, st.Republished)
	assert.Empty(t, st.Stage)
}

func TestEngineStopDiscardsSettlingCandidate(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, nil)
	require.NoError(t, h.engine.Start())

	src.push(types.Candidate{Origin: types.OriginClipboard, Data: tiffBytes(t, 10), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(1)
	require.NoError(t, h.engine.Stop())
	require.NoError(t, h.engine.Start())

	h.mock.Add(settle)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, h.status().Published)
	assert.Empty(t, h.pngFiles())
}

func TestEngineWatchSetupFailure(t *testing.T) {
	src := &fakeSource{startErr: fmt.Errorf("%w: no such directory", types.ErrWatchSetup)}
	h := newHarness(t, "", src, nil)

	err := h.engine.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrWatchSetup)

	st := h.status()
	assert.False(t, st.Active)
	assert.Contains(t, st.LastError, "no such directory")
}

func TestEngineUnusableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	h := newHarness(t, "", &fakeSource{}, func(o *Options) {
		o.Store = screenshot.NewStore(filepath.Join(blocker, "shots"), o.Logger)
	})
	err := h.engine.Start()
	assert.ErrorIs(t, err, types.ErrIO)
	assert.False(t, h.status().Active)
}

func TestEngineCodecFailureDropsCandidate(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, nil)
	require.NoError(t, h.engine.Start())

	src.push(types.Candidate{Origin: types.OriginClipboard, Data: []byte("II*\x00garbage"), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitStatus("candidate dropped", func(st types.EngineStatus) bool { return st.Dropped == 1 })

	st := h.status()
	assert.Equal(t, types.StageDropped, st.Stage)
	assert.Equal(t, 0, h.cb.Writes())
	assert.Empty(t, h.pngFiles())
	assert.True(t, st.Active, "a bad bitmap does not stop the engine")

	src.push(types.Candidate{Origin: types.OriginClipboard, Data: tiffBytes(t, 90), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)
	assert.Equal(t, 1, h.status().Published)
	assert.Len(t, h.pngFiles(), 1)
}

func TestEngineIgnoresRepeatedBitmap(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, nil)
	require.NoError(t, h.engine.Start())

	raw := tiffBytes(t, 33)
	candidate := func() types.Candidate {
		return types.Candidate{Origin: types.OriginClipboard, Data: raw, DataType: types.TypeTIFF, CreatedAt: h.mock.Now()}
	}

	src.push(candidate())
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)
	h.mock.Add(500 * time.Millisecond)
	h.waitStatus("settled", func(st types.EngineStatus) bool { return st.Stage == types.StageSettled })

	// Same bytes shortly after: an echo of the screenshot just handled.
	src.push(candidate())
	assert.Never(t, func() bool { return h.engine.sched.Pending() > 0 }, 100*time.Millisecond, 5*time.Millisecond)

	// Well after the window it is a new screenshot.
	h.mock.Add(5 * time.Second)
	src.push(candidate())
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitStatus("second publish", func(st types.EngineStatus) bool { return st.Published == 2 })
}

// withBolt records the engine's screenshots in a throwaway bolt database.
func withBolt(t *testing.T) func(*Options) {
	return func(o *Options) {
		db, err := storage.NewBoltStorage(storage.StorageConfig{
			DBPath:   filepath.Join(t.TempDir(), "ezpaste.db"),
			DeviceID: "device-1",
			Logger:   zaptest.NewLogger(t),
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		o.Storage = db
	}
}

func TestEngineCopiedOnceAfterFailedPublish(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, withBolt(t))
	require.NoError(t, h.engine.Start())

	h.cb.SetWriteError(errors.New("pasteboard busy"))
	src.push(types.Candidate{Origin: types.OriginClipboard, Data: tiffBytes(t, 1), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)

	st := h.status()
	assert.Contains(t, st.LastError, "pasteboard busy")
	assert.Equal(t, 0, st.Published, "nothing reached the clipboard yet")
	assert.Equal(t, int32(0), h.copied.Load())
	assert.Len(t, h.pngFiles(), 1, "the file is kept for the retry")
	_, err := h.db.Latest()
	assert.ErrorIs(t, err, storage.ErrNoRecord)

	h.cb.SetWriteError(nil)
	h.mock.Add(150 * time.Millisecond)
	h.waitStatus("published by the retry", func(st types.EngineStatus) bool { return st.Published == 1 })
	assert.Equal(t, int32(1), h.copied.Load())

	h.mock.Add(350 * time.Millisecond)
	h.waitStatus("settled", func(st types.EngineStatus) bool { return st.Stage == types.StageSettled })
	st = h.status()
	assert.Equal(t, 1, st.Published)
	assert.Equal(t, 0, st.Republished, "the retry is the first publish, not a restore")
	assert.Equal(t, int32(1), h.copied.Load())
	assert.Equal(t, 1, h.cb.Writes())

	rec, err := h.db.Latest()
	require.NoError(t, err)
	assert.Equal(t, h.pngFiles()[0], rec.Path)
	assert.Equal(t, 0, rec.Republished)
	stats, err := h.db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats[storage.StatPublished])
	assert.Equal(t, uint64(0), stats[storage.StatRepublished])
}

func TestEngineDropsScreenshotThatNeverReachesClipboard(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, withBolt(t))
	require.NoError(t, h.engine.Start())

	h.cb.SetWriteError(errors.New("pasteboard busy"))
	src.push(types.Candidate{Origin: types.OriginClipboard, Data: tiffBytes(t, 2), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)

	h.mock.Add(500 * time.Millisecond)
	h.waitStatus("dropped after the final pass", func(st types.EngineStatus) bool { return st.Dropped == 1 })

	st := h.status()
	assert.Equal(t, 0, st.Published)
	assert.Equal(t, types.StageDropped, st.Stage)
	assert.Contains(t, st.LastError, types.ErrClipboardWrite.Error())
	assert.Equal(t, int32(0), h.copied.Load())
	_, err := h.db.Latest()
	assert.ErrorIs(t, err, storage.ErrNoRecord)
}

func TestEnginePublishesNewBitmapWhileVerifying(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, "", src, nil)
	require.NoError(t, h.engine.Start())

	src.push(types.Candidate{Origin: types.OriginClipboard, Data: tiffBytes(t, 10), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(1)
	h.mock.Add(settle)
	h.waitTimers(2)
	first := h.status().LastPath

	// A second screenshot lands before the first one has settled.
	h.mock.Add(time.Millisecond)
	src.push(types.Candidate{Origin: types.OriginClipboard, Data: tiffBytes(t, 90), DataType: types.TypeTIFF, CreatedAt: h.mock.Now()})
	h.waitTimers(3)
	h.mock.Add(settle)
	h.waitStatus("second publish", func(st types.EngineStatus) bool { return st.Published == 2 })

	assert.NotEqual(t, first, h.status().LastPath)
	assert.Len(t, h.pngFiles(), 2)
	assert.Equal(t, platform.FileURL(h.status().LastPath), h.fileURL())
}

func TestEngineNotRunning(t *testing.T) {
	src := &fakeSource{}
	e, err := NewEngine(Options{
		Clipboard: platform.NewMemoryClipboard(),
		Source:    src,
		Store:     screenshot.NewStore(t.TempDir(), nil),
		Clock:     clock.NewMock(),
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	require.NoError(t, e.Start())
	cancel()
	require.NoError(t, <-done)

	assert.ErrorIs(t, e.Start(), ErrNotRunning)
	_, err = e.Status()
	assert.ErrorIs(t, err, ErrNotRunning)
	_, closes := src.counts()
	assert.Equal(t, 1, closes, "the source is closed when the loop exits")
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(Options{Source: &fakeSource{}, Store: screenshot.NewStore("/tmp", nil)})
	assert.Error(t, err)
	_, err = NewEngine(Options{Clipboard: platform.NewMemoryClipboard(), Store: screenshot.NewStore("/tmp", nil)})
	assert.Error(t, err)
	_, err = NewEngine(Options{Clipboard: platform.NewMemoryClipboard(), Source: &fakeSource{}})
	assert.Error(t, err)
}
