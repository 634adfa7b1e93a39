// Package daemon runs the screenshot engine: it wires an event source to the
// clipboard publisher and race guard on one serialized loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/clipboard"
	"github.com/berrythewa/ezpaste-daemon/internal/notify"
	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/screenshot"
	"github.com/berrythewa/ezpaste-daemon/internal/source"
	"github.com/berrythewa/ezpaste-daemon/internal/storage"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
	"github.com/berrythewa/ezpaste-daemon/pkg/format"
	"github.com/berrythewa/ezpaste-daemon/pkg/utils"
)

// DefaultSettleDelay is how long a detected screenshot is left alone before
// it is read, so a file still being flushed is not read half-written.
const DefaultSettleDelay = 300 * time.Millisecond

// ErrNotRunning is returned when the engine loop is not running.
var ErrNotRunning = errors.New("engine loop is not running")

// Options configures an Engine.
type Options struct {
	Clipboard platform.Clipboard
	Source    source.Source
	// Store owns the directory screenshots are saved to (poll mode) or
	// discovered in (watch mode). It is created on Start.
	Store *screenshot.Store

	// Storage records the latest screenshot and counters. Optional.
	Storage storage.Store
	// Notifier is told once per copied screenshot. Optional.
	Notifier notify.Notifier
	// OnCopied is called on the loop once per copied screenshot and must
	// not block.
	OnCopied func(path string)

	SettleDelay  time.Duration
	VerifyDelays []time.Duration
	DeviceID     string

	Clock  clock.Clock
	Logger *zap.Logger
}

// tokenObserver is implemented by sources that track the clipboard token.
type tokenObserver interface {
	Observe(token int64)
}

// Engine detects screenshots and keeps a file reference to them on the
// clipboard. All of its state is owned by the goroutine running Run; other
// goroutines talk to it through Start, Stop, Toggle and Status.
type Engine struct {
	opts   Options
	clock  clock.Clock
	logger *zap.Logger

	tasks   chan func()
	stopped chan struct{}
	sched   *scheduler
	pub     *clipboard.Publisher
	guard   *clipboard.Guard

	// Loop-owned state.
	runCtx       context.Context
	active       bool
	epoch        uint64
	wake         <-chan struct{}
	cancelSource context.CancelFunc
	status       types.EngineStatus
	lastPrint    string
	lastPrintAt  time.Time

	// unpublished is the candidate whose first clipboard write failed. It
	// counts as published once a verification pass gets it onto the
	// clipboard.
	unpublished *types.Candidate
}

// NewEngine validates opts and returns an engine that is not yet running.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Clipboard == nil {
		return nil, errors.New("engine needs a clipboard")
	}
	if opts.Source == nil {
		return nil, errors.New("engine needs an event source")
	}
	if opts.Store == nil {
		return nil, errors.New("engine needs a screenshot store")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	// Zero settles immediately.
	if opts.SettleDelay < 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if len(opts.VerifyDelays) == 0 {
		opts.VerifyDelays = clipboard.DefaultVerifyDelays
	}

	e := &Engine{
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger,
		tasks:   make(chan func(), 64),
		stopped: make(chan struct{}),
		status: types.EngineStatus{
			Mode:      string(opts.Source.Kind()),
			Clipboard: opts.Clipboard.Name(),
			Directory: opts.Store.Dir(),
		},
	}
	e.sched = newScheduler(opts.Clock, e.post)
	e.pub = clipboard.NewPublisher(opts.Clipboard, opts.Clock, opts.Logger)
	e.guard = clipboard.NewGuard(e.pub, loopScheduler{e}, opts.VerifyDelays, opts.Logger)
	e.guard.OnVerify = e.verified
	return e, nil
}

// Run owns the engine loop until ctx is done. The engine is stopped on
// return.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer close(e.stopped)
	defer e.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-e.tasks:
			fn()
		case _, ok := <-e.wake:
			if !ok {
				e.wake = nil
				if e.active {
					e.logger.Warn("Event source stopped unexpectedly", zap.String("source", e.status.Mode))
					e.status.LastError = "event source stopped"
				}
				continue
			}
			e.collect()
		}
	}
}

// post queues fn to run on the loop.
func (e *Engine) post(fn func()) bool {
	select {
	case e.tasks <- fn:
		return true
	case <-e.stopped:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (e *Engine) call(fn func()) error {
	done := make(chan struct{})
	if !e.post(func() { fn(); close(done) }) {
		return ErrNotRunning
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrNotRunning
	}
}

// Start begins monitoring. Starting an active engine is a no-op. A watch
// source that cannot be set up returns an error wrapping ErrWatchSetup and
// leaves the engine stopped.
func (e *Engine) Start() error {
	var err error
	if cerr := e.call(func() { err = e.start() }); cerr != nil {
		return cerr
	}
	return err
}

// Stop ends monitoring and cancels pending verification passes. Stopping a
// stopped engine is a no-op.
func (e *Engine) Stop() error {
	return e.call(e.stop)
}

// Toggle starts a stopped engine or stops an active one and reports whether
// it is now active.
func (e *Engine) Toggle() (bool, error) {
	var active bool
	var err error
	cerr := e.call(func() {
		if e.active {
			e.stop()
		} else {
			err = e.start()
		}
		active = e.active
	})
	if cerr != nil {
		return false, cerr
	}
	return active, err
}

// Status returns a snapshot of the engine's state.
func (e *Engine) Status() (types.EngineStatus, error) {
	var st types.EngineStatus
	err := e.call(func() { st = e.status })
	return st, err
}

func (e *Engine) start() error {
	if e.active {
		e.logger.Debug("Engine already active")
		return nil
	}

	if _, err := e.opts.Store.EnsureDir(); err != nil {
		e.status.LastError = err.Error()
		return err
	}

	ctx, cancel := context.WithCancel(e.runCtx)
	wake, err := e.opts.Source.Start(ctx)
	if err != nil {
		cancel()
		e.status.LastError = err.Error()
		e.logger.Error("Failed to start event source",
			zap.String("source", e.status.Mode),
			zap.String("path", e.opts.Store.Dir()),
			zap.Error(err))
		return err
	}

	e.epoch++
	e.active = true
	e.wake = wake
	e.cancelSource = cancel
	e.status.Active = true
	e.status.StartedAt = e.clock.Now()
	e.status.LastError = ""
	e.logger.Info("Screenshot monitoring started",
		zap.String("source", e.status.Mode),
		zap.String("clipboard", e.status.Clipboard),
		zap.String("dir", e.status.Directory))
	return nil
}

func (e *Engine) stop() {
	if !e.active {
		return
	}
	e.active = false
	e.epoch++
	e.cancelSource()
	e.cancelSource = nil
	if err := e.opts.Source.Close(); err != nil {
		e.logger.Warn("Failed to close event source", zap.Error(err))
	}
	e.wake = nil
	e.sched.CancelAll()
	e.guard.Reset()
	e.unpublished = nil
	e.status.Active = false
	e.status.Stage = ""
	e.logger.Info("Screenshot monitoring stopped")
}

// current reports whether work started at epoch may still act.
func (e *Engine) current(epoch uint64) bool {
	return e.active && e.epoch == epoch
}

// loopScheduler schedules tasks that are discarded if the engine was
// stopped or restarted in the meantime.
type loopScheduler struct{ e *Engine }

func (s loopScheduler) After(d time.Duration, fn func()) {
	e := s.e
	epoch := e.epoch
	e.sched.After(d, func() {
		if !e.current(epoch) {
			e.logger.Debug("Discarding task scheduled before stop")
			return
		}
		fn()
	})
}

func (e *Engine) collect() {
	candidates, err := e.opts.Source.Collect()
	if err != nil {
		e.logger.Warn("Failed to collect screenshot candidates",
			zap.String("stage", string(types.StageDetected)),
			zap.String("source", e.status.Mode),
			zap.Error(err))
		return
	}
	for _, c := range candidates {
		e.handle(c)
	}
}

// dedupeWindow is how long an identical clipboard bitmap is treated as the
// same screenshot. It covers the OS writing the bitmap back while the last
// publish is still being verified.
func (e *Engine) dedupeWindow() time.Duration {
	longest := time.Duration(0)
	for _, d := range e.opts.VerifyDelays {
		longest = max(longest, d)
	}
	return e.opts.SettleDelay + longest + time.Second
}

func (e *Engine) handle(c types.Candidate) {
	log := e.logger.With(zap.String("origin", string(c.Origin)))

	if c.Origin == types.OriginClipboard {
		now := e.clock.Now()
		fp := utils.HashContent(c.Data)
		if fp == e.lastPrint && now.Sub(e.lastPrintAt) < e.dedupeWindow() {
			log.Debug("Ignoring repeated clipboard bitmap", zap.String("hash", utils.ShortHash(fp)))
			return
		}
		e.lastPrint, e.lastPrintAt = fp, now
	}

	e.status.Stage = types.StageDetected
	log.Info("Screenshot detected",
		zap.String("stage", string(types.StageDetected)),
		zap.String("path", c.Path),
		zap.Int("size", len(c.Data)))

	loopScheduler{e}.After(e.opts.SettleDelay, func() { e.materialize(c) })
}

// materialize does the disk and codec work off the loop and posts the result
// back.
func (e *Engine) materialize(c types.Candidate) {
	epoch := e.epoch
	store := e.opts.Store
	go func() {
		payload, stage, err := prepare(store, c)
		e.post(func() { e.finish(epoch, c, payload, stage, err) })
	}()
}

// prepare turns a candidate into a publishable payload. It touches no
// engine state.
func prepare(store *screenshot.Store, c types.Candidate) (types.Payload, types.Stage, error) {
	switch c.Origin {
	case types.OriginClipboard:
		png, err := format.ToPNG(c.Data)
		if err != nil {
			return types.Payload{}, types.StageConverted, err
		}
		path, err := store.Save(c.CreatedAt, png)
		if err != nil {
			return types.Payload{}, types.StageConverted, err
		}
		return types.Payload{Path: path, Image: c.Data, ImageType: c.DataType}, types.StageConverted, nil

	case types.OriginDirectory:
		data, err := store.Read(c.Path)
		if err != nil {
			return types.Payload{}, types.StageLocated, err
		}
		imgType, ok := format.Sniff(data)
		if !ok {
			imgType = types.TypePNG
		}
		return types.Payload{Path: c.Path, Image: data, ImageType: imgType}, types.StageLocated, nil
	}
	return types.Payload{}, types.StageDetected, fmt.Errorf("unknown candidate origin %q", c.Origin)
}

func (e *Engine) finish(epoch uint64, c types.Candidate, payload types.Payload, stage types.Stage, err error) {
	if !e.current(epoch) {
		e.logger.Debug("Discarding screenshot prepared before stop", zap.String("path", payload.Path))
		return
	}
	if err != nil {
		e.drop(c, stage, err)
		return
	}
	e.status.Stage = stage
	log := e.logger.With(zap.String("path", payload.Path))
	log.Debug("Screenshot ready", zap.String("stage", string(stage)))

	state, err := e.pub.Publish(payload)
	published := err == nil
	if err != nil {
		log.Warn("Failed to publish screenshot, verification will retry",
			zap.String("stage", string(types.StagePublished)),
			zap.Error(err))
		e.status.LastError = err.Error()
	}

	state = e.guard.Arm(state)
	e.observe(state.Token)
	e.status.Stage = types.StageVerifying
	e.status.LastPath = payload.Path
	e.status.LastToken = state.Token

	if !published {
		e.unpublished = &c
		return
	}
	e.unpublished = nil
	e.published(c, state)
}

// published accounts for a screenshot that reached the clipboard.
func (e *Engine) published(c types.Candidate, state types.PublishedState) {
	e.status.Published++
	e.logger.Info("Screenshot published to clipboard",
		zap.String("stage", string(types.StagePublished)),
		zap.String("path", state.Payload.Path),
		zap.Int64("token", state.Token),
		zap.Uint64("seq", state.Seq))
	e.record(c, state)
	e.copied(state.Payload.Path)
}

func (e *Engine) drop(c types.Candidate, stage types.Stage, err error) {
	e.status.Stage = types.StageDropped
	e.status.Dropped++
	e.status.LastError = err.Error()
	e.logger.Error("Dropping screenshot",
		zap.String("stage", string(stage)),
		zap.String("origin", string(c.Origin)),
		zap.String("path", c.Path),
		zap.Error(err))
	e.incStat(storage.StatDropped)
}

// verified runs on the loop after each guard pass.
func (e *Engine) verified(pass int, outcome clipboard.Outcome, state types.PublishedState) {
	if outcome == clipboard.Intact || outcome == clipboard.Republished {
		e.observe(state.Token)
		e.status.LastToken = state.Token
	}
	switch {
	case outcome == clipboard.Republished && e.unpublished != nil:
		c := *e.unpublished
		e.unpublished = nil
		e.published(c, state)
	case outcome == clipboard.Republished:
		e.status.Republished++
		e.incStat(storage.StatRepublished)
		if e.opts.Storage != nil {
			if err := e.opts.Storage.MarkRepublished(state.Payload.Path); err != nil {
				e.logger.Warn("Failed to update screenshot record", zap.Error(err))
			}
		}
	}
	if pass == e.guard.Passes() {
		e.status.Stage = types.StageSettled
		e.logger.Debug("Screenshot settled",
			zap.String("stage", string(types.StageSettled)),
			zap.String("path", state.Payload.Path),
			zap.String("outcome", outcome.String()))
		if e.unpublished != nil {
			c := *e.unpublished
			e.unpublished = nil
			e.drop(c, types.StagePublished,
				fmt.Errorf("%w: gave up after %d verification passes", types.ErrClipboardWrite, pass))
		}
	}
}

func (e *Engine) observe(token int64) {
	if obs, ok := e.opts.Source.(tokenObserver); ok {
		obs.Observe(token)
	}
}

func (e *Engine) copied(path string) {
	if e.opts.OnCopied != nil {
		e.opts.OnCopied(path)
	}
	if e.opts.Notifier != nil {
		n := e.opts.Notifier
		go func() {
			if err := n.Notify("Screenshot copied", path); err != nil {
				e.logger.Debug("Notification failed", zap.Error(err))
			}
		}()
	}
}

func (e *Engine) record(c types.Candidate, state types.PublishedState) {
	payload := state.Payload
	e.incStat(storage.StatPublished)
	if e.opts.Storage == nil {
		return
	}
	var size int64
	if c.Origin == types.OriginClipboard {
		size = int64(len(c.Data))
	} else {
		size = int64(len(payload.Image))
	}
	rec := &types.Record{
		Path:        payload.Path,
		Origin:      c.Origin,
		Size:        size,
		Token:       state.Token,
		DeviceID:    e.opts.DeviceID,
		Hash:        utils.HashContent(payload.Image),
		PublishedAt: state.PublishedAt,
	}
	if err := e.opts.Storage.SaveLatest(rec); err != nil {
		e.logger.Warn("Failed to record screenshot", zap.Error(err))
	}
}

func (e *Engine) incStat(name string) {
	if e.opts.Storage == nil {
		return
	}
	if err := e.opts.Storage.IncStat(name); err != nil {
		e.logger.Warn("Failed to update counter", zap.String("counter", name), zap.Error(err))
	}
}
