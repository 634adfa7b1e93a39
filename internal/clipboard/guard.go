package clipboard

import (
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// DefaultVerifyDelays bracket the latency of the screenshot tool's own
// clipboard write, measured from the publish.
var DefaultVerifyDelays = []time.Duration{150 * time.Millisecond, 500 * time.Millisecond}

// Scheduler runs fn after d on the caller's serialized context.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Outcome is the result of one verification pass.
type Outcome int

const (
	// Intact means the file reference was still on the clipboard.
	Intact Outcome = iota
	// Republished means the payload had been clobbered and was written again.
	Republished
	// Stale means a newer publish superseded the one being verified.
	Stale
	// Failed means the clipboard could not be read or rewritten.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Intact:
		return "intact"
	case Republished:
		return "republished"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Guard re-checks the clipboard at fixed delays after each publish and
// republishes when the file reference has disappeared. There is no retry
// beyond the configured passes.
//
// Guard is not safe for concurrent use; the engine calls it, and runs its
// scheduled passes, on one loop.
type Guard struct {
	pub    *Publisher
	sched  Scheduler
	delays []time.Duration
	logger *zap.Logger

	// OnVerify, if set, is called after every non-stale pass with the
	// state as it stands after the pass.
	OnVerify func(pass int, outcome Outcome, state types.PublishedState)

	seq       uint64
	current   types.PublishedState
	remaining int
}

// NewGuard returns a guard that verifies after each of delays.
func NewGuard(pub *Publisher, sched Scheduler, delays []time.Duration, logger *zap.Logger) *Guard {
	if len(delays) == 0 {
		delays = DefaultVerifyDelays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		pub:    pub,
		sched:  sched,
		delays: append([]time.Duration(nil), delays...),
		logger: logger,
	}
}

// Passes returns the number of verification passes per publish.
func (g *Guard) Passes() int { return len(g.delays) }

// Arm makes state the tracked publish and schedules its verification
// passes. Passes still pending for an earlier publish become stale.
func (g *Guard) Arm(state types.PublishedState) types.PublishedState {
	g.seq++
	state.Seq = g.seq
	g.current = state
	g.remaining = len(g.delays)

	seq := state.Seq
	for i, d := range g.delays {
		pass := i + 1
		g.sched.After(d, func() { g.Verify(seq, pass) })
	}
	return state
}

// Verify runs one pass for the publish identified by seq.
func (g *Guard) Verify(seq uint64, pass int) Outcome {
	if seq != g.current.Seq || g.remaining == 0 {
		return Stale
	}
	g.remaining--
	final := g.remaining == 0

	log := g.logger.With(
		zap.String("stage", string(types.StageVerifying)),
		zap.String("path", g.current.Payload.Path),
		zap.Int("pass", pass))

	outcome := g.verify(log)
	switch {
	case outcome == Republished && final:
		log.Info("Screenshot clobbered at final verification pass, republished without further checks")
	case outcome == Failed && final:
		log.Warn("Giving up on screenshot after final verification pass")
	}

	if g.OnVerify != nil {
		g.OnVerify(pass, outcome, g.current)
	}
	return outcome
}

func (g *Guard) verify(log *zap.Logger) Outcome {
	snap, err := g.pub.cb.Snapshot()
	if err != nil {
		log.Warn("Failed to read clipboard during verification", zap.Error(err))
		return Failed
	}

	if snap.HasFileReference() {
		// Our payload, or a later file-backed write; either way track the
		// token the clipboard holds now.
		g.current.Token = snap.Token
		log.Debug("Clipboard still holds a file reference", zap.Int64("token", snap.Token))
		return Intact
	}

	log.Info("File reference missing from clipboard, republishing",
		zap.Int64("published_token", g.current.Token),
		zap.Int64("observed_token", snap.Token))
	state, err := g.pub.Publish(g.current.Payload)
	if err != nil {
		log.Warn("Republish failed", zap.Error(err))
		return Failed
	}
	g.current.Token = state.Token
	g.current.PublishedAt = state.PublishedAt
	return Republished
}

// Current returns the tracked publish, if any.
func (g *Guard) Current() (types.PublishedState, bool) {
	return g.current, g.current.Seq != 0
}

// Reset forgets the tracked publish so that any pass still scheduled for it
// is stale.
func (g *Guard) Reset() {
	g.current = types.PublishedState{}
	g.remaining = 0
}
