package source

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// DefaultPollInterval is the clipboard polling cadence.
const DefaultPollInterval = 300 * time.Millisecond

// Poller watches the clipboard change token on a fixed cadence. A change to a
// clipboard that holds a bitmap but no file reference is a pasted screenshot.
type Poller struct {
	cb       platform.Clipboard
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	// lastToken is owned by the engine loop.
	lastToken int64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPoller returns a poller reading cb every interval.
func NewPoller(cb platform.Clipboard, interval time.Duration, clk clock.Clock, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		cb:        cb,
		interval:  interval,
		clock:     clk,
		logger:    logger.With(zap.String("source", string(KindPoll))),
		lastToken: types.UnknownToken,
	}
}

func (p *Poller) Kind() Kind { return KindPoll }

// Start records the current token as a baseline, so whatever the clipboard
// holds at startup is not mistaken for a new screenshot, and begins ticking.
func (p *Poller) Start(ctx context.Context) (<-chan struct{}, error) {
	if snap, err := p.cb.Snapshot(); err == nil {
		p.lastToken = snap.Token
	} else {
		p.logger.Warn("Failed to read initial clipboard token", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	wake := make(chan struct{}, 1)
	ticker := p.clock.Ticker(p.interval)
	go func() {
		defer close(wake)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				notify(wake)
			}
		}
	}()

	p.logger.Info("Polling clipboard",
		zap.String("backend", p.cb.Name()),
		zap.Duration("interval", p.interval))
	return wake, nil
}

// Collect reads the change token and, when it moved, classifies the new
// content. At most one candidate is returned per call.
func (p *Poller) Collect() ([]types.Candidate, error) {
	snap, err := p.cb.Snapshot()
	if err != nil {
		return nil, err
	}
	if snap.Token == p.lastToken {
		return nil, nil
	}
	p.lastToken = snap.Token

	if snap.HasFileReference() {
		p.logger.Debug("Clipboard already holds a file reference", zap.Int64("token", snap.Token))
		return nil, nil
	}
	imgType, ok := snap.ImageType()
	if !ok {
		return nil, nil
	}

	data, err := p.cb.Read(imgType)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Raw bitmap on clipboard",
		zap.Int64("token", snap.Token),
		zap.String("type", string(imgType)),
		zap.Int("size", len(data)))

	return []types.Candidate{{
		Origin:    types.OriginClipboard,
		Data:      data,
		DataType:  imgType,
		CreatedAt: p.clock.Now(),
	}}, nil
}

// Observe marks token as already seen, typically one produced by the
// engine's own clipboard write.
func (p *Poller) Observe(token int64) {
	if token != types.UnknownToken {
		p.lastToken = token
	}
}

func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return nil
}
