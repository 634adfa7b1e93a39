// Package source detects new screenshots, either by polling the clipboard's
// change token or by watching a directory for new files.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/screenshot"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// Kind selects an event source variant.
type Kind string

const (
	KindPoll  Kind = "poll"
	KindWatch Kind = "watch"
)

// ParseKind validates a mode string from configuration.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPoll, KindWatch:
		return k, nil
	}
	return "", fmt.Errorf("unknown source mode %q (want %q or %q)", s, KindPoll, KindWatch)
}

// Source produces screenshot candidates.
//
// Start returns a channel that receives a value whenever the source may have
// something new. The engine reacts by calling Collect on its own loop, so all
// state a source keeps is only touched from that loop. The channel is closed
// when ctx is done or Close is called.
type Source interface {
	Kind() Kind
	Start(ctx context.Context) (<-chan struct{}, error)
	Collect() ([]types.Candidate, error)
	Close() error
}

// Options configures New.
type Options struct {
	Clipboard platform.Clipboard // poll
	Interval  time.Duration      // poll

	Dir          string   // watch
	Lister       Lister   // watch; defaults to a screenshot.Store on Dir
	NamePatterns []string // watch; empty means screenshot.DefaultNamePatterns

	Clock  clock.Clock
	Logger *zap.Logger
}

// New returns the source variant for kind.
func New(kind Kind, opts Options) (Source, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch kind {
	case KindPoll:
		if opts.Clipboard == nil {
			return nil, fmt.Errorf("poll source needs a clipboard")
		}
		return NewPoller(opts.Clipboard, opts.Interval, opts.Clock, opts.Logger), nil
	case KindWatch:
		if opts.Dir == "" {
			return nil, fmt.Errorf("%w: no directory to watch", types.ErrWatchSetup)
		}
		lister := opts.Lister
		if lister == nil {
			lister = screenshot.NewStore(opts.Dir, opts.Logger)
		}
		return NewWatcher(opts.Dir, lister, screenshot.NewMatcher(opts.NamePatterns), opts.Logger), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", kind)
}

// notify performs a non-blocking send; a pending wake-up already covers this
// one.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
