package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/screenshot"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// Lister lists the files of the watched directory.
type Lister interface {
	List() ([]screenshot.Entry, error)
}

// Watcher reacts to writes in a directory and reports the newest file that
// follows a screenshot naming convention.
type Watcher struct {
	dir     string
	lister  Lister
	matcher screenshot.Matcher
	logger  *zap.Logger

	// known is the set of names already observed. It is owned by the engine
	// loop and only shrinks on Refresh.
	known map[string]struct{}

	mu  sync.Mutex
	fsw *fsnotify.Watcher
}

// NewWatcher returns a watcher on dir.
func NewWatcher(dir string, lister Lister, matcher screenshot.Matcher, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:     dir,
		lister:  lister,
		matcher: matcher,
		logger:  logger.With(zap.String("source", string(KindWatch)), zap.String("dir", dir)),
		known:   make(map[string]struct{}),
	}
}

func (w *Watcher) Kind() Kind { return KindWatch }

// Start snapshots the directory as the initial known set and subscribes to
// change notifications. Any failure is wrapped in ErrWatchSetup.
func (w *Watcher) Start(ctx context.Context) (<-chan struct{}, error) {
	if err := w.Refresh(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrWatchSetup, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create watcher: %w", types.ErrWatchSetup, err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("%w: watch %s: %w", types.ErrWatchSetup, w.dir, err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	wake := make(chan struct{}, 1)
	go w.forward(ctx, fsw, wake)

	w.logger.Info("Watching directory", zap.Int("known", len(w.known)))
	return wake, nil
}

// forward turns fsnotify events into wake-ups until the watcher is closed.
func (w *Watcher) forward(ctx context.Context, fsw *fsnotify.Watcher, wake chan struct{}) {
	defer close(wake)
	for {
		select {
		case <-ctx.Done():
			w.release(fsw)
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				notify(wake)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Directory watch error", zap.Error(err))
		}
	}
}

// Collect lists the directory, diffs it against the known set and returns at
// most one candidate: the matching file with the latest creation time.
// Other new files are remembered as known and never reconsidered.
func (w *Watcher) Collect() ([]types.Candidate, error) {
	current, err := w.lister.List()
	if err != nil {
		return nil, err
	}

	added := diff(w.known, current)
	for _, e := range current {
		w.known[e.Name] = struct{}{}
	}
	if len(added) == 0 {
		return nil, nil
	}

	var best *screenshot.Entry
	for i := range added {
		e := &added[i]
		if !w.matcher.Match(e.Name) {
			w.logger.Debug("Ignoring non-screenshot file", zap.String("name", e.Name))
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}

	w.logger.Debug("New screenshot file",
		zap.String("path", best.Path),
		zap.Int("added", len(added)))
	return []types.Candidate{{
		Origin:    types.OriginDirectory,
		Path:      best.Path,
		CreatedAt: best.CreatedAt,
	}}, nil
}

// Known returns a copy of the known file set.
func (w *Watcher) Known() map[string]struct{} {
	out := make(map[string]struct{}, len(w.known))
	for k := range w.known {
		out[k] = struct{}{}
	}
	return out
}

// Refresh replaces the known set with the directory's current contents.
func (w *Watcher) Refresh() error {
	entries, err := w.lister.List()
	if err != nil {
		return err
	}
	w.known = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		w.known[e.Name] = struct{}{}
	}
	return nil
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}
	return w.release(fsw)
}

// release closes fsw and forgets it if it is still the active watch. A
// goroutine left over from an earlier Start only ever closes its own watch.
func (w *Watcher) release(fsw *fsnotify.Watcher) error {
	w.mu.Lock()
	if w.fsw == fsw {
		w.fsw = nil
	}
	w.mu.Unlock()
	return fsw.Close()
}

// diff returns the entries of current whose names are not in known, in
// current's order.
func diff(known map[string]struct{}, current []screenshot.Entry) []screenshot.Entry {
	var added []screenshot.Entry
	for _, e := range current {
		if _, ok := known[e.Name]; !ok {
			added = append(added, e)
		}
	}
	return added
}
