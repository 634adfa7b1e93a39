package daemon

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// scheduler runs delayed tasks by posting them onto the engine loop. All
// pending timers can be cancelled at once.
type scheduler struct {
	clock clock.Clock
	post  func(func()) bool

	mu     sync.Mutex
	next   uint64
	timers map[uint64]*clock.Timer
}

func newScheduler(clk clock.Clock, post func(func()) bool) *scheduler {
	return &scheduler{
		clock:  clk,
		post:   post,
		timers: make(map[uint64]*clock.Timer),
	}
}

// After posts fn to the loop once d has elapsed.
func (s *scheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.timers[id] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.post(fn)
	})
}

// Pending returns the number of timers that have not fired.
func (s *scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// CancelAll stops every pending timer. Tasks already posted to the loop are
// not recalled; the engine discards them by epoch.
func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
