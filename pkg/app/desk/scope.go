package desk

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Activity is a background task that runs until its context is cancelled.
type Activity func(ctx context.Context)

// Scope runs a set of activities while at least one holder has acquired it.
// The first Acquire starts them; the last release cancels them and waits for
// every one to return.
type Scope struct {
	name       string
	base       context.Context
	activities []Activity
	log        *zap.SugaredLogger

	mu     sync.Mutex
	refs   int
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScope binds activities to base: cancelling base stops them regardless of holders.
func NewScope(base context.Context, name string, log *zap.SugaredLogger, activities ...Activity) *Scope {
	return &Scope{name: name, base: base, activities: activities, log: log}
}

// Acquire registers a holder and returns its release func. Calling release
// more than once has no further effect.
func (s *Scope) Acquire() (release func()) {
	s.mu.Lock()
	s.refs++
	if s.refs == 1 {
		s.start()
	}
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(s.release) }
}

func (s *Scope) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		s.stop()
	}
}

// Running reports whether the activities are currently started.
func (s *Scope) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Holders returns the number of outstanding acquisitions.
func (s *Scope) Holders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *Scope) start() {
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	for _, run := range s.activities {
		s.wg.Add(1)
		go func(run Activity) {
			defer s.wg.Done()
			run(ctx)
		}(run)
	}
	s.log.Infow("view_mounted", "view", s.name, "activities", len(s.activities))
}

func (s *Scope) stop() {
	s.cancel()
	s.cancel = nil
	s.wg.Wait()
	s.log.Infow("view_unmounted", "view", s.name)
}
