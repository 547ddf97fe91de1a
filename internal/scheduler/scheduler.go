// Package scheduler drives periodic reconciliation passes. The scheduler is
// an explicit instance owned by the serve command; there is no process-wide
// singleton.
package scheduler

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// Runner is the unit of work fired on each tick. It must contain its own
// failures; a panic or error inside one fire never cancels future fires.
type Runner func(ctx context.Context)

// Scheduler is a two-state machine: stopped, or running with a fixed
// interval. Reconfiguring always performs a full stop+start; there is no
// incremental update path.
type Scheduler struct {
	runner Runner
	logger *log.Logger

	mu       sync.Mutex
	running  bool
	interval time.Duration
	nextRun  time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a stopped scheduler that fires runner on each tick.
// If logger is nil, a default logger writing to stderr is used.
func New(runner Runner, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "[sched] ", log.LstdFlags)
	}
	return &Scheduler{
		runner: runner,
		logger: logger,
	}
}

// Start installs a periodic timer with the given interval, tearing down any
// existing timer first. Calling Start on a running scheduler is the
// reconfigure path and is always a full restart.
func (s *Scheduler) Start(interval time.Duration) {
	if interval <= 0 {
		s.logger.Printf("Ignoring start with non-positive interval %v", interval)
		return
	}

	s.Stop()

	s.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.interval = interval
	s.nextRun = time.Now().Add(interval)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx, interval)

	s.logger.Printf("Scheduler started: interval=%v", interval)
}

// Stop removes the timer if one is installed. Stopping an already stopped
// scheduler is a no-op. An in-flight fire completes to its natural
// conclusion; only future fires are prevented.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.nextRun = time.Time{}
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.logger.Println("Scheduler stopped")
}

// Running reports whether a periodic timer is installed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the configured interval, or zero when stopped.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return s.interval
}

// NextRun returns the next scheduled fire time. ok is false when stopped.
func (s *Scheduler) NextRun() (next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}, false
	}
	return s.nextRun, true
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.mu.Lock()
			s.nextRun = time.Now().Add(interval)
			s.mu.Unlock()

			s.fire(ctx)
		}
	}
}

// fire invokes the runner with panic containment so one bad pass never
// kills the timer loop.
func (s *Scheduler) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("Recovered from panic in scheduled run: %v", r)
		}
	}()

	s.runner(ctx)
}
