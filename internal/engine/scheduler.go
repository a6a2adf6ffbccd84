package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultRefreshRate = 125

type SchedulerOption func(*Scheduler)

// WithTickHook registers fn to receive the colours of every tick. fn runs on
// the tick goroutine and must not edit the session.
func WithTickHook(fn func([]KeyColor)) SchedulerOption {
	return func(sc *Scheduler) {
		sc.onTick = fn
	}
}

// Scheduler drives a session at a fixed rate. It owns at most one tick loop;
// restarting cancels and waits for the previous loop first.
type Scheduler struct {
	session *Session
	period  time.Duration
	onTick  func([]KeyColor)

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}

	ticks   atomic.Uint64
	running atomic.Int32
}

func NewScheduler(session *Session, refreshRate float64, opts ...SchedulerOption) *Scheduler {
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}
	sc := &Scheduler{
		session: session,
		period:  time.Duration(float64(time.Second) / refreshRate),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

func (sc *Scheduler) Period() time.Duration {
	return sc.period
}

// Start initializes the session and begins ticking until ctx is done or
// Stop is called. Session edits restart the loop from then on.
func (sc *Scheduler) Start(ctx context.Context) {
	sc.mu.Lock()
	sc.parent = ctx
	sc.mu.Unlock()

	sc.session.OnChange(sc.Restart)
	sc.Restart()

	logger.With(zap.Duration("period", sc.period)).Info("Animation started")
}

// Restart re-initializes every key and replaces the running tick loop.
// Before Start it only re-initializes.
func (sc *Scheduler) Restart() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.stopLocked()
	sc.session.Initialize()

	if sc.parent == nil || sc.parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(sc.parent)
	done := make(chan struct{})
	sc.cancel = cancel
	sc.done = done
	go sc.run(ctx, done)
}

// Stop cancels the tick loop and waits for it to exit.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stopLocked()
	sc.parent = nil
}

func (sc *Scheduler) stopLocked() {
	if sc.cancel == nil {
		return
	}
	sc.cancel()
	<-sc.done
	sc.cancel = nil
	sc.done = nil
}

// Ticks counts ticks since the scheduler was created.
func (sc *Scheduler) Ticks() uint64 {
	return sc.ticks.Load()
}

func (sc *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	sc.running.Add(1)
	defer sc.running.Add(-1)

	ticker := time.NewTicker(sc.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			colors := sc.session.Tick(sc.period)
			sc.ticks.Add(1)
			if sc.onTick != nil {
				sc.onTick(colors)
			}
		}
	}
}
