package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HMasataka/hubsim/internal/logging"
)

const (
	timerPending int32 = iota
	timerFired
	timerStopped
)

// Loop is a wall-clock Scheduler whose callbacks all execute on a single
// goroutine. Start must be called before timers can fire.
type Loop struct {
	tasks  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logging.Logger
}

type task struct {
	timer *loopTimer
	fn    func()
}

// NewLoop creates a new loop with a task buffer of bufferSize
func NewLoop(bufferSize int, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Loop{
		tasks:  make(chan task, bufferSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Start starts the loop goroutine. The loop ends when ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.run(ctx)
	l.logger.Debug("scheduler loop started")
}

// Stop stops the loop and waits for the running callback, if any
func (l *Loop) Stop() {
	l.cancel()
	l.wg.Wait()
	l.logger.Debug("scheduler loop stopped")
}

// Now implements Scheduler
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc implements Scheduler
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{done: make(chan struct{})}
	t.timer = time.AfterFunc(d, func() {
		l.post(task{timer: t, fn: fn})
	})
	return t
}

// Every implements Scheduler
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{periodic: true, done: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.post(task{timer: t, fn: fn})
			case <-t.done:
				return
			case <-l.ctx.Done():
				return
			}
		}
	}()

	return t
}

// Post implements Scheduler. It never blocks: when the task buffer is full
// the task is handed to a goroutine and may run after later posts.
func (l *Loop) Post(fn func()) {
	t := task{timer: &loopTimer{done: make(chan struct{})}, fn: fn}

	select {
	case l.tasks <- t:
	default:
		go l.post(t)
	}
}

func (l *Loop) post(t task) {
	select {
	case l.tasks <- t:
	case <-t.timer.done:
	case <-l.ctx.Done():
	}
}

// run is the main loop
func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ctx.Done():
			return
		case t := <-l.tasks:
			if t.timer.claim() {
				t.fn()
			}
		}
	}
}

type loopTimer struct {
	state    atomic.Int32
	periodic bool
	timer    *time.Timer
	done     chan struct{}
	once     sync.Once
}

// claim reports whether the callback may run now
func (t *loopTimer) claim() bool {
	if t.periodic {
		return t.state.Load() == timerPending
	}
	return t.state.CompareAndSwap(timerPending, timerFired)
}

// Stop implements Timer
func (t *loopTimer) Stop() bool {
	stopped := t.state.CompareAndSwap(timerPending, timerStopped)
	if t.timer != nil {
		t.timer.Stop()
	}
	t.once.Do(func() { close(t.done) })
	return stopped
}
