// Package connection simulates the lifecycle of a hub connection:
// Disconnected → Connecting → Connected → Disconnecting → Disconnected.
package connection

import (
	"context"
	"sync"
	"time"

	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/internal/scheduler"
	"github.com/HMasataka/hubsim/pkg/domain"
)

// Options represents connection manager options
type Options struct {
	ConnectDelay    time.Duration
	DisconnectDelay time.Duration
	Scheduler       scheduler.Scheduler
	Logger          *logging.Logger
}

// StateChangeFunc observes state transitions
type StateChangeFunc func(old, new domain.ConnectionState)

// waiter is resolved once, when a start or stop cycle ends
type waiter struct {
	done chan struct{}
	err  error
}

func newWaiter() *waiter {
	return &waiter{done: make(chan struct{})}
}

func (w *waiter) resolve(err error) {
	w.err = err
	close(w.done)
}

// Manager owns the connection state
type Manager struct {
	options Options
	sched   scheduler.Scheduler
	logger  *logging.Logger

	mu        sync.Mutex
	state     domain.ConnectionState
	cycle     uint64
	epoch     uint64
	pending   scheduler.Timer
	starting  *waiter
	stopping  *waiter
	observers []StateChangeFunc
}

// NewManager creates a manager in the Disconnected state
func NewManager(options Options) *Manager {
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}

	return &Manager{
		options: options,
		sched:   options.Scheduler,
		logger:  options.Logger,
		state:   domain.StateDisconnected,
	}
}

// OnStateChange registers an observer. Observers run outside the manager
// lock and may read the state.
func (m *Manager) OnStateChange(fn StateChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// State returns the current state
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the state is Connected
func (m *Manager) IsConnected() bool {
	return m.State() == domain.StateConnected
}

// Epoch counts how many times the connection has left Connected
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// IsCurrent reports whether the connection is still Connected within epoch.
// Deferred work captures the epoch when scheduled and checks it when it fires.
func (m *Manager) IsCurrent(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.StateConnected && m.epoch == epoch
}

// Start connects. It returns at once when already Connected or Connecting,
// otherwise it waits for the simulated connect delay.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == domain.StateConnected || m.state == domain.StateConnecting {
		m.mu.Unlock()
		return nil
	}

	m.cancelPending()
	m.resolveStopping(domain.ErrConnectionAborted.WithDetails("superseded by start"))

	m.cycle++
	cycle := m.cycle
	w := newWaiter()
	m.starting = w
	notify := m.transition(domain.StateConnecting)
	m.pending = m.sched.AfterFunc(m.options.ConnectDelay, func() {
		m.completeStart(cycle)
	})
	m.mu.Unlock()

	notify()
	m.logger.Info("starting hub connection", "delay", m.options.ConnectDelay)

	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		if m.abortStart(cycle) {
			return ctx.Err()
		}
		<-w.done
		return w.err
	}
}

// Stop disconnects. It returns at once when already Disconnected,
// otherwise it waits for the simulated teardown delay.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case domain.StateDisconnected:
		m.mu.Unlock()
		return nil
	case domain.StateDisconnecting:
		w := m.stopping
		m.mu.Unlock()
		return wait(ctx, w)
	case domain.StateConnected:
		m.epoch++
	}

	m.cancelPending()
	m.resolveStarting(domain.ErrConnectionAborted.WithDetails("stopped while connecting"))

	m.cycle++
	cycle := m.cycle
	w := newWaiter()
	m.stopping = w
	notify := m.transition(domain.StateDisconnecting)
	m.pending = m.sched.AfterFunc(m.options.DisconnectDelay, func() {
		m.completeStop(cycle)
	})
	m.mu.Unlock()

	notify()
	m.logger.Info("stopping hub connection", "delay", m.options.DisconnectDelay)

	return wait(ctx, w)
}

// ForceDisconnect drops to Disconnected with no delay. It reports whether
// the state changed.
func (m *Manager) ForceDisconnect() bool {
	m.mu.Lock()
	if m.state == domain.StateDisconnected {
		m.mu.Unlock()
		return false
	}
	if m.state == domain.StateConnected {
		m.epoch++
	}

	m.cancelPending()
	m.resolveStarting(domain.ErrConnectionAborted.WithDetails("connection lost"))
	m.resolveStopping(nil)
	m.cycle++
	notify := m.transition(domain.StateDisconnected)
	m.mu.Unlock()

	notify()
	return true
}

// ForceReconnect jumps to Connected with no delay. It reports whether the
// state changed.
func (m *Manager) ForceReconnect() bool {
	m.mu.Lock()
	if m.state == domain.StateConnected {
		m.mu.Unlock()
		return false
	}

	m.cancelPending()
	m.resolveStarting(nil)
	m.resolveStopping(domain.ErrConnectionAborted.WithDetails("connection restored"))
	m.cycle++
	notify := m.transition(domain.StateConnected)
	m.mu.Unlock()

	notify()
	return true
}

func (m *Manager) completeStart(cycle uint64) {
	m.mu.Lock()
	if m.cycle != cycle || m.state != domain.StateConnecting {
		m.mu.Unlock()
		return
	}

	m.pending = nil
	m.resolveStarting(nil)
	notify := m.transition(domain.StateConnected)
	m.mu.Unlock()

	notify()
	m.logger.Info("hub connection established")
}

func (m *Manager) completeStop(cycle uint64) {
	m.mu.Lock()
	if m.cycle != cycle || m.state != domain.StateDisconnecting {
		m.mu.Unlock()
		return
	}

	m.pending = nil
	m.resolveStopping(nil)
	notify := m.transition(domain.StateDisconnected)
	m.mu.Unlock()

	notify()
	m.logger.Info("hub connection stopped")
}

// abortStart rolls a cancelled start back to Disconnected. It reports false
// when the cycle already ended some other way.
func (m *Manager) abortStart(cycle uint64) bool {
	m.mu.Lock()
	if m.cycle != cycle || m.state != domain.StateConnecting {
		m.mu.Unlock()
		return false
	}

	m.cancelPending()
	m.starting = nil
	m.cycle++
	notify := m.transition(domain.StateDisconnected)
	m.mu.Unlock()

	notify()
	m.logger.Warn("hub connection attempt cancelled")
	return true
}

// cancelPending must be called with mu held
func (m *Manager) cancelPending() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

// resolveStarting must be called with mu held
func (m *Manager) resolveStarting(err error) {
	if m.starting != nil {
		m.starting.resolve(err)
		m.starting = nil
	}
}

// resolveStopping must be called with mu held
func (m *Manager) resolveStopping(err error) {
	if m.stopping != nil {
		m.stopping.resolve(err)
		m.stopping = nil
	}
}

// transition must be called with mu held; the returned func notifies
// observers and must be called after unlocking
func (m *Manager) transition(next domain.ConnectionState) func() {
	prev := m.state
	m.state = next
	observers := append([]StateChangeFunc(nil), m.observers...)

	m.logger.Debug("connection state changed", "from", prev.String(), "to", next.String())

	return func() {
		for _, fn := range observers {
			fn(prev, next)
		}
	}
}

func wait(ctx context.Context, w *waiter) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
