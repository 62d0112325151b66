// Package hub implements a simulated real-time hub client. A Client owns one
// session: its connection state, roster, message history and event
// subscriptions. Construct one per session and pass it to the code that
// drives it; there is no process-wide instance.
package hub

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/internal/scheduler"
	"github.com/HMasataka/hubsim/pkg/connection"
	"github.com/HMasataka/hubsim/pkg/domain"
	"github.com/HMasataka/hubsim/pkg/errors"
	"github.com/HMasataka/hubsim/pkg/roster"
)

// Options represents hub client options. Zero Simulation fields take the
// values of config.DefaultSimulation.
type Options struct {
	Simulation   config.SimulationConfig
	Logger       *logging.Logger
	Scheduler    scheduler.Scheduler
	ErrorHandler errors.Handler
	Rand         *rand.Rand
}

// DefaultOptions returns options with the default simulation settings
func DefaultOptions() Options {
	return Options{
		Simulation: config.DefaultSimulation(),
	}
}

// Client is a simulated hub connection
type Client struct {
	options    Options
	logger     *logging.Logger
	sched      scheduler.Scheduler
	ownedLoop  *scheduler.Loop
	errHandler errors.Handler
	bus        *eventbus.Registry
	conn       *connection.Manager
	roster     *roster.Store
	ctx        context.Context

	mu        sync.Mutex
	history   []domain.Message
	nextID    int64
	deferred  map[uint64]scheduler.Timer
	deferSeq  uint64
	announcer scheduler.Timer
	rng       *rand.Rand
	closed    bool
	invalid   error
}

var _ domain.Hub = (*Client)(nil)

// NewClient creates a hub client in the Disconnected state. Without a
// Scheduler the client runs its own wall-clock loop until Close.
func NewClient(options Options) *Client {
	if options.Logger == nil {
		options.Logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}
	if options.ErrorHandler == nil {
		options.ErrorHandler = errors.NewDefaultHandler(options.Logger.Logger)
	}
	if options.Rand == nil {
		options.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}

	options.Simulation = withSimulationDefaults(options.Simulation)

	c := &Client{
		options:    options,
		logger:     options.Logger,
		errHandler: options.ErrorHandler,
		roster:     roster.NewStore(),
		deferred:   make(map[uint64]scheduler.Timer),
		rng:        options.Rand,
	}

	c.sched = options.Scheduler
	if c.sched == nil {
		c.ownedLoop = scheduler.NewLoop(256, options.Logger)
		c.ownedLoop.Start(context.Background())
		c.sched = c.ownedLoop
	}

	c.ctx = logging.WithLogger(context.Background(), c.logger)
	c.bus = eventbus.NewRegistry(c.logger, c.errHandler)
	c.conn = connection.NewManager(connection.Options{
		ConnectDelay:    options.Simulation.ConnectDelay,
		DisconnectDelay: options.Simulation.DisconnectDelay,
		Scheduler:       c.sched,
		Logger:          c.logger,
	})
	c.conn.OnStateChange(func(_, _ domain.ConnectionState) {
		c.syncBackground()
	})

	c.invalid = options.Simulation.Validate()
	c.seedHistory(options.Simulation.InitialMessages)

	return c
}

// StartConnection connects the hub, waiting for the simulated handshake.
// Calls made while Connecting or Connected succeed immediately.
func (c *Client) StartConnection(ctx context.Context) error {
	if c.invalid != nil {
		return domain.ErrInvalidArgument.WithCause(c.invalid)
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrConnectionAborted.WithDetails("client closed")
	}

	return c.conn.Start(ctx)
}

// StopConnection disconnects the hub. Deferred dispatches still in flight
// are dropped and the announcer stops.
func (c *Client) StopConnection(ctx context.Context) error {
	return c.conn.Stop(ctx)
}

// On subscribes handler to an event name. Handlers run one at a time on the
// scheduler's task queue; they must not block on StartConnection or
// StopConnection.
func (c *Client) On(name eventbus.EventName, handler eventbus.Handler) eventbus.SubscriptionID {
	return c.bus.On(name, handler)
}

// Off removes a subscription
func (c *Client) Off(name eventbus.EventName, id eventbus.SubscriptionID) {
	c.bus.Off(name, id)
}

// State returns the connection state
func (c *Client) State() domain.ConnectionState {
	return c.conn.State()
}

// History returns a copy of the chat history in id order
func (c *Client) History() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.history...)
}

// Users returns the roster in join order
func (c *Client) Users() []string {
	return c.roster.List()
}

// Enqueue runs fn on the client's task queue after the work already queued
// there, including debug triggers issued before the call
func (c *Client) Enqueue(fn func()) {
	c.sched.Post(fn)
}

// Debug returns the event injection surface for tests and demo controls
func (c *Client) Debug() *Debugger {
	return &Debugger{c: c}
}

// Close tears the client down: timers are cancelled, the connection drops
// to Disconnected without dispatching, and an owned scheduler loop stops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopBackgroundLocked()
	c.mu.Unlock()

	c.conn.ForceDisconnect()

	if c.ownedLoop != nil {
		c.ownedLoop.Stop()
	}

	c.logger.Info("hub client closed")
	return nil
}

// withSimulationDefaults fills unset fields from config.DefaultSimulation.
// Zero delays count as unset; a zero-value Options gets the stock timings.
func withSimulationDefaults(sim config.SimulationConfig) config.SimulationConfig {
	def := config.DefaultSimulation()

	if sim.ConnectDelay == 0 {
		sim.ConnectDelay = def.ConnectDelay
	}
	if sim.DisconnectDelay == 0 {
		sim.DisconnectDelay = def.DisconnectDelay
	}
	if sim.RoundTripDelay == 0 {
		sim.RoundTripDelay = def.RoundTripDelay
	}
	if sim.AnnouncementInterval == 0 {
		sim.AnnouncementInterval = def.AnnouncementInterval
	}
	if len(sim.Announcements) == 0 {
		sim.Announcements = def.Announcements
	}
	return sim
}

// dispatch fans an event out to subscribers
func (c *Client) dispatch(event *eventbus.Event) {
	c.logger.Debug("dispatching event", "event", event.Name, "handlers", c.bus.Count(event.Name))
	c.bus.Dispatch(c.ctx, event)
}

// appendMessage records a message with the next id
func (c *Client) appendMessage(sender, content string, at time.Time) domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	msg := domain.Message{
		ID:        c.nextID,
		Sender:    sender,
		Content:   content,
		Timestamp: at,
	}
	c.history = append(c.history, msg)
	return msg
}

func (c *Client) seedHistory(seeds []config.SeedMessage) {
	now := c.sched.Now()
	for _, seed := range seeds {
		c.appendMessage(seed.Sender, seed.Content, now.Add(-seed.Age))
	}
}

// deferDispatch runs fn after delay if the connection is still in epoch.
// Work overtaken by a disconnect is dropped, never failed.
func (c *Client) deferDispatch(epoch uint64, delay time.Duration, what string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.deferSeq++
	id := c.deferSeq
	c.deferred[id] = c.sched.AfterFunc(delay, func() {
		c.mu.Lock()
		_, live := c.deferred[id]
		delete(c.deferred, id)
		c.mu.Unlock()

		if !live || !c.conn.IsCurrent(epoch) {
			c.logger.Debug("dropping deferred dispatch", "what", what, "epoch", epoch)
			return
		}
		fn()
	})
}

// syncBackground starts or stops background work to match the connection state
func (c *Client) syncBackground() {
	connected := c.conn.IsConnected()

	c.mu.Lock()
	defer c.mu.Unlock()

	if connected && !c.closed {
		c.startAnnouncerLocked()
		return
	}
	c.stopBackgroundLocked()
}

// stopBackgroundLocked must be called with mu held
func (c *Client) stopBackgroundLocked() {
	if c.announcer != nil {
		c.announcer.Stop()
		c.announcer = nil
	}

	for id, timer := range c.deferred {
		timer.Stop()
		delete(c.deferred, id)
	}
}
