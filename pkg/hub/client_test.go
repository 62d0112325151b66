package hub

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/internal/scheduler"
	"github.com/HMasataka/hubsim/pkg/domain"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type capturingHandler struct {
	mu   sync.Mutex
	errs []error
}

func (h *capturingHandler) Handle(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *capturingHandler) HandleWithLogger(ctx context.Context, err error, _ *slog.Logger) {
	h.Handle(ctx, err)
}

func (h *capturingHandler) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

type fixture struct {
	client *Client
	clock  *scheduler.Manual
	errs   *capturingHandler
	sim    config.SimulationConfig
}

func newFixture(t *testing.T, mutate ...func(*config.SimulationConfig)) *fixture {
	t.Helper()

	sim := config.DefaultSimulation()
	for _, fn := range mutate {
		fn(&sim)
	}

	f := &fixture{
		clock: scheduler.NewManual(start),
		errs:  &capturingHandler{},
		sim:   sim,
	}
	f.client = NewClient(Options{
		Simulation:   sim,
		Logger:       logging.Discard(),
		Scheduler:    f.clock,
		ErrorHandler: f.errs,
		Rand:         rand.New(rand.NewPCG(1, 2)),
	})
	t.Cleanup(func() { _ = f.client.Close() })

	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- f.client.StartConnection(context.Background()) }()
	require.Eventually(t, func() bool { return f.client.State() == domain.StateConnecting }, time.Second, time.Millisecond)

	f.clock.Advance(f.sim.ConnectDelay)
	require.NoError(t, <-errCh)
	require.Equal(t, domain.StateConnected, f.client.State())
}

// stop begins StopConnection and returns once the client is Disconnecting
func (f *fixture) stop(t *testing.T) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- f.client.StopConnection(context.Background()) }()
	require.Eventually(t, func() bool { return f.client.State() == domain.StateDisconnecting }, time.Second, time.Millisecond)
	return errCh
}

func (f *fixture) roundTrip() {
	f.clock.Advance(f.sim.RoundTripDelay)
}

type recorder struct {
	mu     sync.Mutex
	events []*eventbus.Event
}

func record(c *Client, names ...eventbus.EventName) *recorder {
	if len(names) == 0 {
		names = eventbus.Names()
	}
	r := &recorder{}
	for _, name := range names {
		c.On(name, func(e *eventbus.Event) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) Events() []*eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventbus.Event(nil), r.events...)
}

func (r *recorder) Names() []eventbus.EventName {
	var names []eventbus.EventName
	for _, e := range r.Events() {
		names = append(names, e.Name)
	}
	return names
}

func TestClient_JoinChatDispatchesAfterRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := record(f.client)

	res, err := f.client.JoinChat(context.Background(), "Bob")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.UserID)
	require.Empty(t, rec.Events())

	f.roundTrip()

	events := rec.Events()
	require.Equal(t, []eventbus.EventName{
		eventbus.EventUserJoined,
		eventbus.EventReceiveMessage,
		eventbus.EventReceiveUserList,
	}, rec.Names())
	require.Equal(t, eventbus.UserPayload{Username: "Bob"}, events[0].Data)

	welcome := events[1].Data.(eventbus.MessagePayload)
	require.Equal(t, domain.SystemSender, welcome.Sender)
	require.Equal(t, "Welcome, Bob! There are 1 users online.", welcome.Content)
	require.Equal(t, start.Add(f.sim.ConnectDelay+f.sim.RoundTripDelay), welcome.Timestamp)

	require.Equal(t, eventbus.UserListPayload{Users: []string{"Bob"}}, events[2].Data)
	require.Empty(t, f.client.History())
}

func TestClient_JoinChatIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	first, err := f.client.JoinChat(context.Background(), "Alice")
	require.NoError(t, err)
	second, err := f.client.JoinChat(context.Background(), "Alice")
	require.NoError(t, err)

	require.Equal(t, first.UserID, second.UserID)
	require.Equal(t, []string{"Alice"}, f.client.Users())
}

func TestClient_JoinChatRejectsBlankName(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := record(f.client)

	_, err := f.client.JoinChat(context.Background(), "  ")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	f.roundTrip()
	require.Empty(t, rec.Events())
	require.Empty(t, f.client.Users())
}

func TestClient_SendMessageAppendsBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	_, err := f.client.JoinChat(context.Background(), "Bob")
	require.NoError(t, err)
	f.roundTrip()

	rec := record(f.client, eventbus.EventReceiveMessage)

	res, err := f.client.SendMessage(context.Background(), "Bob", "hi")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.MessageID)

	history := f.client.History()
	require.Len(t, history, 1)
	require.Equal(t, int64(1), history[0].ID)
	require.Equal(t, "Bob", history[0].Sender)
	require.Equal(t, "hi", history[0].Content)
	require.Empty(t, rec.Events())

	f.roundTrip()
	f.roundTrip()

	events := rec.Events()
	require.Len(t, events, 1)
	require.Equal(t, eventbus.MessagePayload{
		Sender:    "Bob",
		Content:   "hi",
		Timestamp: history[0].Timestamp,
	}, events[0].Data)
}

func TestClient_SendMessageRejectsBlankContent(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := record(f.client)

	for _, content := range []string{"", "   "} {
		_, err := f.client.SendMessage(context.Background(), "Bob", content)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	}

	f.roundTrip()
	require.Empty(t, f.client.History())
	require.Empty(t, rec.Events())
}

func TestClient_MessageIDsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	var last int64
	for i := 0; i < 20; i++ {
		res, err := f.client.SendMessage(context.Background(), "Bob", "msg")
		require.NoError(t, err)
		require.Greater(t, res.MessageID, last)
		last = res.MessageID
		if i%3 == 0 {
			f.clock.Advance(time.Duration(i) * time.Millisecond)
		}
	}
	require.Len(t, f.client.History(), 20)
}

func TestClient_MessageIDsUniqueUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	var wg sync.WaitGroup
	ids := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.client.SendMessage(context.Background(), "Bob", "hello")
			if err == nil {
				ids <- res.MessageID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		require.False(t, seen[id])
		seen[id] = true
	}
	require.Len(t, seen, 50)

	history := f.client.History()
	for i := 1; i < len(history); i++ {
		require.Greater(t, history[i].ID, history[i-1].ID)
	}
}

func TestClient_NotConnectedFailsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	rec := record(f.client)
	ctx := context.Background()

	_, err := f.client.JoinChat(ctx, "Alice")
	require.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = f.client.SendMessage(ctx, "Alice", "hello")
	require.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = f.client.Invoke(ctx, domain.MethodSendMessage, "Alice", "hello")
	require.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = f.client.Invoke(ctx, "Whatever")
	require.ErrorIs(t, err, domain.ErrNotConnected)

	f.clock.Advance(time.Hour)
	require.Empty(t, f.client.Users())
	require.Empty(t, f.client.History())
	require.Empty(t, rec.Events())
}

func TestClient_StopDropsPendingDispatch(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := record(f.client)

	_, err := f.client.SendMessage(context.Background(), "Bob", "are you there?")
	require.NoError(t, err)

	stopErr := f.stop(t)
	f.clock.Advance(f.sim.DisconnectDelay + f.sim.RoundTripDelay)

	require.NoError(t, <-stopErr)
	require.Equal(t, domain.StateDisconnected, f.client.State())
	require.Empty(t, rec.Events())
	require.Len(t, f.client.History(), 1)
}

func TestClient_InFlightDispatchDoesNotSurviveReconnect(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := record(f.client, eventbus.EventReceiveMessage)

	_, err := f.client.SendMessage(context.Background(), "Bob", "lost")
	require.NoError(t, err)

	f.client.Debug().SimulateDisconnect()
	f.client.Debug().SimulateReconnect()
	f.roundTrip()

	require.Empty(t, rec.Events())
}

func TestClient_InvokeRoutesKnownMethods(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	res, err := f.client.Invoke(ctx, domain.MethodJoinChat, "Dana")
	require.NoError(t, err)
	join, ok := res.(*domain.JoinResult)
	require.True(t, ok)
	require.True(t, join.Success)

	res, err = f.client.Invoke(ctx, domain.MethodSendMessage, "Dana", "hey")
	require.NoError(t, err)
	require.Equal(t, &domain.SendResult{Success: true, MessageID: 1}, res)

	_, err = f.client.Invoke(ctx, domain.MethodSendMessage, "Dana")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.client.Invoke(ctx, domain.MethodJoinChat, 42)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestClient_InvokeUnknownMethodReturnsNil(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	res, err := f.client.Invoke(context.Background(), "LeaveChat", "Dana")
	require.NoError(t, err)
	require.Nil(t, res)

	errs := f.errs.Errors()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], domain.ErrUnknownMethod)
}

func TestClient_HandlerPanicIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.client.On(eventbus.EventUserLeft, func(*eventbus.Event) { panic("ui bug") })
	rec := record(f.client, eventbus.EventUserLeft)

	f.client.Debug().SimulateUserLeave("Carol")

	require.Len(t, rec.Events(), 1)
	require.Len(t, f.errs.Errors(), 1)
}

func TestClient_OffStopsDelivery(t *testing.T) {
	f := newFixture(t)
	count := 0
	id := f.client.On(eventbus.EventUserJoined, func(*eventbus.Event) { count++ })

	f.client.Debug().SimulateUserJoin("Eve")
	f.client.Off(eventbus.EventUserJoined, id)
	f.client.Debug().SimulateUserJoin("Frank")

	require.Equal(t, 1, count)
}

func TestClient_SeedHistoryTakesFirstIDs(t *testing.T) {
	f := newFixture(t, func(s *config.SimulationConfig) {
		s.InitialMessages = []config.SeedMessage{
			{Sender: "Alex", Content: "Hey everyone!", Age: time.Hour},
			{Sender: "Jamie", Content: "Thanks Alex!", Age: 30 * time.Minute},
		}
	})

	history := f.client.History()
	require.Len(t, history, 2)
	require.Equal(t, int64(1), history[0].ID)
	require.Equal(t, start.Add(-time.Hour), history[0].Timestamp)

	f.connect(t)
	res, err := f.client.SendMessage(context.Background(), "You", "hello")
	require.NoError(t, err)
	require.Equal(t, int64(3), res.MessageID)
}

func TestClient_StartAfterCloseFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.client.Close())
	require.NoError(t, f.client.Close())

	err := f.client.StartConnection(context.Background())
	require.ErrorIs(t, err, domain.ErrConnectionAborted)
}

func TestClient_CloseCancelsTimers(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	rec := record(f.client)

	_, err := f.client.JoinChat(context.Background(), "Bob")
	require.NoError(t, err)
	require.Equal(t, 2, f.clock.Pending())

	require.NoError(t, f.client.Close())
	require.Zero(t, f.clock.Pending())
	require.Equal(t, domain.StateDisconnected, f.client.State())

	f.clock.Advance(time.Hour)
	require.Empty(t, rec.Events())
}

func TestClient_ZeroOptionsUseDefaultSimulation(t *testing.T) {
	clock := scheduler.NewManual(start)
	client := NewClient(Options{Logger: logging.Discard(), Scheduler: clock})
	t.Cleanup(func() { _ = client.Close() })

	errCh := make(chan error, 1)
	go func() { errCh <- client.StartConnection(context.Background()) }()
	clock.BlockUntil(1)
	clock.Advance(config.DefaultSimulation().ConnectDelay)
	require.NoError(t, <-errCh)

	_, err := client.JoinChat(context.Background(), "Alice")
	require.NoError(t, err)
	clock.Advance(config.DefaultSimulation().RoundTripDelay)

	rec := record(client, eventbus.EventReceiveMessage)
	clock.Advance(config.DefaultSimulation().AnnouncementInterval)

	events := rec.Events()
	require.Len(t, events, 1)
	require.Equal(t, domain.SystemSender, events[0].Data.(eventbus.MessagePayload).Sender)
}

func TestClient_ZeroOptionsConstruct(t *testing.T) {
	client := NewClient(Options{Logger: logging.Discard()})

	require.Equal(t, domain.StateDisconnected, client.State())
	require.Empty(t, client.History())
	require.NoError(t, client.Close())
}

func TestClient_InvalidSimulationFailsStart(t *testing.T) {
	f := newFixture(t, func(s *config.SimulationConfig) {
		s.RoundTripDelay = -time.Second
	})

	err := f.client.StartConnection(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.Equal(t, domain.StateDisconnected, f.client.State())
	require.Zero(t, f.clock.Pending())
}

func TestClient_JoinEventsStopWhenHandlerDisconnects(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	rec := record(f.client)
	f.client.On(eventbus.EventUserJoined, func(*eventbus.Event) {
		f.client.Debug().SimulateDisconnect()
	})

	_, err := f.client.JoinChat(context.Background(), "Alice")
	require.NoError(t, err)
	f.roundTrip()

	require.Equal(t, []eventbus.EventName{
		eventbus.EventUserJoined,
		eventbus.EventDisconnected,
	}, rec.Names())
}
