package hub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/internal/scheduler"
	"github.com/HMasataka/hubsim/pkg/domain"
	"github.com/stretchr/testify/require"
)

func TestDebugger_UserLeaveIsImmediateWhileDisconnected(t *testing.T) {
	f := newFixture(t)
	rec := record(f.client)

	f.client.Debug().SimulateUserLeave("Carol")

	events := rec.Events()
	require.Len(t, events, 1)
	require.Equal(t, eventbus.EventUserLeft, events[0].Name)
	require.Equal(t, eventbus.UserPayload{Username: "Carol"}, events[0].Data)
	require.Equal(t, domain.StateDisconnected, f.client.State())
}

func TestDebugger_JoinLeaveMaintainRoster(t *testing.T) {
	f := newFixture(t)
	rec := record(f.client, eventbus.EventReceiveUserList)
	d := f.client.Debug()

	d.SimulateUserJoin("Alice")
	d.SimulateUserJoin("Bob")
	d.SimulateUserLeave("Alice")
	d.SimulateUserList()

	require.Equal(t, []string{"Bob"}, f.client.Users())
	require.Equal(t, eventbus.UserListPayload{Users: []string{"Bob"}}, rec.Events()[0].Data)
}

func TestDebugger_BlankJoinIsReportedNotDispatched(t *testing.T) {
	f := newFixture(t)
	rec := record(f.client)

	f.client.Debug().SimulateUserJoin(" ")

	require.Empty(t, rec.Events())
	require.Len(t, f.errs.Errors(), 1)
	require.ErrorIs(t, f.errs.Errors()[0], domain.ErrInvalidArgument)
}

func TestDebugger_MessageSkipsHistory(t *testing.T) {
	f := newFixture(t)
	rec := record(f.client, eventbus.EventReceiveMessage)

	f.client.Debug().SimulateMessage("TestUser7", "This is a test message")

	require.Len(t, rec.Events(), 1)
	require.Equal(t, eventbus.MessagePayload{
		Sender:    "TestUser7",
		Content:   "This is a test message",
		Timestamp: start,
	}, rec.Events()[0].Data)
	require.Empty(t, f.client.History())
}

func TestDebugger_DisconnectReconnect(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	var states []domain.ConnectionState
	f.client.On(eventbus.EventDisconnected, func(*eventbus.Event) { states = append(states, f.client.State()) })
	f.client.On(eventbus.EventReconnected, func(*eventbus.Event) { states = append(states, f.client.State()) })
	rec := record(f.client, eventbus.EventDisconnected, eventbus.EventReconnected)

	f.client.Debug().SimulateDisconnect()
	f.client.Debug().SimulateReconnect()

	require.Equal(t, []domain.ConnectionState{domain.StateDisconnected, domain.StateConnected}, states)

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, eventbus.ConnectionPayload{Reason: "Server connection lost"}, events[0].Data)
	require.Equal(t, eventbus.ConnectionPayload{Reason: "Server connection restored"}, events[1].Data)
}

func TestDebugger_HandlersNeverOverlapOnLoop(t *testing.T) {
	loop := scheduler.NewLoop(16, logging.Discard())
	loop.Start(context.Background())
	t.Cleanup(loop.Stop)

	sim := config.DefaultSimulation()
	sim.ConnectDelay = 5 * time.Millisecond
	sim.DisconnectDelay = 5 * time.Millisecond
	sim.RoundTripDelay = 5 * time.Millisecond

	client := NewClient(Options{
		Simulation: sim,
		Logger:     logging.Discard(),
		Scheduler:  loop,
	})
	t.Cleanup(func() { _ = client.Close() })

	var running, maxRunning, calls atomic.Int32
	entered := make(chan struct{}, 2)
	client.On(eventbus.EventReceiveMessage, func(*eventbus.Event) {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		entered <- struct{}{}
		time.Sleep(50 * time.Millisecond)
		running.Add(-1)
		calls.Add(1)
	})

	ctx := context.Background()
	require.NoError(t, client.StartConnection(ctx))
	_, err := client.SendMessage(ctx, "Alice", "hello")
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(time.Second):
		require.Fail(t, "message was not dispatched")
	}
	client.Debug().SimulateMessage("Bob", "hi")

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, time.Millisecond)
	require.Equal(t, int32(1), maxRunning.Load())
}

func TestDebugger_EnqueueObservesTrigger(t *testing.T) {
	loop := scheduler.NewLoop(16, logging.Discard())
	loop.Start(context.Background())
	t.Cleanup(loop.Stop)

	client := NewClient(Options{Logger: logging.Discard(), Scheduler: loop})
	t.Cleanup(func() { _ = client.Close() })

	client.Debug().SimulateReconnect()

	settled := make(chan domain.ConnectionState, 1)
	client.Enqueue(func() { settled <- client.State() })

	select {
	case state := <-settled:
		require.Equal(t, domain.StateConnected, state)
	case <-time.After(time.Second):
		require.Fail(t, "enqueued work did not run")
	}
}
