package hub

import (
	"context"
	"testing"
	"time"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/stretchr/testify/require"
)

func withResponder(probability float64) func(*config.SimulationConfig) {
	return func(s *config.SimulationConfig) {
		s.Responder = config.ResponderConfig{
			Enabled:     true,
			Probability: probability,
			MinDelay:    2 * time.Second,
			MaxDelay:    2 * time.Second,
			Peers:       []string{"Alex"},
			Replies:     []string{"Great point!"},
		}
	}
}

func TestResponder_PeerReplies(t *testing.T) {
	f := newFixture(t, withResponder(1))
	f.connect(t)
	rec := record(f.client, eventbus.EventReceiveMessage)

	_, err := f.client.SendMessage(context.Background(), "You", "What do you think?")
	require.NoError(t, err)

	f.roundTrip()
	require.Len(t, rec.Events(), 1)

	f.clock.Advance(2 * time.Second)
	events := rec.Events()
	require.Len(t, events, 2)

	reply := events[1].Data.(eventbus.MessagePayload)
	require.Equal(t, "Alex", reply.Sender)
	require.Equal(t, "Great point!", reply.Content)

	history := f.client.History()
	require.Len(t, history, 2)
	require.Equal(t, int64(2), history[1].ID)
	require.Equal(t, "Alex", history[1].Sender)
}

func TestResponder_NeverRepliesAtZeroProbability(t *testing.T) {
	f := newFixture(t, withResponder(0))
	f.connect(t)
	rec := record(f.client, eventbus.EventReceiveMessage)

	for i := 0; i < 5; i++ {
		_, err := f.client.SendMessage(context.Background(), "You", "anyone?")
		require.NoError(t, err)
	}
	f.clock.Advance(10 * time.Second)

	require.Len(t, rec.Events(), 5)
	require.Len(t, f.client.History(), 5)
}

func TestResponder_ReplyDroppedAfterDisconnect(t *testing.T) {
	f := newFixture(t, withResponder(1))
	f.connect(t)
	rec := record(f.client, eventbus.EventReceiveMessage)

	_, err := f.client.SendMessage(context.Background(), "You", "ping")
	require.NoError(t, err)
	f.roundTrip()

	f.client.Debug().SimulateDisconnect()
	f.clock.Advance(5 * time.Second)

	require.Len(t, rec.Events(), 1)
	require.Len(t, f.client.History(), 1)
}
