package hub

import (
	"slices"
	"time"

	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/pkg/domain"
)

// maybeRespond lets a simulated peer answer msg after a random delay
func (c *Client) maybeRespond(epoch uint64, msg domain.Message) {
	r := c.options.Simulation.Responder
	if !r.Enabled || len(r.Peers) == 0 || len(r.Replies) == 0 {
		return
	}
	if msg.Sender == domain.SystemSender || slices.Contains(r.Peers, msg.Sender) {
		return
	}

	c.mu.Lock()
	if c.rng.Float64() >= r.Probability {
		c.mu.Unlock()
		return
	}
	peer := r.Peers[c.rng.IntN(len(r.Peers))]
	reply := r.Replies[c.rng.IntN(len(r.Replies))]
	delay := r.MinDelay
	if spread := r.MaxDelay - r.MinDelay; spread > 0 {
		delay += time.Duration(c.rng.Int64N(int64(spread) + 1))
	}
	c.mu.Unlock()

	c.deferDispatch(epoch, delay, "responder", func() {
		answer := c.appendMessage(peer, reply, c.sched.Now())
		c.dispatch(eventbus.MessageReceived(answer.Sender, answer.Content, answer.Timestamp))
	})
}
