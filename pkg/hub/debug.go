package hub

import (
	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/pkg/domain"
)

const (
	disconnectReason = "Server connection lost"
	reconnectReason  = "Server connection restored"
)

// Debugger injects inbound events, bypassing Invoke, its latency and the
// connection-state check. Each trigger is queued on the scheduler's task
// queue with no delay, so its handlers never overlap other dispatches. With
// a Loop the trigger runs after work already queued and may not have run
// when the method returns; use Client.Enqueue to observe its effect.
type Debugger struct {
	c *Client
}

var _ domain.Debugger = (*Debugger)(nil)

// SimulateUserJoin adds username to the roster and dispatches UserJoined
func (d *Debugger) SimulateUserJoin(username string) {
	d.c.sched.Post(func() {
		if _, _, err := d.c.roster.Join(username); err != nil {
			d.c.errHandler.Handle(d.c.ctx, err)
			return
		}
		d.c.dispatch(eventbus.UserJoined(username, d.c.sched.Now()))
	})
}

// SimulateUserLeave removes username from the roster and dispatches UserLeft
func (d *Debugger) SimulateUserLeave(username string) {
	d.c.sched.Post(func() {
		d.c.roster.Leave(username)
		d.c.dispatch(eventbus.UserLeft(username, d.c.sched.Now()))
	})
}

// SimulateMessage dispatches ReceiveMessage without touching history
func (d *Debugger) SimulateMessage(username, content string) {
	d.c.sched.Post(func() {
		d.c.dispatch(eventbus.MessageReceived(username, content, d.c.sched.Now()))
	})
}

// SimulateUserList dispatches the current roster
func (d *Debugger) SimulateUserList() {
	d.c.sched.Post(func() {
		d.c.dispatch(eventbus.UserList(d.c.roster.List(), d.c.sched.Now()))
	})
}

// SimulateDisconnect drops the connection with no delay and dispatches Disconnected
func (d *Debugger) SimulateDisconnect() {
	d.c.sched.Post(func() {
		d.c.conn.ForceDisconnect()
		d.c.logger.Warn("simulated disconnect")
		d.c.dispatch(eventbus.Disconnected(disconnectReason, d.c.sched.Now()))
	})
}

// SimulateReconnect restores the connection with no delay and dispatches Reconnected
func (d *Debugger) SimulateReconnect() {
	d.c.sched.Post(func() {
		d.c.conn.ForceReconnect()
		d.c.logger.Info("simulated reconnect")
		d.c.dispatch(eventbus.Reconnected(reconnectReason, d.c.sched.Now()))
	})
}
