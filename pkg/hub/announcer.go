package hub

import (
	"strconv"
	"strings"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/pkg/domain"
)

// startAnnouncerLocked must be called with mu held
func (c *Client) startAnnouncerLocked() {
	if c.announcer != nil {
		return
	}
	c.announcer = c.sched.Every(c.options.Simulation.AnnouncementInterval, c.announce)
}

// announce sends server chatter while connected and somebody is listening
func (c *Client) announce() {
	if !c.conn.IsConnected() {
		return
	}

	users := c.roster.Len()
	if users == 0 {
		return
	}

	c.mu.Lock()
	pool := c.options.Simulation.Announcements
	text := pool[c.rng.IntN(len(pool))]
	c.mu.Unlock()

	text = strings.ReplaceAll(text, config.UserCountPlaceholder, strconv.Itoa(users))
	c.dispatch(eventbus.MessageReceived(domain.SystemSender, text, c.sched.Now()))
}
