package hub

import (
	"context"
	"fmt"
	"strings"

	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/pkg/domain"
)

// Invoke calls a hub method by name. JoinChat and SendMessage take string
// arguments; any other method name is reported as a warning and yields a
// nil result and nil error.
func (c *Client) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	c.logger.Debug("invoke", "method", method, "args", len(args))

	if _, err := c.requireConnected(method); err != nil {
		return nil, err
	}

	switch method {
	case domain.MethodJoinChat:
		s, err := stringArgs(method, args, 1)
		if err != nil {
			return nil, err
		}
		res, err := c.JoinChat(ctx, s[0])
		if err != nil {
			return nil, err
		}
		return res, nil

	case domain.MethodSendMessage:
		s, err := stringArgs(method, args, 2)
		if err != nil {
			return nil, err
		}
		res, err := c.SendMessage(ctx, s[0], s[1])
		if err != nil {
			return nil, err
		}
		return res, nil

	default:
		c.errHandler.Handle(ctx, domain.ErrUnknownMethod.WithDetails(method))
		return nil, nil
	}
}

// JoinChat adds username to the roster. After the round-trip delay it
// dispatches UserJoined, a System welcome ReceiveMessage and ReceiveUserList,
// in that order. Joining twice under one name is idempotent.
func (c *Client) JoinChat(ctx context.Context, username string) (*domain.JoinResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	epoch, err := c.requireConnected(domain.MethodJoinChat)
	if err != nil {
		return nil, err
	}

	user, added, err := c.roster.Join(username)
	if err != nil {
		return nil, err
	}

	welcome := fmt.Sprintf("Welcome, %s! There are %d users online.", username, c.roster.Len())
	c.logger.Info("user joined", "username", username, "user_id", user.ID, "new", added)

	c.deferDispatch(epoch, c.options.Simulation.RoundTripDelay, domain.MethodJoinChat, func() {
		now := c.sched.Now()
		c.dispatch(eventbus.UserJoined(username, now))
		// a UserJoined handler may have dropped the connection
		if !c.conn.IsCurrent(epoch) {
			return
		}
		c.dispatch(eventbus.MessageReceived(domain.SystemSender, welcome, now))
		if !c.conn.IsCurrent(epoch) {
			return
		}
		c.dispatch(eventbus.UserList(c.roster.List(), now))
	})

	return &domain.JoinResult{Success: true, UserID: user.ID}, nil
}

// SendMessage appends a message to history and, after the round-trip delay,
// dispatches ReceiveMessage. The message is in History before SendMessage
// returns. Ordering between concurrent calls is best effort: each dispatch
// happens after its own delay, so equal delays follow call order but nothing
// stronger is promised.
func (c *Client) SendMessage(ctx context.Context, username, content string) (*domain.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	epoch, err := c.requireConnected(domain.MethodSendMessage)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(username) == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("username must not be blank")
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("message content must not be blank")
	}

	msg := c.appendMessage(username, content, c.sched.Now())
	c.logger.Debug("message accepted", "message_id", msg.ID, "sender", username)

	c.deferDispatch(epoch, c.options.Simulation.RoundTripDelay, domain.MethodSendMessage, func() {
		c.dispatch(eventbus.MessageReceived(msg.Sender, msg.Content, msg.Timestamp))
		c.maybeRespond(epoch, msg)
	})

	return &domain.SendResult{Success: true, MessageID: msg.ID}, nil
}

// requireConnected returns the current epoch, or ErrNotConnected
func (c *Client) requireConnected(method string) (uint64, error) {
	epoch := c.conn.Epoch()
	if !c.conn.IsCurrent(epoch) {
		return 0, domain.ErrNotConnected.WithDetails(
			fmt.Sprintf("cannot invoke %s while %s", method, c.conn.State()))
	}
	return epoch, nil
}

func stringArgs(method string, args []any, n int) ([]string, error) {
	if len(args) != n {
		return nil, domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("%s expects %d arguments, got %d", method, n, len(args)))
	}

	out := make([]string, n)
	for i, arg := range args {
		s, ok := arg.(string)
		if !ok {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("%s argument %d must be a string, got %T", method, i, arg))
		}
		out[i] = s
	}
	return out, nil
}
