package websocket

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/pkg/domain"
	"github.com/HMasataka/hubsim/pkg/errors"
	"github.com/HMasataka/hubsim/pkg/hub"
	"github.com/HMasataka/hubsim/pkg/transport/protocol"
)

const lifecycleTimeout = 30 * time.Second

// Session binds one browser socket to one hub client
type Session struct {
	id       string
	hub      *hub.Client
	conn     *Conn
	registry protocol.HandlerRegistry
	logger   *logging.Logger
	subs     map[eventbus.EventName]eventbus.SubscriptionID
}

// NewSession forwards every recognized hub event to conn and routes inbound
// invoke and control frames to client
func NewSession(id string, client *hub.Client, conn *Conn, logger *logging.Logger) *Session {
	s := &Session{
		id:       id,
		hub:      client,
		conn:     conn,
		registry: protocol.NewHandlerRegistry(),
		logger:   logger.WithFields(map[string]any{"session_id": id}),
		subs:     make(map[eventbus.EventName]eventbus.SubscriptionID),
	}

	s.registry.Register(protocol.FrameInvoke, protocol.HandlerFunc(s.handleInvoke))
	s.registry.Register(protocol.FrameControl, protocol.HandlerFunc(s.handleControl))

	for _, name := range eventbus.Names() {
		s.subs[name] = client.On(name, s.forward)
	}

	conn.OnMessage(s.handleMessage)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Close unsubscribes from the hub and closes it
func (s *Session) Close() error {
	for name, id := range s.subs {
		s.hub.Off(name, id)
	}
	return s.hub.Close()
}

func (s *Session) forward(event *eventbus.Event) {
	frame, err := protocol.EventFrame(event)
	if err != nil {
		s.logger.Error("failed to encode event", "event", event.Name, "error", err)
		return
	}
	s.send(frame)
}

func (s *Session) send(frame *protocol.Frame) {
	data, err := frame.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal frame", "type", frame.Type, "error", err)
		return
	}

	if err := s.conn.Send(context.Background(), data); err != nil {
		s.logger.Debug("frame dropped", "type", frame.Type, "error", err)
	}
}

func (s *Session) handleMessage(message []byte) error {
	frame, err := protocol.Unmarshal(message)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeProtocol, "INVALID_FRAME", "failed to unmarshal frame")
	}

	ctx := logging.WithLogger(context.Background(), s.logger)
	response, err := s.registry.Handle(ctx, frame)
	if err != nil {
		s.reply(frame.ID, nil, err)
		return nil
	}
	if response != nil {
		s.send(response)
	}
	return nil
}

func (s *Session) handleInvoke(ctx context.Context, frame *protocol.Frame) (*protocol.Frame, error) {
	var payload protocol.InvokePayload
	if err := frame.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeProtocol, "INVALID_PAYLOAD", "invalid invoke payload")
	}

	result, err := s.hub.Invoke(ctx, payload.Method, payload.Args...)
	return resultFrame(frame.ID, result, err)
}

func (s *Session) handleControl(ctx context.Context, frame *protocol.Frame) (*protocol.Frame, error) {
	var payload protocol.ControlPayload
	if err := frame.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeProtocol, "INVALID_PAYLOAD", "invalid control payload")
	}

	debug := s.hub.Debug()
	arg := func(i int) string {
		if i < len(payload.Args) {
			return payload.Args[i]
		}
		return ""
	}

	switch payload.Action {
	case protocol.ActionStart, protocol.ActionStop:
		// The handshake takes simulated time; answer when it settles so the
		// read pump keeps serving frames meanwhile.
		go s.lifecycle(frame.ID, payload.Action)
		return nil, nil
	case protocol.ActionSimulateJoin:
		debug.SimulateUserJoin(arg(0))
	case protocol.ActionSimulateLeave:
		debug.SimulateUserLeave(arg(0))
	case protocol.ActionSimulateMessage:
		debug.SimulateMessage(arg(0), arg(1))
	case protocol.ActionSimulateUserList:
		debug.SimulateUserList()
	case protocol.ActionSimulateDisconnect:
		debug.SimulateDisconnect()
	case protocol.ActionSimulateReconnect:
		debug.SimulateReconnect()
	default:
		return nil, domain.ErrInvalidArgument.WithDetails("unknown control action " + payload.Action)
	}

	// Debug triggers run on the hub's task queue; answer behind them so the
	// result follows their events and reports the state they left.
	s.hub.Enqueue(func() {
		s.reply(frame.ID, s.hub.State().String(), nil)
	})
	return nil, nil
}

func (s *Session) lifecycle(replyTo, action string) {
	ctx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()

	var err error
	if action == protocol.ActionStart {
		err = s.hub.StartConnection(ctx)
	} else {
		err = s.hub.StopConnection(ctx)
	}

	s.reply(replyTo, s.hub.State().String(), err)
}

func (s *Session) reply(replyTo string, result any, err error) {
	frame, ferr := resultFrame(replyTo, result, err)
	if ferr != nil {
		s.logger.Error("failed to encode result", "error", ferr)
		return
	}
	s.send(frame)
}

func resultFrame(replyTo string, result any, err error) (*protocol.Frame, error) {
	payload := protocol.ResultPayload{ReplyTo: replyTo, Result: result}
	if err != nil {
		payload.Result = nil
		payload.Error = errorPayload(err)
	}
	return protocol.NewFrame(protocol.FrameResult, payload)
}

func errorPayload(err error) *protocol.ErrorPayload {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return &protocol.ErrorPayload{Code: e.Code, Message: e.Message, Details: e.Details}
	}
	return &protocol.ErrorPayload{Code: "INTERNAL", Message: err.Error()}
}
