package protocol

import (
	"encoding/json"
	"time"

	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/rs/xid"
)

// Version is the bridge frame format version
const Version = "1.0"

// FrameType represents the kind of bridge frame
type FrameType string

const (
	// FrameInvoke carries a hub method call from the browser
	FrameInvoke FrameType = "invoke"
	// FrameControl carries a lifecycle or debug action from the browser
	FrameControl FrameType = "control"
	// FrameResult answers an invoke or control frame
	FrameResult FrameType = "result"
	// FrameEvent carries a hub event to the browser
	FrameEvent FrameType = "event"
)

// Control actions
const (
	ActionStart              = "start"
	ActionStop               = "stop"
	ActionSimulateJoin       = "simulate_join"
	ActionSimulateLeave      = "simulate_leave"
	ActionSimulateMessage    = "simulate_message"
	ActionSimulateUserList   = "simulate_user_list"
	ActionSimulateDisconnect = "simulate_disconnect"
	ActionSimulateReconnect  = "simulate_reconnect"
)

// Frame represents a transport-level message frame
type Frame struct {
	Version   string          `json:"version"`
	Type      FrameType       `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// InvokePayload is the payload of an invoke frame
type InvokePayload struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// ControlPayload is the payload of a control frame
type ControlPayload struct {
	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`
}

// ResultPayload is the payload of a result frame
type ResultPayload struct {
	ReplyTo string        `json:"reply_to"`
	Result  any           `json:"result"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload describes a failed invoke or control frame
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// EventPayload is the payload of an event frame
type EventPayload struct {
	Name eventbus.EventName `json:"name"`
	Data any                `json:"data"`
}

// NewFrame creates a new frame
func NewFrame(frameType FrameType, payload any) (*Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Version:   Version,
		Type:      frameType,
		ID:        xid.New().String(),
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// EventFrame wraps a hub event
func EventFrame(event *eventbus.Event) (*Frame, error) {
	f, err := NewFrame(FrameEvent, EventPayload{Name: event.Name, Data: event.Data})
	if err != nil {
		return nil, err
	}
	f.ID = event.ID
	f.Timestamp = event.Timestamp
	return f, nil
}

// Decode decodes the frame payload into the provided value
func (f *Frame) Decode(v any) error {
	return json.Unmarshal(f.Payload, v)
}

// Marshal marshals the frame to bytes
func (f *Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// Unmarshal unmarshals bytes into a frame
func Unmarshal(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
