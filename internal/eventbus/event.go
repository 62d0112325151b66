package eventbus

import (
	"time"

	"github.com/rs/xid"
)

// EventName identifies a hub event
type EventName string

// Event names dispatched by the hub. Subscribing to any other name is legal.
const (
	EventReceiveMessage  EventName = "ReceiveMessage"
	EventUserJoined      EventName = "UserJoined"
	EventUserLeft        EventName = "UserLeft"
	EventReceiveUserList EventName = "ReceiveUserList"
	EventDisconnected    EventName = "Disconnected"
	EventReconnected     EventName = "Reconnected"
)

// Names lists the recognized event names in protocol order
func Names() []EventName {
	return []EventName{
		EventReceiveMessage,
		EventUserJoined,
		EventUserLeft,
		EventReceiveUserList,
		EventDisconnected,
		EventReconnected,
	}
}

// Event represents a dispatched hub event
type Event struct {
	ID        string    `json:"id"`
	Name      EventName `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// MessagePayload is the data of ReceiveMessage
type MessagePayload struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserPayload is the data of UserJoined and UserLeft
type UserPayload struct {
	Username string `json:"username"`
}

// UserListPayload is the data of ReceiveUserList
type UserListPayload struct {
	Users []string `json:"users"`
}

// ConnectionPayload is the data of Disconnected and Reconnected
type ConnectionPayload struct {
	Reason string `json:"reason"`
}

// NewEvent creates a new event
func NewEvent(name EventName, at time.Time, data any) *Event {
	return &Event{
		ID:        xid.New().String(),
		Name:      name,
		Timestamp: at,
		Data:      data,
	}
}

// MessageReceived builds a ReceiveMessage event
func MessageReceived(sender, content string, at time.Time) *Event {
	return NewEvent(EventReceiveMessage, at, MessagePayload{Sender: sender, Content: content, Timestamp: at})
}

// UserJoined builds a UserJoined event
func UserJoined(username string, at time.Time) *Event {
	return NewEvent(EventUserJoined, at, UserPayload{Username: username})
}

// UserLeft builds a UserLeft event
func UserLeft(username string, at time.Time) *Event {
	return NewEvent(EventUserLeft, at, UserPayload{Username: username})
}

// UserList builds a ReceiveUserList event
func UserList(users []string, at time.Time) *Event {
	return NewEvent(EventReceiveUserList, at, UserListPayload{Users: users})
}

// Disconnected builds a Disconnected event
func Disconnected(reason string, at time.Time) *Event {
	return NewEvent(EventDisconnected, at, ConnectionPayload{Reason: reason})
}

// Reconnected builds a Reconnected event
func Reconnected(reason string, at time.Time) *Event {
	return NewEvent(EventReconnected, at, ConnectionPayload{Reason: reason})
}
