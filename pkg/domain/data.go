package domain

import (
	"time"
)

// SystemSender is the reserved sender name of hub-originated messages
const SystemSender = "System"

// Hub method names understood by Invoke
const (
	MethodJoinChat    = "JoinChat"
	MethodSendMessage = "SendMessage"
)

// User is a member of a session's roster
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is an immutable chat history entry. Sender is a name only; the
// sender may have left the roster since.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// JoinResult is returned by a successful JoinChat
type JoinResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

// SendResult is returned by a successful SendMessage
type SendResult struct {
	Success   bool  `json:"success"`
	MessageID int64 `json:"messageId"`
}
