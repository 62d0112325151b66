package domain

// ConnectionState represents the lifecycle state of a hub connection
type ConnectionState int

const (
	// StateDisconnected is the initial state and the end of every cycle
	StateDisconnected ConnectionState = iota
	// StateConnecting means a start is waiting on the simulated handshake
	StateConnecting
	// StateConnected means methods may be invoked
	StateConnected
	// StateDisconnecting means a stop is waiting on the simulated teardown
	StateDisconnecting
)

// String returns the string representation of a ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}
