package domain

import (
	"github.com/HMasataka/hubsim/pkg/errors"
)

// Hub errors. Compare with errors.Is; returned errors carry details but keep
// the sentinel's type and code.
var (
	// ErrNotConnected is returned when a method is invoked outside the Connected state
	ErrNotConnected = errors.New(errors.ErrorTypeConnection, "NOT_CONNECTED", "not connected")

	// ErrConnectionAborted is returned by a start that was overtaken by a stop
	ErrConnectionAborted = errors.New(errors.ErrorTypeConnection, "CONNECTION_ABORTED", "connection attempt aborted")

	// ErrInvalidArgument is returned for blank usernames, blank messages and malformed invoke args
	ErrInvalidArgument = errors.New(errors.ErrorTypeValidation, "INVALID_ARGUMENT", "invalid argument")

	// ErrUnknownMethod is reported, never returned, when Invoke gets a method the hub does not define
	ErrUnknownMethod = errors.New(errors.ErrorTypeProtocol, "UNKNOWN_METHOD", "unknown hub method")
)
