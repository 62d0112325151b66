package websocket

import (
	"net/http"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/internal/scheduler"
	"github.com/HMasataka/hubsim/pkg/errors"
)

// ServerOptions represents websocket server options
type ServerOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Logger          *logging.Logger
	Simulation      config.SimulationConfig
	Scheduler       scheduler.Scheduler
	ErrorHandler    errors.Handler
	Conn            ConnOptions
}

// ServerOption is a function that configures ServerOptions
type ServerOption func(*ServerOptions)

// WithLogger sets the logger for the server
func WithLogger(logger *logging.Logger) ServerOption {
	return func(o *ServerOptions) {
		o.Logger = logger
	}
}

// WithSimulation sets the settings every session's hub is created with
func WithSimulation(simulation config.SimulationConfig) ServerOption {
	return func(o *ServerOptions) {
		o.Simulation = simulation
	}
}

// WithScheduler shares one scheduler between all sessions
func WithScheduler(sched scheduler.Scheduler) ServerOption {
	return func(o *ServerOptions) {
		o.Scheduler = sched
	}
}

// WithErrorHandler sets the error handler passed to each hub
func WithErrorHandler(handler errors.Handler) ServerOption {
	return func(o *ServerOptions) {
		o.ErrorHandler = handler
	}
}

// WithCheckOrigin sets the check origin function
func WithCheckOrigin(checkOrigin func(r *http.Request) bool) ServerOption {
	return func(o *ServerOptions) {
		o.CheckOrigin = checkOrigin
	}
}

// WithConnOptions sets the per-socket pump settings
func WithConnOptions(conn ConnOptions) ServerOption {
	return func(o *ServerOptions) {
		o.Conn = conn
	}
}
