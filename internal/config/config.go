package config

import (
	"time"

	"github.com/HMasataka/hubsim/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Logging    logging.Config   `json:"logging" yaml:"logging"`
}

// ServerConfig represents the demo bridge server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// SimulationConfig represents the simulated hub timings and chatter
type SimulationConfig struct {
	ConnectDelay         time.Duration   `json:"connect_delay" yaml:"connect_delay"`
	DisconnectDelay      time.Duration   `json:"disconnect_delay" yaml:"disconnect_delay"`
	RoundTripDelay       time.Duration   `json:"round_trip_delay" yaml:"round_trip_delay"`
	AnnouncementInterval time.Duration   `json:"announcement_interval" yaml:"announcement_interval"`
	Announcements        []string        `json:"announcements" yaml:"announcements"`
	Responder            ResponderConfig `json:"responder" yaml:"responder"`
	InitialMessages      []SeedMessage   `json:"initial_messages" yaml:"initial_messages"`
}

// ResponderConfig configures simulated peers replying to chat messages
type ResponderConfig struct {
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	Probability float64       `json:"probability" yaml:"probability"`
	MinDelay    time.Duration `json:"min_delay" yaml:"min_delay"`
	MaxDelay    time.Duration `json:"max_delay" yaml:"max_delay"`
	Peers       []string      `json:"peers" yaml:"peers"`
	Replies     []string      `json:"replies" yaml:"replies"`
}

// SeedMessage is a history entry present before anyone connects.
// Age is how long before session creation it was sent.
type SeedMessage struct {
	Sender  string        `json:"sender" yaml:"sender"`
	Content string        `json:"content" yaml:"content"`
	Age     time.Duration `json:"age" yaml:"age"`
}

// UserCountPlaceholder is replaced by the roster size in announcements
const UserCountPlaceholder = "{users}"

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Simulation: DefaultSimulation(),
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultSimulation returns the default simulation settings
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		ConnectDelay:         time.Second,
		DisconnectDelay:      500 * time.Millisecond,
		RoundTripDelay:       500 * time.Millisecond,
		AnnouncementInterval: time.Minute,
		Announcements: []string{
			"Server will be restarting in 30 minutes for maintenance.",
			"There are currently " + UserCountPlaceholder + " users online.",
			"New features have been added to the chat!",
			"Remember to be kind to each other.",
		},
		Responder: ResponderConfig{
			Enabled:     false,
			Probability: 0.5,
			MinDelay:    2 * time.Second,
			MaxDelay:    7 * time.Second,
			Peers:       []string{"Alex", "Jamie", "Taylor"},
			Replies: []string{
				"That's interesting!",
				"I agree with that.",
				"Could you explain more?",
				"Thanks for sharing that.",
				"I have a different perspective on this.",
				"Great point!",
			},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	return c.Simulation.Validate()
}

// Validate validates the simulation settings
func (s SimulationConfig) Validate() error {
	if s.ConnectDelay < 0 {
		return NewConfigError("simulation.connect_delay", "delay cannot be negative")
	}

	if s.DisconnectDelay < 0 {
		return NewConfigError("simulation.disconnect_delay", "delay cannot be negative")
	}

	if s.RoundTripDelay < 0 {
		return NewConfigError("simulation.round_trip_delay", "delay cannot be negative")
	}

	if s.AnnouncementInterval <= 0 {
		return NewConfigError("simulation.announcement_interval", "interval must be positive")
	}

	if len(s.Announcements) == 0 {
		return NewConfigError("simulation.announcements", "at least one announcement is required")
	}

	r := s.Responder
	if !r.Enabled {
		return nil
	}

	if r.Probability < 0 || r.Probability > 1 {
		return NewConfigError("simulation.responder.probability", "probability must be within [0, 1]")
	}

	if r.MinDelay < 0 || r.MaxDelay < r.MinDelay {
		return NewConfigError("simulation.responder.max_delay", "delay range is invalid")
	}

	if len(r.Peers) == 0 || len(r.Replies) == 0 {
		return NewConfigError("simulation.responder", "peers and replies are required")
	}

	return nil
}
