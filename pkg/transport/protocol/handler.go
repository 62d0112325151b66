package protocol

import (
	"context"

	"github.com/HMasataka/hubsim/pkg/errors"
)

// ErrUnknownFrame is returned for frame types without a handler
var ErrUnknownFrame = errors.New(errors.ErrorTypeProtocol, "UNKNOWN_FRAME", "no handler for frame type")

// Handler defines the interface for handling bridge frames
type Handler interface {
	// Handle processes a frame and returns a response, if any
	Handle(ctx context.Context, frame *Frame) (*Frame, error)

	// CanHandle checks if the handler can handle a specific frame type
	CanHandle(frameType FrameType) bool
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, frame *Frame) (*Frame, error)

// HandlerRegistry manages frame handlers
type HandlerRegistry interface {
	// Register registers a handler for a frame type
	Register(frameType FrameType, handler Handler)

	// Get retrieves a handler for a frame type
	Get(frameType FrameType) (Handler, bool)

	// Handle routes a frame to the appropriate handler
	Handle(ctx context.Context, frame *Frame) (*Frame, error)
}

// DefaultHandlerRegistry is the default implementation of HandlerRegistry
type DefaultHandlerRegistry struct {
	handlers map[FrameType]Handler
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *DefaultHandlerRegistry {
	return &DefaultHandlerRegistry{
		handlers: make(map[FrameType]Handler),
	}
}

// Register implements HandlerRegistry
func (r *DefaultHandlerRegistry) Register(frameType FrameType, handler Handler) {
	r.handlers[frameType] = handler
}

// Get implements HandlerRegistry
func (r *DefaultHandlerRegistry) Get(frameType FrameType) (Handler, bool) {
	handler, ok := r.handlers[frameType]
	return handler, ok
}

// Handle implements HandlerRegistry
func (r *DefaultHandlerRegistry) Handle(ctx context.Context, frame *Frame) (*Frame, error) {
	handler, ok := r.Get(frame.Type)
	if !ok || !handler.CanHandle(frame.Type) {
		return nil, ErrUnknownFrame.WithDetails(string(frame.Type))
	}

	return handler.Handle(ctx, frame)
}

// Handle lets a HandlerFunc serve as a Handler for any frame type
func (f HandlerFunc) Handle(ctx context.Context, frame *Frame) (*Frame, error) {
	return f(ctx, frame)
}

// CanHandle implements Handler
func (f HandlerFunc) CanHandle(FrameType) bool {
	return true
}
