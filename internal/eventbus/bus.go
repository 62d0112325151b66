package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/pkg/errors"
)

// Handler represents an event handler function
type Handler func(event *Event)

// SubscriptionID identifies one registration of a handler. Go funcs are not
// comparable, so Off removes by this id rather than by the func itself.
type SubscriptionID uint64

// Bus represents an ordered event registry
type Bus interface {
	// On appends a handler for an event name
	On(name EventName, handler Handler) SubscriptionID

	// Off removes a subscription, if present
	Off(name EventName, id SubscriptionID)

	// Dispatch invokes every handler of the event's name in registration order
	Dispatch(ctx context.Context, event *Event)

	// Count returns the number of handlers registered for a name
	Count(name EventName) int
}

// subscription represents a single subscription
type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Registry is the in-memory implementation of Bus
type Registry struct {
	subscribers map[EventName][]*subscription
	mu          sync.RWMutex
	nextID      atomic.Uint64
	logger      *logging.Logger
	errHandler  errors.Handler
}

// NewRegistry creates a new registry. Panicking handlers are reported to
// errHandler; a nil errHandler logs through logger.
func NewRegistry(logger *logging.Logger, errHandler errors.Handler) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	if errHandler == nil {
		errHandler = errors.NewDefaultHandler(logger.Logger)
	}

	return &Registry{
		subscribers: make(map[EventName][]*subscription),
		logger:      logger,
		errHandler:  errHandler,
	}
}

// On implements Bus
func (r *Registry) On(name EventName, handler Handler) SubscriptionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &subscription{
		id:      SubscriptionID(r.nextID.Add(1)),
		handler: handler,
	}

	r.subscribers[name] = append(r.subscribers[name], sub)
	r.logger.Debug("registered handler", "event", name, "subscription", sub.id)
	return sub.id
}

// Off implements Bus
func (r *Registry) Off(name EventName, id SubscriptionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subscribers[name]
	if !ok {
		return
	}

	for i, sub := range subs {
		if sub.id == id {
			// copy so a dispatch holding the old snapshot is unaffected
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			r.subscribers[name] = next
			r.logger.Debug("removed handler", "event", name, "subscription", id)
			return
		}
	}
}

// Dispatch implements Bus. Handlers run on the caller's goroutine, outside
// the registry lock, so they may call On and Off.
func (r *Registry) Dispatch(ctx context.Context, event *Event) {
	r.mu.RLock()
	subs := r.subscribers[event.Name]
	r.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	for _, sub := range subs {
		r.invoke(ctx, sub, event)
	}
}

// Count implements Bus
func (r *Registry) Count(name EventName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[name])
}

// invoke runs one handler, isolating panics
func (r *Registry) invoke(ctx context.Context, sub *subscription, event *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			err := errors.New(errors.ErrorTypeInternal, "HANDLER_PANIC", "event handler panicked").
				WithDetails(fmt.Sprintf("event=%s subscription=%d: %v", event.Name, sub.id, rec))
			r.errHandler.Handle(ctx, err)
		}
	}()

	sub.handler(event)
}
