package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
)

// Handler consumes the raw payload of one push event.
type Handler func(data json.RawMessage)

// Router maps event names to ordered collections of handlers. Every handler
// registered for an event is invoked, in registration order, each time that
// event arrives. There is no unregistration path; handlers live for the
// session. Registering the same handler twice causes duplicate invocation.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewRouter creates an empty event router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// On registers a handler for the named event.
func (r *Router) On(event string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], h)
}

// Dispatch invokes every handler registered for the event, in registration
// order, before returning. Events with no handlers are dropped.
func (r *Router) Dispatch(event string, data json.RawMessage) {
	r.mu.RLock()
	handlers := r.handlers[event]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Debug("no handlers for push event", zap.String("event", event))
		return
	}
	for _, h := range handlers {
		h(data)
	}
}

// OnReceiveNotification registers a typed handler for new-notification events.
func (r *Router) OnReceiveNotification(fn func(model.NotificationMessage)) {
	r.On(EventReceiveNotification, func(data json.RawMessage) {
		var msg model.NotificationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Warn("malformed notification payload", zap.Error(err))
			return
		}
		fn(msg)
	})
}

// OnReceiveUnreadCount registers a typed handler for unread-count events.
func (r *Router) OnReceiveUnreadCount(fn func(int)) {
	r.On(EventReceiveUnreadCount, func(data json.RawMessage) {
		var count int
		if err := json.Unmarshal(data, &count); err != nil {
			r.logger.Warn("malformed unread count payload", zap.Error(err))
			return
		}
		fn(count)
	})
}

// OnTodoCreated registers a typed handler for todo-created events.
func (r *Router) OnTodoCreated(fn func(model.TodoUpdateMessage)) {
	r.onTodoEvent(EventTodoCreated, fn)
}

// OnTodoUpdated registers a typed handler for todo-updated events.
func (r *Router) OnTodoUpdated(fn func(model.TodoUpdateMessage)) {
	r.onTodoEvent(EventTodoUpdated, fn)
}

// OnTodoCompleted registers a typed handler for todo-completed events.
func (r *Router) OnTodoCompleted(fn func(model.TodoUpdateMessage)) {
	r.onTodoEvent(EventTodoCompleted, fn)
}

func (r *Router) onTodoEvent(event string, fn func(model.TodoUpdateMessage)) {
	r.On(event, func(data json.RawMessage) {
		var msg model.TodoUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Warn("malformed todo event payload",
				zap.String("event", event), zap.Error(err))
			return
		}
		fn(msg)
	})
}
