package realtime

import (
	"encoding/json"
)

// Server-to-client event names carried over the push channel.
const (
	EventReceiveNotification = "ReceiveNotification"
	EventReceiveUnreadCount  = "ReceiveUnreadCount"
	EventTodoCreated         = "TodoCreated"
	EventTodoUpdated         = "TodoUpdated"
	EventTodoCompleted       = "TodoCompleted"
)

// Envelope is the wire frame for every push event: a name plus a typed
// payload. One frame per event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
