package model

import (
	"time"
)

// NotificationType identifies what triggered a notification.
type NotificationType int

const (
	TypeDueDateReminder NotificationType = iota + 1
	TypeTodoCreated
	TypeTodoUpdated
	TypeTodoCompleted
	TypeSystemMessage
)

// DisplayName returns the human-readable name for a notification type.
func (t NotificationType) DisplayName() string {
	switch t {
	case TypeDueDateReminder:
		return "Due date reminder"
	case TypeTodoCreated:
		return "Todo created"
	case TypeTodoUpdated:
		return "Todo updated"
	case TypeTodoCompleted:
		return "Todo completed"
	case TypeSystemMessage:
		return "System message"
	default:
		return "Unknown"
	}
}

// NotificationStatus tracks the read state of a notification.
// Transitions only move forward: unread -> read -> archived.
type NotificationStatus int

const (
	StatusUnread NotificationStatus = iota + 1
	StatusRead
	StatusArchived
)

// DisplayName returns the human-readable name for a notification status.
func (s NotificationStatus) DisplayName() string {
	switch s {
	case StatusUnread:
		return "Unread"
	case StatusRead:
		return "Read"
	case StatusArchived:
		return "Archived"
	default:
		return "Unknown"
	}
}

// Notification represents a server-originated notification for one user.
type Notification struct {
	ID         int64              `json:"id" db:"id"`
	UserID     int64              `json:"-" db:"user_id"`
	Title      string             `json:"title" db:"title"`
	Message    string             `json:"message,omitempty" db:"message"`
	Type       NotificationType   `json:"type" db:"type"`
	TypeName   string             `json:"typeName" db:"-"`
	Status     NotificationStatus `json:"status" db:"status"`
	StatusName string             `json:"statusName" db:"-"`
	TodoID     *int64             `json:"todoId,omitempty" db:"todo_id"`
	CreatedAt  time.Time          `json:"createdAt" db:"created_at"`
	ReadAt     *time.Time         `json:"readAt,omitempty" db:"read_at"`
}

// Decorate fills the derived display-name fields before serialization.
func (n *Notification) Decorate() {
	n.TypeName = n.Type.DisplayName()
	n.StatusName = n.Status.DisplayName()
}

// NotificationMessage is the push payload delivered over the hub when a
// notification is created. It carries no status field; a freshly delivered
// notification is by definition unread.
type NotificationMessage struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	Type      NotificationType `json:"type"`
	TypeName  string           `json:"typeName"`
	TodoID    *int64           `json:"todoId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// TodoUpdateMessage is the push payload for domain item events.
type TodoUpdateMessage struct {
	TodoID    int64     `json:"todoId"`
	Title     string    `json:"title"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// PagedNotificationResult is one page of a user's notification list,
// newest-first, with enough metadata to drive "load more".
type PagedNotificationResult struct {
	Items      []Notification `json:"items"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
