// Package events consumes domain events from kafka and turns them into
// notifications. This is the only way notifications enter the system; clients
// never create them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/config"
	"github.com/yourorg/taskboard/internal/hub"
	"github.com/yourorg/taskboard/internal/model"
)

// TodoEvent is the payload produced by the todo service on the todo-events
// topic.
type TodoEvent struct {
	TodoID    int64     `json:"todoId" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	Action    string    `json:"action" validate:"required,oneof=created updated completed due-soon"`
	UserID    int64     `json:"userId" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is the slice of the notification service the consumer drives.
type Notifier interface {
	Create(ctx context.Context, n *model.Notification) (int64, error)
}

// Pusher delivers a push event to every open channel of one user.
type Pusher interface {
	SendToUser(userID int64, event string, data interface{})
}

// Consumer reads todo events from kafka, persists a notification for the
// owning user, and fans the domain event out to the user's live channels.
type Consumer struct {
	reader        *kafka.Reader
	notifications Notifier
	pusher        Pusher
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewConsumer creates a consumer for the configured topic.
func NewConsumer(cfg config.KafkaConfig, notifications Notifier, pusher Pusher, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Consumer{
		reader:        reader,
		notifications: notifications,
		pusher:        pusher,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Run consumes until the context is cancelled. Broker errors retry with
// exponential backoff; malformed messages are logged, committed, and
// skipped.
func (c *Consumer) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := policy.NextBackOff()
			c.logger.Warn("failed to fetch domain event, retrying",
				zap.Error(err), zap.Duration("backoff", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		policy.Reset()

		if err := c.handle(ctx, msg.Value); err != nil {
			c.logger.Error("failed to process domain event",
				zap.Error(err), zap.ByteString("payload", msg.Value))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("failed to commit domain event offset", zap.Error(err))
		}
	}
}

// Close releases the kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var ev TodoEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("malformed event payload: %w", err)
	}
	if err := c.validate.Struct(&ev); err != nil {
		return fmt.Errorf("invalid event payload: %w", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	notification, pushEvent := translate(ev)
	if _, err := c.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if pushEvent != "" {
		c.pusher.SendToUser(ev.UserID, pushEvent, model.TodoUpdateMessage{
			TodoID:    ev.TodoID,
			Title:     ev.Title,
			Action:    ev.Action,
			Timestamp: ev.Timestamp,
		})
	}
	return nil
}

// translate maps a domain event onto a notification plus the domain push
// event name, empty for events with no live fan-out.
func translate(ev TodoEvent) (*model.Notification, string) {
	n := &model.Notification{
		UserID:    ev.UserID,
		TodoID:    &ev.TodoID,
		CreatedAt: ev.Timestamp,
	}

	switch ev.Action {
	case "created":
		n.Type = model.TypeTodoCreated
		n.Title = "Todo created"
		n.Message = fmt.Sprintf("%q was created", ev.Title)
		return n, hub.EventTodoCreated
	case "updated":
		n.Type = model.TypeTodoUpdated
		n.Title = "Todo updated"
		n.Message = fmt.Sprintf("%q was updated", ev.Title)
		return n, hub.EventTodoUpdated
	case "completed":
		n.Type = model.TypeTodoCompleted
		n.Title = "Todo completed"
		n.Message = fmt.Sprintf("%q was completed", ev.Title)
		return n, hub.EventTodoCompleted
	default: // due-soon
		n.Type = model.TypeDueDateReminder
		n.Title = "Due date approaching"
		n.Message = fmt.Sprintf("%q is due soon", ev.Title)
		return n, ""
	}
}
