package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
	"github.com/yourorg/taskboard/internal/realtime"
)

// NotificationRepo is the persistence surface the notification service needs.
type NotificationRepo interface {
	Insert(ctx context.Context, n *model.Notification) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, int, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int, error)
	Delete(ctx context.Context, userID, id int64) (bool, error)
}

// Pusher delivers a push event to every open channel of one user.
type Pusher interface {
	SendToUser(userID int64, event string, data interface{})
}

// NotificationService owns the notification lifecycle: persist, push to the
// owner's live channels, and keep other sessions of the same user converged
// by pushing a fresh unread count after every mutation.
type NotificationService struct {
	repo     NotificationRepo
	pusher   Pusher
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewNotificationService creates a new notification service. cache may be
// nil; unread counts then always hit the database.
func NewNotificationService(repo NotificationRepo, pusher Pusher, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:     repo,
		pusher:   pusher,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// List retrieves one page of a user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int64, page, pageSize int) (*model.PagedNotificationResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	items, total, err := s.repo.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Decorate()
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &model.PagedNotificationResult{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// UnreadCount retrieves the user's unread count, via the cache when enabled.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	if s.cache != nil {
		count, err := s.cache.Get(ctx, s.countKey(userID)).Int()
		if err == nil {
			return count, nil
		}
		if err != redis.Nil {
			s.logger.Warn("unread count cache read failed", zap.Error(err))
		}
	}

	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.countKey(userID), count, s.cacheTTL).Err(); err != nil {
			s.logger.Warn("unread count cache write failed", zap.Error(err))
		}
	}
	return count, nil
}

// Create persists a new notification for a user and pushes it, plus the
// recomputed unread count, to the user's live channels.
func (s *NotificationService) Create(ctx context.Context, n *model.Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.Status = model.StatusUnread

	id, err := s.repo.Insert(ctx, n)
	if err != nil {
		return 0, err
	}
	n.ID = id
	n.Decorate()
	s.invalidateCount(ctx, n.UserID)

	s.pusher.SendToUser(n.UserID, realtime.EventReceiveNotification, model.NotificationMessage{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		TypeName:  n.TypeName,
		TodoID:    n.TodoID,
		CreatedAt: n.CreatedAt,
	})
	s.pushUnreadCount(ctx, n.UserID)

	return id, nil
}

// MarkRead marks one notification as read and pushes the new unread count.
// Returns false when the notification does not belong to the user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil || !ok {
		return ok, err
	}
	s.invalidateCount(ctx, userID)
	s.pushUnreadCount(ctx, userID)
	return true, nil
}

// MarkAllRead marks every notification of the user as read and pushes the
// new unread count.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidateCount(ctx, userID)
	s.pushUnreadCount(ctx, userID)
	return count, nil
}

// Delete removes one notification and pushes the new unread count. Returns
// false when the notification does not belong to the user.
func (s *NotificationService) Delete(ctx context.Context, userID, id int64) (bool, error) {
	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil || !ok {
		return ok, err
	}
	s.invalidateCount(ctx, userID)
	s.pushUnreadCount(ctx, userID)
	return true, nil
}

// pushUnreadCount sends the authoritative unread count to the user's live
// channels. Failures are logged only; push delivery is best-effort and the
// client reconciles on its next fetch.
func (s *NotificationService) pushUnreadCount(ctx context.Context, userID int64) {
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to compute unread count for push",
			zap.Error(err), zap.Int64("userID", userID))
		return
	}
	s.pusher.SendToUser(userID, realtime.EventReceiveUnreadCount, count)
}

func (s *NotificationService) invalidateCount(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.countKey(userID)).Err(); err != nil {
		s.logger.Warn("unread count cache invalidation failed", zap.Error(err))
	}
}

func (s *NotificationService) countKey(userID int64) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}
