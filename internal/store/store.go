// Package store holds the session-scoped notification view: one in-memory
// model reconciling the push-driven and pull-driven pictures of the user's
// notifications. The server is authoritative; everything here is a
// best-effort cache that converges on the next push or fetch.
package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
	"github.com/yourorg/taskboard/internal/realtime"
)

// API is the slice of the notification REST surface the store drives.
type API interface {
	Notifications(ctx context.Context, page, pageSize int) (*model.PagedNotificationResult, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id int64) error
}

// Store is the local notification state shared by every widget in a session.
// The list is keyed by notification id and ordered newest-first, so an item
// learned both via push and via a later page fetch appears exactly once.
type Store struct {
	api    API
	logger *zap.Logger

	mu         sync.Mutex
	order      []int64
	items      map[int64]*model.Notification
	unread     int
	page       int
	pageSize   int
	totalPages int
	totalCount int
}

// New creates an empty store backed by the given REST client.
func New(api API, logger *zap.Logger) *Store {
	return &Store{
		api:    api,
		logger: logger,
		items:  make(map[int64]*model.Notification),
	}
}

// Bind registers the store's push handlers on the event router. Server pushes
// are authoritative: a pushed unread count overwrites whatever a fetch or an
// optimistic update left behind.
func (s *Store) Bind(router *realtime.Router) {
	router.OnReceiveNotification(s.ApplyPush)
	router.OnReceiveUnreadCount(s.ApplyUnreadCount)
}

// FetchPage loads one page of notifications. Page one replaces the local
// list; later pages append. Items already known (for example delivered by
// push moments earlier) are skipped, and paging bookkeeping is updated only
// here, never by push.
func (s *Store) FetchPage(ctx context.Context, page, pageSize int) error {
	result, err := s.api.Notifications(ctx, page, pageSize)
	if err != nil {
		s.logger.Warn("failed to fetch notification page",
			zap.Int("page", page), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if page <= 1 {
		s.order = s.order[:0]
		s.items = make(map[int64]*model.Notification, len(result.Items))
	}
	for i := range result.Items {
		n := result.Items[i]
		if _, ok := s.items[n.ID]; ok {
			continue
		}
		s.items[n.ID] = &n
		s.order = append(s.order, n.ID)
	}
	s.page = result.Page
	s.pageSize = result.PageSize
	s.totalPages = result.TotalPages
	s.totalCount = result.TotalCount
	return nil
}

// LoadMore fetches the next page, if any remain.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	page, pageSize, more := s.page, s.pageSize, s.page < s.totalPages
	s.mu.Unlock()
	if !more {
		return nil
	}
	return s.FetchPage(ctx, page+1, pageSize)
}

// HasMore reports whether unloaded pages remain, as of the last fetch.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page < s.totalPages
}

// FetchUnreadCount refreshes the local counter from the server.
func (s *Store) FetchUnreadCount(ctx context.Context) error {
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch unread count", zap.Error(err))
		return err
	}
	s.setUnread(count)
	return nil
}

// UnreadCount returns the locally held unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Notifications returns a snapshot of the list, newest-first.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// MarkRead optimistically flips the item to read and decrements the counter
// before issuing the server write. A failed write is logged and returned but
// the optimistic state is kept; the next authoritative push or fetch
// overwrites any drift.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	if n, ok := s.items[id]; ok && n.Status == model.StatusUnread {
		now := time.Now()
		n.Status = model.StatusRead
		n.ReadAt = &now
		n.Decorate()
		if s.unread > 0 {
			s.unread--
		}
	}
	s.mu.Unlock()

	if err := s.api.MarkRead(ctx, id); err != nil {
		s.logger.Warn("mark-read failed, keeping optimistic state",
			zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}

// MarkAllRead optimistically flips every loaded item to read and zeroes the
// counter, then issues the server write with the same no-rollback caveat as
// MarkRead.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	now := time.Now()
	for _, n := range s.items {
		if n.Status == model.StatusUnread {
			n.Status = model.StatusRead
			n.ReadAt = &now
			n.Decorate()
		}
	}
	s.unread = 0
	s.mu.Unlock()

	if err := s.api.MarkAllRead(ctx); err != nil {
		s.logger.Warn("mark-all-read failed, keeping optimistic state", zap.Error(err))
		return err
	}
	return nil
}

// Delete removes a notification. The server write happens first; the item is
// removed from the local list only after the server confirms, so a failed
// delete never resurrects on the next push.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		s.logger.Warn("delete failed", zap.Int64("id", id), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return nil
	}
	if n.Status == model.StatusUnread && s.unread > 0 {
		s.unread--
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.totalCount > 0 {
		s.totalCount--
	}
	return nil
}

// ApplyPush prepends a freshly delivered notification as unread and bumps the
// counter. An id already present locally is ignored; the push and the fetch
// described the same server-side item.
func (s *Store) ApplyPush(msg model.NotificationMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[msg.ID]; ok {
		s.logger.Debug("push duplicate of known notification", zap.Int64("id", msg.ID))
		return
	}
	n := &model.Notification{
		ID:        msg.ID,
		Title:     msg.Title,
		Message:   msg.Message,
		Type:      msg.Type,
		Status:    model.StatusUnread,
		TodoID:    msg.TodoID,
		CreatedAt: msg.CreatedAt,
	}
	n.Decorate()
	s.items[msg.ID] = n
	s.order = append([]int64{msg.ID}, s.order...)
	s.unread++
}

// ApplyUnreadCount overwrites the counter with the server-pushed value.
func (s *Store) ApplyUnreadCount(count int) {
	s.setUnread(count)
}

func (s *Store) setUnread(count int) {
	if count < 0 {
		count = 0
	}
	s.mu.Lock()
	s.unread = count
	s.mu.Unlock()
}
