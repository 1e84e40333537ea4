package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
	"github.com/yourorg/taskboard/internal/realtime"
)

type fakeNotificationRepo struct {
	notifications map[int64]*model.Notification
	nextID        int64
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[int64]*model.Notification), nextID: 1}
}

func (r *fakeNotificationRepo) Insert(_ context.Context, n *model.Notification) (int64, error) {
	id := r.nextID
	r.nextID++
	stored := *n
	stored.ID = id
	r.notifications[id] = &stored
	return id, nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID int64, limit, offset int) ([]model.Notification, int, error) {
	var all []model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			all = append(all, *n)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeNotificationRepo) UnreadCount(_ context.Context, userID int64) (int, error) {
	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && n.Status == model.StatusUnread {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID, id int64) (bool, error) {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	if n.Status == model.StatusUnread {
		now := time.Now()
		n.Status = model.StatusRead
		n.ReadAt = &now
	}
	return true, nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID int64) (int, error) {
	count := 0
	now := time.Now()
	for _, n := range r.notifications {
		if n.UserID == userID && n.Status == model.StatusUnread {
			n.Status = model.StatusRead
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, userID, id int64) (bool, error) {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(r.notifications, id)
	return true, nil
}

type pushRecord struct {
	userID int64
	event  string
	data   interface{}
}

type fakePusher struct {
	sent []pushRecord
}

func (p *fakePusher) SendToUser(userID int64, event string, data interface{}) {
	p.sent = append(p.sent, pushRecord{userID: userID, event: event, data: data})
}

func (p *fakePusher) eventsFor(userID int64) []string {
	var names []string
	for _, rec := range p.sent {
		if rec.userID == userID {
			names = append(names, rec.event)
		}
	}
	return names
}

func newNotificationService(repo NotificationRepo, pusher Pusher) *NotificationService {
	return NewNotificationService(repo, pusher, nil, time.Minute, zap.NewNop())
}

func TestCreatePushesNotificationAndCount(t *testing.T) {
	repo := newFakeNotificationRepo()
	pusher := &fakePusher{}
	svc := newNotificationService(repo, pusher)

	todoID := int64(5)
	id, err := svc.Create(context.Background(), &model.Notification{
		UserID:  7,
		Title:   "Todo created",
		Message: `"Buy milk" was created`,
		Type:    model.TypeTodoCreated,
		TodoID:  &todoID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.Equal(t, []string{
		realtime.EventReceiveNotification,
		realtime.EventReceiveUnreadCount,
	}, pusher.eventsFor(7))

	msg, ok := pusher.sent[0].data.(model.NotificationMessage)
	require.True(t, ok)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, "Todo created", msg.Title)
	assert.Equal(t, "Todo created", msg.TypeName)

	assert.Equal(t, 1, pusher.sent[1].data.(int))
}

func TestCreateForcesUnreadStatus(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newNotificationService(repo, &fakePusher{})

	id, err := svc.Create(context.Background(), &model.Notification{
		UserID: 7,
		Title:  "t",
		Type:   model.TypeSystemMessage,
		Status: model.StatusRead,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnread, repo.notifications[id].Status)
}

func TestListClampsPagingAndDecorates(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newNotificationService(repo, &fakePusher{})

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), &model.Notification{
			UserID: 7, Title: "t", Type: model.TypeTodoCreated,
		})
		require.NoError(t, err)
	}

	result, err := svc.List(context.Background(), 7, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 10, result.PageSize)
	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 1, result.TotalPages)
	require.Len(t, result.Items, 3)
	for _, n := range result.Items {
		assert.Equal(t, "Todo created", n.TypeName)
		assert.Equal(t, "Unread", n.StatusName)
	}
}

func TestMarkReadPushesFreshCount(t *testing.T) {
	repo := newFakeNotificationRepo()
	pusher := &fakePusher{}
	svc := newNotificationService(repo, pusher)

	id, err := svc.Create(context.Background(), &model.Notification{
		UserID: 7, Title: "t", Type: model.TypeTodoCreated,
	})
	require.NoError(t, err)
	pusher.sent = nil

	ok, err := svc.MarkRead(context.Background(), 7, id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Equal(t, []string{realtime.EventReceiveUnreadCount}, pusher.eventsFor(7))
	assert.Equal(t, 0, pusher.sent[0].data.(int))
}

func TestMarkReadScopedToOwner(t *testing.T) {
	repo := newFakeNotificationRepo()
	pusher := &fakePusher{}
	svc := newNotificationService(repo, pusher)

	id, err := svc.Create(context.Background(), &model.Notification{
		UserID: 7, Title: "t", Type: model.TypeTodoCreated,
	})
	require.NoError(t, err)
	pusher.sent = nil

	ok, err := svc.MarkRead(context.Background(), 8, id)
	require.NoError(t, err)
	assert.False(t, ok, "another user's notification must look like it does not exist")
	assert.Empty(t, pusher.sent, "no push on a no-op mutation")
}

func TestMarkAllReadReturnsAffectedCount(t *testing.T) {
	repo := newFakeNotificationRepo()
	pusher := &fakePusher{}
	svc := newNotificationService(repo, pusher)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), &model.Notification{
			UserID: 7, Title: "t", Type: model.TypeTodoCreated,
		})
		require.NoError(t, err)
	}
	pusher.sent = nil

	count, err := svc.MarkAllRead(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Equal(t, []string{realtime.EventReceiveUnreadCount}, pusher.eventsFor(7))
	assert.Equal(t, 0, pusher.sent[0].data.(int))
}

func TestDeletePushesFreshCount(t *testing.T) {
	repo := newFakeNotificationRepo()
	pusher := &fakePusher{}
	svc := newNotificationService(repo, pusher)

	id, err := svc.Create(context.Background(), &model.Notification{
		UserID: 7, Title: "t", Type: model.TypeTodoCreated,
	})
	require.NoError(t, err)
	pusher.sent = nil

	ok, err := svc.Delete(context.Background(), 7, id)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Equal(t, []string{realtime.EventReceiveUnreadCount}, pusher.eventsFor(7))

	ok, err = svc.Delete(context.Background(), 7, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnreadCountRepoErrorPropagates(t *testing.T) {
	repo := &erroringRepo{err: errors.New("db down")}
	svc := newNotificationService(repo, &fakePusher{})

	_, err := svc.UnreadCount(context.Background(), 7)
	assert.ErrorContains(t, err, "db down")
}

type erroringRepo struct {
	err error
}

func (r *erroringRepo) Insert(context.Context, *model.Notification) (int64, error) {
	return 0, r.err
}

func (r *erroringRepo) ListByUser(context.Context, int64, int, int) ([]model.Notification, int, error) {
	return nil, 0, r.err
}

func (r *erroringRepo) UnreadCount(context.Context, int64) (int, error) { return 0, r.err }

func (r *erroringRepo) MarkRead(context.Context, int64, int64) (bool, error) { return false, r.err }

func (r *erroringRepo) MarkAllRead(context.Context, int64) (int, error) { return 0, r.err }

func (r *erroringRepo) Delete(context.Context, int64, int64) (bool, error) { return false, r.err }
