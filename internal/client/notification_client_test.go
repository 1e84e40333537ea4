package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
)

func staticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

func TestLoginPostsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "login is unauthenticated")

		var login model.UserLogin
		require.NoError(t, json.NewDecoder(r.Body).Decode(&login))
		assert.Equal(t, "alice", login.UsernameOrEmail)
		assert.Equal(t, "pw", login.Password)

		json.NewEncoder(w).Encode(model.TokenResponse{
			Token: "issued-token",
			User:  model.User{ID: 1, Username: "alice"},
		})
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, staticToken(""), nil, zap.NewNop())
	resp, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "issued-token", resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestLoginRejectionIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, staticToken(""), nil, zap.NewNop())
	_, err := c.Login(context.Background(), "alice", "wrong")
	assert.ErrorContains(t, err, "401")
}

func TestNotificationsSendsBearerAndPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notification", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(model.PagedNotificationResult{
			Items:      []model.Notification{{ID: 1, Title: "t"}},
			TotalCount: 1,
			Page:       2,
			PageSize:   5,
			TotalPages: 1,
		})
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, staticToken("tok"), nil, zap.NewNop())
	result, err := c.Notifications(context.Background(), 2, 5)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(1), result.Items[0].ID)
}

func TestUnreadCountDecodesBareNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notification/unread-count", r.URL.Path)
		w.Write([]byte("7"))
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, staticToken("tok"), nil, zap.NewNop())
	count, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestMutationsHitTheExpectedRoutes(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, staticToken("tok"), nil, zap.NewNop())

	require.NoError(t, c.MarkRead(context.Background(), 12))
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/api/notification/12/read", path)

	require.NoError(t, c.MarkAllRead(context.Background()))
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/api/notification/mark-all-read", path)

	require.NoError(t, c.Delete(context.Background(), 12))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/api/notification/12", path)
}

func TestUnauthorizedResponseTriggersTeardown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tornDown := false
	c := NewNotificationClient(srv.URL, staticToken("stale"), func() { tornDown = true }, zap.NewNop())

	err := c.MarkRead(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, tornDown, "a rejected session must trigger the teardown hook")
}

func TestMissingTokenShortCircuits(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, staticToken(""), nil, zap.NewNop())
	_, err := c.UnreadCount(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, requests, "no request goes out without a token")
}

func TestServerErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewNotificationClient(srv.URL, staticToken("tok"), nil, zap.NewNop())
	err := c.MarkAllRead(context.Background())
	assert.ErrorContains(t, err, "500")
}
