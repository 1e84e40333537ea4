package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
)

// ErrUnauthorized is returned when the server rejects the session token.
var ErrUnauthorized = errors.New("session is no longer valid")

// TokenSource supplies the bearer token attached to authenticated requests.
type TokenSource func() (string, error)

// NotificationClient handles communication with the notification service.
// A 401 from any authenticated call invokes the configured teardown hook
// (clear the stored session, send the user back to login) exactly as the
// rest of the application does.
type NotificationClient struct {
	baseURL        string
	tokens         TokenSource
	httpClient     *http.Client
	onUnauthorized func()
	logger         *zap.Logger
}

// NewNotificationClient creates a new notification REST client.
func NewNotificationClient(baseURL string, tokens TokenSource, onUnauthorized func(), logger *zap.Logger) *NotificationClient {
	return &NotificationClient{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		onUnauthorized: onUnauthorized,
		logger:         logger,
	}
}

// Login authenticates with the server and returns the issued token and user.
func (c *NotificationClient) Login(ctx context.Context, usernameOrEmail, password string) (*model.TokenResponse, error) {
	body, err := json.Marshal(model.UserLogin{
		UsernameOrEmail: usernameOrEmail,
		Password:        password,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/auth/login", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var token model.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	return &token, nil
}

// Notifications fetches one page of the user's notification list.
func (c *NotificationClient) Notifications(ctx context.Context, page, pageSize int) (*model.PagedNotificationResult, error) {
	url := fmt.Sprintf("%s/api/notification?page=%d&pageSize=%d", c.baseURL, page, pageSize)

	var result model.PagedNotificationResult
	if err := c.doJSON(ctx, http.MethodGet, url, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UnreadCount fetches the server's unread notification count.
func (c *NotificationClient) UnreadCount(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/api/notification/unread-count", c.baseURL)

	var count int
	if err := c.doJSON(ctx, http.MethodGet, url, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead marks one notification as read. Marking an already-read item
// succeeds; the operation is idempotent.
func (c *NotificationClient) MarkRead(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/api/notification/%d/read", c.baseURL, id)
	return c.doJSON(ctx, http.MethodPatch, url, nil)
}

// MarkAllRead marks every notification of the user as read.
func (c *NotificationClient) MarkAllRead(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/notification/mark-all-read", c.baseURL)
	return c.doJSON(ctx, http.MethodPatch, url, nil)
}

// Delete removes one notification.
func (c *NotificationClient) Delete(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/api/notification/%d", c.baseURL, id)
	return c.doJSON(ctx, http.MethodDelete, url, nil)
}

// doJSON performs an authenticated request and decodes the response into out
// when out is non-nil.
func (c *NotificationClient) doJSON(ctx context.Context, method, url string, out interface{}) error {
	token, err := c.tokens()
	if err != nil || token == "" {
		return ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("notification service request failed",
			zap.String("method", method), zap.String("url", url), zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("session rejected by notification service")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
