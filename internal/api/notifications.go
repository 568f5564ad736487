package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boardsync/boardsync/internal/domain/notification"
)

// NotificationsAPI groups notification endpoints.
type NotificationsAPI struct {
	c *Client
}

// Notifications returns the notification endpoint group.
func (c *Client) Notifications() NotificationsAPI { return NotificationsAPI{c: c} }

// List fetches the most recent notifications for the authenticated user.
func (a NotificationsAPI) List(ctx context.Context, limit int) ([]notification.Notification, error) {
	notifications, _, err := getList[notification.Notification](ctx, a.c, fmt.Sprintf("/notifications?limit=%d", limit))
	return notifications, err
}

// UnreadCount returns the number of unread notifications.
func (a NotificationsAPI) UnreadCount(ctx context.Context) (int, error) {
	var env struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := a.c.Do(ctx, http.MethodGet, "/notifications/unread-count", nil, &env); err != nil {
		return 0, err
	}
	return env.Count, nil
}

// MarkRead marks one notification as read.
func (a NotificationsAPI) MarkRead(ctx context.Context, id string) error {
	return a.c.Do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllRead marks every notification as read.
func (a NotificationsAPI) MarkAllRead(ctx context.Context) error {
	return a.c.Do(ctx, http.MethodPatch, "/notifications/read-all", nil, nil)
}
