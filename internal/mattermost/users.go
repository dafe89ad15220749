package mattermost

import (
	"context"
	"net/url"
	"strings"
)

type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName picks the friendliest non-empty label for a user.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Nickname); name != "" {
		return name
	}
	full := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if full != "" {
		return full
	}
	return strings.TrimSpace(u.Username)
}

func (c *Client) fetchMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, "get_me", "GET", "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &APIError{Op: "get_user", Message: "user_id is required"}
	}
	return retryDo(ctx, c, "mattermost_get_user", func(ctx context.Context) (*User, error) {
		var user User
		if err := c.doJSON(ctx, "get_user", "GET", "/users/"+url.PathEscape(userID), nil, &user); err != nil {
			return nil, err
		}
		return &user, nil
	})
}

// GetUsersByIDs resolves a batch of user IDs in one call.
func (c *Client) GetUsersByIDs(ctx context.Context, userIDs []string) ([]User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return retryDo(ctx, c, "mattermost_get_users_by_ids", func(ctx context.Context) ([]User, error) {
		var users []User
		if err := c.doJSON(ctx, "get_users_by_ids", "POST", "/users/ids", ids, &users); err != nil {
			return nil, err
		}
		return users, nil
	})
}
