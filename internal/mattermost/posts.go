package mattermost

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Post struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	ChannelID string   `json:"channel_id"`
	RootID    string   `json:"root_id,omitempty"`
	Message   string   `json:"message"`
	Type      string   `json:"type,omitempty"`
	CreateAt  int64    `json:"create_at"`
	UpdateAt  int64    `json:"update_at,omitempty"`
	FileIDs   []string `json:"file_ids,omitempty"`
}

// IsSystem reports whether the post carries a non-empty system type tag.
func (p Post) IsSystem() bool {
	return strings.TrimSpace(p.Type) != ""
}

// PostList mirrors the server's ordered post collection: Order holds post IDs,
// newest first; Posts maps ID to post.
type PostList struct {
	Order []string        `json:"order"`
	Posts map[string]Post `json:"posts"`
}

// Ordered returns the posts in Order, skipping IDs without a body.
func (pl PostList) Ordered() []Post {
	out := make([]Post, 0, len(pl.Order))
	for _, id := range pl.Order {
		if post, ok := pl.Posts[id]; ok {
			out = append(out, post)
		}
	}
	return out
}

type createPostRequest struct {
	ChannelID string   `json:"channel_id"`
	Message   string   `json:"message"`
	RootID    string   `json:"root_id,omitempty"`
	FileIDs   []string `json:"file_ids,omitempty"`
}

// CreatePost posts a message, optionally anchored to a thread root.
func (c *Client) CreatePost(ctx context.Context, channelID, message, rootID string) (*Post, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &APIError{Op: "create_post", Message: "channel_id is required"}
	}
	if strings.TrimSpace(message) == "" {
		return nil, &APIError{Op: "create_post", Message: "message is required"}
	}
	post, err := retryDo(ctx, c, "mattermost_create_post", func(ctx context.Context) (*Post, error) {
		payload := createPostRequest{
			ChannelID: channelID,
			Message:   message,
			RootID:    strings.TrimSpace(rootID),
		}
		var out Post
		if err := c.doJSON(ctx, "create_post", "POST", "/posts", payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("mattermost_post_created",
		"post_id", post.ID,
		"channel_id", channelID,
		"root_id", post.RootID,
		"size", len(message),
	)
	return post, nil
}

// ReplyToThread posts into the thread anchored at rootID.
func (c *Client) ReplyToThread(ctx context.Context, channelID, rootID, message string) (*Post, error) {
	if strings.TrimSpace(rootID) == "" {
		return nil, &APIError{Op: "create_post", Message: "root_id is required"}
	}
	return c.CreatePost(ctx, channelID, message, rootID)
}

// UpdatePost replaces the text of an existing post authored by the bot.
func (c *Client) UpdatePost(ctx context.Context, postID, message string) (*Post, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, &APIError{Op: "update_post", Message: "post_id is required"}
	}
	return retryDo(ctx, c, "mattermost_update_post", func(ctx context.Context) (*Post, error) {
		payload := map[string]string{"message": message}
		var out Post
		if err := c.doJSON(ctx, "update_post", "PUT", "/posts/"+url.PathEscape(postID)+"/patch", payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (c *Client) GetPost(ctx context.Context, postID string) (*Post, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, &APIError{Op: "get_post", Message: "post_id is required"}
	}
	return retryDo(ctx, c, "mattermost_get_post", func(ctx context.Context) (*Post, error) {
		var out Post
		if err := c.doJSON(ctx, "get_post", "GET", "/posts/"+url.PathEscape(postID), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// GetPostThread fetches the full thread containing postID.
func (c *Client) GetPostThread(ctx context.Context, postID string) (*PostList, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, &APIError{Op: "get_post_thread", Message: "post_id is required"}
	}
	return retryDo(ctx, c, "mattermost_get_post_thread", func(ctx context.Context) (*PostList, error) {
		var out PostList
		if err := c.doJSON(ctx, "get_post_thread", "GET", "/posts/"+url.PathEscape(postID)+"/thread", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// GetPostsForChannel fetches one page of channel history, newest first.
func (c *Client) GetPostsForChannel(ctx context.Context, channelID string, page, perPage int) (*PostList, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &APIError{Op: "get_posts_for_channel", Message: "channel_id is required"}
	}
	if page < 0 {
		page = 0
	}
	if perPage <= 0 {
		perPage = 60
	}
	return retryDo(ctx, c, "mattermost_get_channel_posts", func(ctx context.Context) (*PostList, error) {
		path := fmt.Sprintf("/channels/%s/posts?page=%d&per_page=%d", url.PathEscape(channelID), page, perPage)
		var out PostList
		if err := c.doJSON(ctx, "get_posts_for_channel", "GET", path, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}
