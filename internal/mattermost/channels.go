package mattermost

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Channel types as the server reports them.
const (
	ChannelOpen    = "O"
	ChannelPrivate = "P"
	ChannelDirect  = "D"
	ChannelGroup   = "G"
)

type Channel struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id,omitempty"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

type ChannelMember struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Roles     string `json:"roles,omitempty"`
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &APIError{Op: "get_channel", Message: "channel_id is required"}
	}
	return retryDo(ctx, c, "mattermost_get_channel", func(ctx context.Context) (*Channel, error) {
		var out Channel
		if err := c.doJSON(ctx, "get_channel", "GET", "/channels/"+url.PathEscape(channelID), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (c *Client) GetChannelMembers(ctx context.Context, channelID string, page, perPage int) ([]ChannelMember, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &APIError{Op: "get_channel_members", Message: "channel_id is required"}
	}
	if page < 0 {
		page = 0
	}
	if perPage <= 0 {
		perPage = 60
	}
	return retryDo(ctx, c, "mattermost_get_channel_members", func(ctx context.Context) ([]ChannelMember, error) {
		path := fmt.Sprintf("/channels/%s/members?page=%d&per_page=%d", url.PathEscape(channelID), page, perPage)
		var out []ChannelMember
		if err := c.doJSON(ctx, "get_channel_members", "GET", path, nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}
