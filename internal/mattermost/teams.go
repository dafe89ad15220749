package mattermost

import (
	"context"
	"net/url"
	"strings"
)

type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

type TeamMember struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	Roles  string `json:"roles,omitempty"`
}

func (c *Client) fetchTeamByName(ctx context.Context, name string) (*Team, error) {
	var team Team
	if err := c.doJSON(ctx, "get_team_by_name", "GET", "/teams/name/"+url.PathEscape(name), nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) fetchTeamMember(ctx context.Context, teamID, userID string) (*TeamMember, error) {
	var member TeamMember
	path := "/teams/" + url.PathEscape(teamID) + "/members/" + url.PathEscape(userID)
	if err := c.doJSON(ctx, "get_team_member", "GET", path, nil, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *Client) GetTeamByName(ctx context.Context, name string) (*Team, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &APIError{Op: "get_team_by_name", Message: "team name is required"}
	}
	return retryDo(ctx, c, "mattermost_get_team", func(ctx context.Context) (*Team, error) {
		return c.fetchTeamByName(ctx, name)
	})
}
