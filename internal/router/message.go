package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quailyquaily/mattermorph/internal/mattermost"
	"github.com/quailyquaily/mattermorph/internal/wsevents"
)

// Message is the ephemeral, per-event view the router works with. It is
// parsed fresh from each "posted" frame and never persisted.
type Message struct {
	ID          string
	AuthorID    string
	ChannelID   string
	RootID      string
	Text        string
	ChannelType string
	PostType    string
	Mentions    []string
	FileIDs     []string
	SenderName  string
	CreateAt    int64
}

func (m Message) IsDirect() bool {
	return m.ChannelType == mattermost.ChannelDirect
}

func (m Message) IsSystem() bool {
	return strings.TrimSpace(m.PostType) != ""
}

// ThreadAnchor is the root ID a reply should attach to: the existing thread
// root for replies, the message itself when starting a new thread.
func (m Message) ThreadAnchor() string {
	if m.RootID != "" {
		return m.RootID
	}
	return m.ID
}

// messageFromEvent decodes a "posted" stream event. The post body and the
// mention list arrive as JSON-encoded strings inside the frame data.
func messageFromEvent(ev wsevents.Event) (Message, error) {
	rawPost, ok := ev.Data["post"].(string)
	if !ok || strings.TrimSpace(rawPost) == "" {
		return Message{}, fmt.Errorf("posted event carries no post payload")
	}
	var post mattermost.Post
	if err := json.Unmarshal([]byte(rawPost), &post); err != nil {
		return Message{}, fmt.Errorf("decode post payload: %w", err)
	}
	if strings.TrimSpace(post.ID) == "" {
		return Message{}, fmt.Errorf("post payload has no id")
	}
	if strings.TrimSpace(post.ChannelID) == "" {
		return Message{}, fmt.Errorf("post payload has no channel_id")
	}

	msg := Message{
		ID:        post.ID,
		AuthorID:  post.UserID,
		ChannelID: post.ChannelID,
		RootID:    strings.TrimSpace(post.RootID),
		Text:      post.Message,
		PostType:  post.Type,
		FileIDs:   post.FileIDs,
		CreateAt:  post.CreateAt,
	}
	if ct, ok := ev.Data["channel_type"].(string); ok {
		msg.ChannelType = strings.TrimSpace(ct)
	}
	if sender, ok := ev.Data["sender_name"].(string); ok {
		msg.SenderName = strings.TrimSpace(sender)
	}
	if rawMentions, ok := ev.Data["mentions"].(string); ok && strings.TrimSpace(rawMentions) != "" {
		var mentions []string
		if err := json.Unmarshal([]byte(rawMentions), &mentions); err == nil {
			msg.Mentions = mentions
		}
	}
	return msg, nil
}
