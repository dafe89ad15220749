package router

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/quailyquaily/mattermorph/internal/mattermost"
)

const (
	defaultContextMessages = 12
	historyPageSize        = 60
	activeThreadWindow     = 24 * time.Hour
)

type ThreadMessage struct {
	AuthorID    string
	DisplayName string
	Text        string
	TimestampMs int64
}

type ThreadContext struct {
	ThreadID         string
	Messages         []ThreadMessage
	MessageCount     int
	ParticipantCount int
	LastActivityMs   int64
	Active           bool
}

type ContextOptions struct {
	MaxMessages   int
	IncludeFuture bool
}

// ThreadContext fetches and orders the prior messages of a thread. It never
// fails: any error along the way yields ok=false and the caller proceeds
// without context.
func (r *Router) ThreadContext(ctx context.Context, threadRootID, channelID string, opts ContextOptions) (*ThreadContext, bool) {
	if strings.TrimSpace(threadRootID) == "" {
		return nil, false
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = defaultContextMessages
	}

	posts, err := r.fetchThreadPosts(ctx, threadRootID, channelID)
	if err != nil {
		r.logger.Warn("router_thread_context_unavailable", "thread_id", threadRootID, "error", err.Error())
		return nil, false
	}
	if len(posts) == 0 {
		return nil, false
	}

	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreateAt < posts[j].CreateAt })
	if len(posts) > opts.MaxMessages {
		if opts.IncludeFuture {
			posts = posts[:opts.MaxMessages]
		} else {
			posts = posts[len(posts)-opts.MaxMessages:]
		}
	}

	names := r.resolveDisplayNames(ctx, posts)
	tc := &ThreadContext{ThreadID: threadRootID}
	participants := make(map[string]bool)
	for _, post := range posts {
		participants[post.UserID] = true
		tc.Messages = append(tc.Messages, ThreadMessage{
			AuthorID:    post.UserID,
			DisplayName: names[post.UserID],
			Text:        post.Message,
			TimestampMs: post.CreateAt,
		})
		if post.CreateAt > tc.LastActivityMs {
			tc.LastActivityMs = post.CreateAt
		}
	}
	tc.MessageCount = len(tc.Messages)
	tc.ParticipantCount = len(participants)
	tc.Active = time.Since(time.UnixMilli(tc.LastActivityMs)) <= activeThreadWindow
	return tc, true
}

// fetchThreadPosts prefers the dedicated thread endpoint and falls back to
// filtering a bounded page of channel history.
func (r *Router) fetchThreadPosts(ctx context.Context, threadRootID, channelID string) ([]mattermost.Post, error) {
	list, err := r.gateway.GetPostThread(ctx, threadRootID)
	if err == nil {
		return list.Ordered(), nil
	}
	page, ferr := r.gateway.GetPostsForChannel(ctx, channelID, 0, historyPageSize)
	if ferr != nil {
		return nil, err
	}
	var posts []mattermost.Post
	for _, post := range page.Ordered() {
		if post.ID == threadRootID || post.RootID == threadRootID {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// resolveDisplayNames maps author IDs to display names, falling back to a
// label derived from the ID so rendering never blocks on profile lookups.
func (r *Router) resolveDisplayNames(ctx context.Context, posts []mattermost.Post) map[string]string {
	ids := make([]string, 0, len(posts))
	index := make(map[string]bool, len(posts))
	for _, post := range posts {
		if post.UserID != "" && !index[post.UserID] {
			index[post.UserID] = true
			ids = append(ids, post.UserID)
		}
	}

	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = derivedLabel(id)
	}
	users, err := r.gateway.GetUsersByIDs(ctx, ids)
	if err != nil {
		r.logger.Warn("router_display_name_lookup_error", "error", err.Error())
		return names
	}
	for _, user := range users {
		if name := user.DisplayName(); name != "" {
			names[user.ID] = name
		}
	}
	return names
}

func derivedLabel(userID string) string {
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return "user-" + userID
}
