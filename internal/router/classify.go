package router

import "strings"

// Classification reasons, in precedence order.
const (
	ReasonOwnMessage    = "own_message"
	ReasonDuplicate     = "duplicate"
	ReasonEmptyOrSystem = "empty_or_system"
	ReasonDirectMessage = "direct_message"
	ReasonMention       = "mention"
	ReasonNotAddressed  = "not_addressed"
)

type Decision struct {
	ShouldRoute     bool
	Reason          string
	IsDirectMessage bool
	IsMention       bool
}

// Classify decides whether a message warrants a response. Rules are evaluated
// in fixed precedence order; the first match wins:
//
//  1. the bot's own messages never route (loop prevention)
//  2. already-processed IDs never route (duplicate suppression)
//  3. blank or system messages never route
//  4. direct messages always route
//  5. explicit mentions in shared channels route
//  6. everything else is dropped
func (r *Router) Classify(msg Message) Decision {
	if msg.AuthorID != "" && msg.AuthorID == r.botID() {
		return Decision{Reason: ReasonOwnMessage}
	}
	if r.seen.Contains(msg.ID) {
		return Decision{Reason: ReasonDuplicate}
	}
	if strings.TrimSpace(msg.Text) == "" || msg.IsSystem() {
		return Decision{Reason: ReasonEmptyOrSystem}
	}
	if msg.IsDirect() {
		return Decision{ShouldRoute: true, Reason: ReasonDirectMessage, IsDirectMessage: true}
	}
	if r.mentioned(msg) {
		return Decision{ShouldRoute: true, Reason: ReasonMention, IsMention: true}
	}
	return Decision{Reason: ReasonNotAddressed}
}

func (r *Router) mentioned(msg Message) bool {
	botID := r.botID()
	if botID == "" {
		return false
	}
	for _, id := range msg.Mentions {
		if id == botID {
			return true
		}
	}
	return false
}
