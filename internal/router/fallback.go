package router

import "math/rand"

// Pre-written replies for when generation produces nothing usable. A routed
// message must never be answered with silence, so the audience-appropriate
// variant goes out instead of an empty post.
var (
	directFallbacks = []string{
		"I didn't quite catch that. Could you say it another way?",
		"Hmm, I don't have a good answer for that one. Mind rephrasing?",
	}
	threadFallbacks = []string{
		"I lost the thread there for a second. Could you restate that?",
		"I don't have a useful follow-up for that. Could you add some detail?",
	}
	channelFallbacks = []string{
		"I'm not sure how to help with that. Could you rephrase?",
		"I don't have a good answer right now. Try asking another way?",
	}

	// Distinct acknowledgment for when the generation backend itself failed.
	apologyReply = "Sorry, I ran into a problem generating a response. Please try again in a moment."
)

func fallbackReply(d Decision, isThreadReply bool) string {
	switch {
	case d.IsDirectMessage:
		return pick(directFallbacks)
	case isThreadReply:
		return pick(threadFallbacks)
	default:
		return pick(channelFallbacks)
	}
}

func pick(options []string) string {
	return options[rand.Intn(len(options))]
}
