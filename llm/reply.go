package llm

import "strings"

type ReplyKind int

const (
	ReplyEmpty ReplyKind = iota
	ReplyText
)

// Reply is the normalized outcome of a generation call: either usable text or
// nothing. All backend response shapes collapse into this before any fallback
// logic runs.
type Reply struct {
	Kind ReplyKind
	Text string
}

func TextReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

func EmptyReply() Reply {
	return Reply{Kind: ReplyEmpty}
}

func (r Reply) IsEmpty() bool {
	return r.Kind != ReplyText || strings.TrimSpace(r.Text) == ""
}

// NormalizeReply maps a raw Result onto a Reply. Plain text wins; otherwise a
// structured object's "text" then "message" field is unwrapped, in that order.
// Anything else is Empty.
func NormalizeReply(res Result) Reply {
	if text := strings.TrimSpace(res.Text); text != "" {
		return TextReply(text)
	}
	obj, ok := res.JSON.(map[string]any)
	if !ok {
		return EmptyReply()
	}
	for _, key := range []string{"text", "message"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		if text := strings.TrimSpace(s); text != "" {
			return TextReply(text)
		}
	}
	return EmptyReply()
}
