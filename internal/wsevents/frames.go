package wsevents

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reserved event names. Wildcard listeners receive every dispatched event;
// EventAuthenticated and EventConnectionFailed are synthesized locally and
// never arrive on the wire.
const (
	Wildcard              = "*"
	EventHello            = "hello"
	EventAuthenticated    = "authenticated"
	EventConnectionFailed = "connection_failed"
)

type authChallengeData struct {
	Token string `json:"token"`
}

type authChallenge struct {
	Seq    int64             `json:"seq"`
	Action string            `json:"action"`
	Data   authChallengeData `json:"data"`
}

func newAuthChallenge(seq int64, token string) authChallenge {
	return authChallenge{
		Seq:    seq,
		Action: "authentication_challenge",
		Data:   authChallengeData{Token: token},
	}
}

type Broadcast struct {
	OmitUsers map[string]bool `json:"omit_users,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
}

// Frame is the generic inbound event frame. Frames that fail to decode into
// this schema are dropped by the read loop instead of reaching listeners.
type Frame struct {
	Event     string           `json:"event"`
	Data      map[string]any   `json:"data,omitempty"`
	Broadcast *Broadcast       `json:"broadcast,omitempty"`
	Seq       int64            `json:"seq"`
	SeqReply  int64            `json:"seq_reply,omitempty"`
	Status    string           `json:"status,omitempty"`
	Error     *json.RawMessage `json:"error,omitempty"`
}

func parseFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return frame, nil
}

// isEventFrame filters out request acknowledgments (status-only frames).
func (f Frame) isEventFrame() bool {
	return strings.TrimSpace(f.Event) != ""
}

// Event is what listeners receive: the payload plus frame metadata.
type Event struct {
	Name       string
	Data       map[string]any
	Broadcast  *Broadcast
	Seq        int64
	Frame      Frame
	ReceivedAt time.Time
}

type Handler func(Event)
