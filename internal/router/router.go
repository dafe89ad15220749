package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"github.com/quailyquaily/mattermorph/internal/mattermost"
	"github.com/quailyquaily/mattermorph/internal/wsevents"
	"github.com/quailyquaily/mattermorph/llm"
)

const (
	processedCacheSize = 1000
	routeTimeout       = 2 * time.Minute

	defaultSystemPrompt = "You are %s, a helpful chat assistant. Keep replies short and conversational. " +
		"If the message needs no reply, respond with an empty string."
	defaultBotName = "the bot"
)

// Gateway is the REST surface the router needs. *mattermost.Client satisfies
// it; tests substitute fakes.
type Gateway interface {
	Me() (*mattermost.User, error)
	CreatePost(ctx context.Context, channelID, message, rootID string) (*mattermost.Post, error)
	GetPostThread(ctx context.Context, postID string) (*mattermost.PostList, error)
	GetPostsForChannel(ctx context.Context, channelID string, page, perPage int) (*mattermost.PostList, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]mattermost.User, error)
}

// Stream is the event source the router subscribes to. *wsevents.Client
// satisfies it.
type Stream interface {
	On(event string, fn wsevents.Handler) uint64
	Off(event string, handle uint64)
}

// AttachmentNotifier is told about file attachments on routed messages. The
// router itself never downloads files.
type AttachmentNotifier interface {
	AttachmentsReceived(ctx context.Context, msg Message)
}

type Options struct {
	Gateway Gateway
	Stream  Stream
	Model   llm.Client
	Logger  *slog.Logger

	// Generation parameters passed through to the model.
	ModelName   string
	Temperature float64
	MaxTokens   int

	// BotName names the bot in the default system prompt. The configured
	// name, not the resolved account username, so operators can rename the
	// persona without touching the credential.
	BotName string

	SystemPrompt    string
	ContextMessages int

	// Optional. Nil means attachments are silently ignored.
	Notifier AttachmentNotifier
}

// Router turns "posted" stream events into generated replies. It owns the
// duplicate-suppression cache and the circuit breaker around generation.
type Router struct {
	gateway  Gateway
	stream   Stream
	model    llm.Client
	logger   *slog.Logger
	notifier AttachmentNotifier
	opts     Options

	seen    *lru.Cache[string, struct{}]
	breaker *gobreaker.CircuitBreaker
	metrics Metrics

	mu          sync.Mutex
	initialized bool
	botUserID   string
	handles     map[string]uint64

	wg sync.WaitGroup
}

func NewRouter(opts Options) (*Router, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if opts.Stream == nil {
		return nil, fmt.Errorf("stream is required")
	}
	if opts.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		name := strings.TrimSpace(opts.BotName)
		if name == "" {
			name = defaultBotName
		}
		opts.SystemPrompt = fmt.Sprintf(defaultSystemPrompt, name)
	}
	if opts.ContextMessages <= 0 {
		opts.ContextMessages = defaultContextMessages
	}

	seen, err := lru.New[string, struct{}](processedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create processed cache: %w", err)
	}

	r := &Router{
		gateway:  opts.Gateway,
		stream:   opts.Stream,
		model:    opts.Model,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		opts:     opts,
		seen:     seen,
		handles:  map[string]uint64{},
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm_generate",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("router_breaker_state_change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return r, nil
}

// Initialize resolves the bot's own identity and subscribes to the stream.
// Calling it again is a no-op.
func (r *Router) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}

	me, err := r.gateway.Me()
	if err != nil {
		return fmt.Errorf("resolve bot identity: %w", err)
	}
	r.botUserID = me.ID

	r.handles["posted"] = r.stream.On("posted", r.handlePosted)
	r.handles["post_edited"] = r.stream.On("post_edited", func(wsevents.Event) {})
	r.handles["channel_viewed"] = r.stream.On("channel_viewed", func(wsevents.Event) {})

	r.initialized = true
	r.logger.Info("router_initialized", "bot_user_id", r.botUserID)
	return nil
}

// Cleanup unsubscribes, waits for in-flight routes, and clears router state.
// Safe to call on a router that was never initialized.
func (r *Router) Cleanup() {
	r.mu.Lock()
	handles := r.handles
	r.handles = map[string]uint64{}
	r.initialized = false
	r.botUserID = ""
	r.mu.Unlock()

	for event, handle := range handles {
		func() {
			defer func() { _ = recover() }()
			r.stream.Off(event, handle)
		}()
	}
	r.wg.Wait()
	r.seen.Purge()
	r.logger.Info("router_cleaned_up")
}

func (r *Router) botID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.botUserID
}

func (r *Router) Metrics() MetricsSnapshot { return r.metrics.Snapshot() }

// BreakerState reports the generation breaker state for the health endpoint.
func (r *Router) BreakerState() string { return r.breaker.State().String() }

func (r *Router) handlePosted(ev wsevents.Event) {
	msg, err := messageFromEvent(ev)
	if err != nil {
		r.logger.Warn("router_event_discarded", "error", err.Error())
		return
	}

	decision := r.Classify(msg)
	r.logger.Debug("router_message_classified",
		"post_id", msg.ID, "reason", decision.Reason, "route", decision.ShouldRoute)
	if !decision.ShouldRoute {
		return
	}

	// Mark before doing any work so a re-delivered event cannot race a second
	// reply for the same post.
	if present, _ := r.seen.ContainsOrAdd(msg.ID, struct{}{}); present {
		r.logger.Debug("router_message_classified",
			"post_id", msg.ID, "reason", ReasonDuplicate, "route", false)
		return
	}

	r.metrics.routed.Add(1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
		defer cancel()
		r.route(ctx, msg, decision)
	}()
}

func (r *Router) route(ctx context.Context, msg Message, decision Decision) {
	correlationID := uuid.New().String()
	logger := r.logger.With("correlation_id", correlationID, "post_id", msg.ID)
	logger.Info("router_route_start",
		"reason", decision.Reason, "channel_id", msg.ChannelID, "thread_reply", msg.RootID != "")

	if len(msg.FileIDs) > 0 && r.notifier != nil {
		r.notifier.AttachmentsReceived(ctx, msg)
	}

	var tc *ThreadContext
	if msg.RootID != "" {
		tc, _ = r.ThreadContext(ctx, msg.RootID, msg.ChannelID, ContextOptions{MaxMessages: r.opts.ContextMessages})
	}

	reply, ok := r.generate(ctx, msg, tc)
	if !ok {
		r.metrics.generationFailures.Add(1)
		reply = apologyReply
	} else if reply == "" {
		r.metrics.fallbacks.Add(1)
		reply = fallbackReply(decision, msg.RootID != "")
	}

	if _, err := r.gateway.CreatePost(ctx, msg.ChannelID, reply, msg.ThreadAnchor()); err != nil {
		logger.Error("router_reply_failed", "error", err.Error())
		return
	}
	r.metrics.replied.Add(1)
	logger.Info("router_route_done", "reply_size", len(reply))
}

// generate runs the model behind the circuit breaker. The second return is
// false when generation itself failed; an empty first return with ok=true
// means the model declined to answer.
func (r *Router) generate(ctx context.Context, msg Message, tc *ThreadContext) (string, bool) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.model.Chat(ctx, llm.Request{
			Model:       r.opts.ModelName,
			Messages:    r.buildMessages(msg, tc),
			Temperature: r.opts.Temperature,
			MaxTokens:   r.opts.MaxTokens,
			User:        msg.AuthorID,
		})
	})
	if err != nil {
		r.logger.Error("router_generate_error", "post_id", msg.ID, "error", err.Error())
		return "", false
	}
	res, ok := out.(llm.Result)
	if !ok {
		r.logger.Error("router_generate_error", "post_id", msg.ID, "error", "unexpected result type")
		return "", false
	}
	return llm.NormalizeReply(res).Text, true
}

func (r *Router) buildMessages(msg Message, tc *ThreadContext) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: r.opts.SystemPrompt}}

	if tc != nil && len(tc.Messages) > 0 {
		var b strings.Builder
		b.WriteString("Previous conversation:\n")
		for _, tm := range tc.Messages {
			name := tm.DisplayName
			if name == "" {
				name = derivedLabel(tm.AuthorID)
			}
			fmt.Fprintf(&b, "%s: %s\n", name, tm.Text)
		}
		messages = append(messages, llm.Message{Role: "system", Content: b.String()})
	}

	content := msg.Text
	if msg.SenderName != "" {
		content = fmt.Sprintf("%s says: %s", msg.SenderName, msg.Text)
	}
	messages = append(messages, llm.Message{Role: "user", Content: content})
	return messages
}
