// Package mattermost is the authenticated REST gateway to the chat server.
// Every data-plane call goes through the shared retry executor and rate
// limiter; Initialize must succeed before any of them is usable.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/mattermorph/internal/ratelimit"
	"github.com/quailyquaily/mattermorph/internal/retry"
)

const apiPrefix = "/api/v4"

type Config struct {
	ServerURL string
	Token     string
	Team      string
}

func (c Config) validate() error {
	serverURL := strings.TrimSpace(c.ServerURL)
	if serverURL == "" {
		return fmt.Errorf("server_url is required")
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server_url is invalid: %q", c.ServerURL)
	}
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("token is required")
	}
	if strings.TrimSpace(c.Team) == "" {
		return fmt.Errorf("team is required")
	}
	return nil
}

type Client struct {
	http    *http.Client
	logger  *slog.Logger
	exec    *retry.Executor
	baseURL string
	token   string
	team    string

	initOpts retry.Options
	callOpts retry.Options

	mu   sync.RWMutex
	me   *User
	home *Team
}

func NewClient(cfg Config, logger *slog.Logger, limiter *ratelimit.Limiter, httpClient *http.Client) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:    httpClient,
		logger:  logger,
		exec:    retry.NewExecutor(logger, limiter),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		team:    strings.TrimSpace(cfg.Team),
		// Initialization gets its own bounded policy: a cold start is
		// expected to race the chat server's own boot.
		initOpts: retry.Options{
			MaxRetries:      4,
			BaseDelay:       2 * time.Second,
			MaxDelay:        10 * time.Second,
			ExponentialBase: 2,
		},
		callOpts: retry.DefaultOptions(),
	}, nil
}

// SetRetryOptions overrides the initialization and per-call retry policies.
// Tests use it to keep backoff delays short.
func (c *Client) SetRetryOptions(initOpts, callOpts retry.Options) {
	c.initOpts = initOpts
	c.callOpts = callOpts
	c.exec.SetJitterFn(func() time.Duration { return 0 })
}

// Initialize validates the credential and team access, caching both. A failed
// membership check is logged as a warning, not fatal.
func (c *Client) Initialize(ctx context.Context) error {
	me, err := retry.Do(ctx, c.exec, "mattermost_init_me", c.initOpts, func(ctx context.Context) (*User, error) {
		return c.fetchMe(ctx)
	})
	if err != nil {
		return fmt.Errorf("validate credential: %w", err)
	}

	team, err := retry.Do(ctx, c.exec, "mattermost_init_team", c.initOpts, func(ctx context.Context) (*Team, error) {
		return c.fetchTeamByName(ctx, c.team)
	})
	if err != nil {
		return fmt.Errorf("validate team %q: %w", c.team, err)
	}

	if _, err := c.fetchTeamMember(ctx, team.ID, me.ID); err != nil {
		c.logger.Warn("mattermost_init_membership_unverified", "team", c.team, "error", err.Error())
	}

	c.mu.Lock()
	c.me = me
	c.home = team
	c.mu.Unlock()

	c.logger.Info("mattermost_initialized",
		"user_id", me.ID,
		"username", me.Username,
		"team_id", team.ID,
		"team", team.Name,
	)
	return nil
}

// IsReady reports whether both the bot user and the team are cached.
func (c *Client) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.me != nil && c.home != nil
}

func (c *Client) ready() error {
	if !c.IsReady() {
		return ErrNotReady
	}
	return nil
}

// Me returns the cached bot user. Valid only after Initialize.
func (c *Client) Me() (*User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.me == nil {
		return nil, ErrNotReady
	}
	me := *c.me
	return &me, nil
}

// Team returns the cached home team. Valid only after Initialize.
func (c *Client) Team() (*Team, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.home == nil {
		return nil, ErrNotReady
	}
	team := *c.home
	return &team, nil
}

// WebSocketURL derives the event-stream endpoint from the server URL.
func (c *Client) WebSocketURL() string {
	wsURL := c.baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return wsURL + apiPrefix + "/websocket"
}

// retryDo runs one data-plane operation under the default per-call retry
// policy, logging the failure once the retries are spent.
func retryDo[T any](ctx context.Context, c *Client, name string, op func(context.Context) (T, error)) (T, error) {
	c.logger.Debug(name + "_start")
	out, err := retry.Do(ctx, c.exec, name, c.callOpts, op)
	if err != nil {
		c.logger.Warn(name+"_error", "error", err.Error())
	}
	return out, err
}

type serverError struct {
	ID         string `json:"id,omitempty"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// doJSON performs one bare HTTP round trip and decodes the response into out.
// Callers wrap it in the retry executor; it never retries on its own.
func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return &APIError{Op: op, Err: err}
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.finish(op, req, out)
}

func (c *Client) finish(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Err: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var se serverError
		_ = json.Unmarshal(raw, &se)
		msg := strings.TrimSpace(se.Message)
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &APIError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
