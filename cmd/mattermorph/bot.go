package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/mattermorph/internal/configutil"
	"github.com/quailyquaily/mattermorph/internal/healthcheck"
	"github.com/quailyquaily/mattermorph/internal/logutil"
	"github.com/quailyquaily/mattermorph/internal/mattermost"
	"github.com/quailyquaily/mattermorph/internal/ratelimit"
	"github.com/quailyquaily/mattermorph/internal/router"
	"github.com/quailyquaily/mattermorph/internal/wsevents"
	"github.com/quailyquaily/mattermorph/providers/openai"
)

// botSettings is the bot command's resolved configuration. Each field comes
// from a flag when set, else the viper key (config file or MATTER_MORPH_* env).
type botSettings struct {
	ServerURL    string
	Token        string
	Team         string
	BotName      string
	PingInterval time.Duration

	RequestsPerSecond int

	LLMEndpoint       string
	LLMAPIKey         string
	LLMModel          string
	LLMRequestTimeout time.Duration
	Temperature       float64
	MaxTokens         int

	SystemPrompt    string
	ContextMessages int

	HealthListen string
}

func botSettingsFromCmd(cmd *cobra.Command) (botSettings, error) {
	s := botSettings{
		ServerURL:         strings.TrimSpace(configutil.FlagOrViperString(cmd, "server-url", "mattermost.server_url")),
		Token:             strings.TrimSpace(configutil.FlagOrViperString(cmd, "token", "mattermost.token")),
		Team:              strings.TrimSpace(configutil.FlagOrViperString(cmd, "team", "mattermost.team")),
		BotName:           strings.TrimSpace(configutil.FlagOrViperString(cmd, "bot-name", "mattermost.bot_name")),
		PingInterval:      configutil.FlagOrViperDuration(cmd, "ping-interval", "mattermost.ping_interval"),
		RequestsPerSecond: configutil.FlagOrViperInt(cmd, "requests-per-second", "rate.requests_per_second"),
		LLMEndpoint:       strings.TrimSpace(configutil.FlagOrViperString(cmd, "llm-endpoint", "llm.endpoint")),
		LLMAPIKey:         strings.TrimSpace(configutil.FlagOrViperString(cmd, "llm-api-key", "llm.api_key")),
		LLMModel:          strings.TrimSpace(configutil.FlagOrViperString(cmd, "llm-model", "llm.model")),
		LLMRequestTimeout: configutil.FlagOrViperDuration(cmd, "llm-request-timeout", "llm.request_timeout"),
		Temperature:       configutil.FlagOrViperFloat64(cmd, "llm-temperature", "llm.temperature"),
		MaxTokens:         configutil.FlagOrViperInt(cmd, "llm-max-tokens", "llm.max_tokens"),
		SystemPrompt:      configutil.FlagOrViperString(cmd, "system-prompt", "router.system_prompt"),
		ContextMessages:   configutil.FlagOrViperInt(cmd, "context-messages", "router.context_messages"),
		HealthListen:      configutil.FlagOrViperString(cmd, "health-listen", "health.listen"),
	}
	if s.ServerURL == "" {
		return s, fmt.Errorf("missing mattermost.server_url (set via --server-url or MATTER_MORPH_MATTERMOST_SERVER_URL)")
	}
	if s.Token == "" {
		return s, fmt.Errorf("missing mattermost.token (set via --token or MATTER_MORPH_MATTERMOST_TOKEN)")
	}
	if s.Team == "" {
		return s, fmt.Errorf("missing mattermost.team (set via --team or MATTER_MORPH_MATTERMOST_TEAM)")
	}
	if s.RequestsPerSecond <= 0 {
		s.RequestsPerSecond = 10
	}
	if s.LLMModel == "" {
		s.LLMModel = "gpt-4o-mini"
	}
	return s, nil
}

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Mattermost bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := botSettingsFromCmd(cmd)
			if err != nil {
				return err
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			limiter, err := ratelimit.New(settings.RequestsPerSecond)
			if err != nil {
				return err
			}

			gateway, err := mattermost.NewClient(mattermost.Config{
				ServerURL: settings.ServerURL,
				Token:     settings.Token,
				Team:      settings.Team,
			}, logger, limiter, &http.Client{Timeout: 30 * time.Second})
			if err != nil {
				return err
			}
			if err := gateway.Initialize(runCtx); err != nil {
				return fmt.Errorf("mattermost initialize: %w", err)
			}
			if settings.BotName != "" {
				if me, err := gateway.Me(); err == nil && !strings.EqualFold(me.Username, settings.BotName) {
					logger.Warn("bot_name_mismatch", "configured", settings.BotName, "account", me.Username)
				}
			}

			stream, err := wsevents.NewClient(wsevents.Options{
				URL:          gateway.WebSocketURL(),
				Token:        settings.Token,
				Logger:       logger,
				PingInterval: settings.PingInterval,
			})
			if err != nil {
				return err
			}

			model := openai.New(settings.LLMEndpoint, settings.LLMAPIKey, settings.LLMRequestTimeout)

			rt, err := router.NewRouter(router.Options{
				Gateway:         gateway,
				Stream:          stream,
				Model:           model,
				Logger:          logger,
				ModelName:       settings.LLMModel,
				Temperature:     settings.Temperature,
				MaxTokens:       settings.MaxTokens,
				BotName:         settings.BotName,
				SystemPrompt:    settings.SystemPrompt,
				ContextMessages: settings.ContextMessages,
			})
			if err != nil {
				return err
			}
			if err := rt.Initialize(runCtx); err != nil {
				return err
			}
			defer rt.Cleanup()

			healthListen := healthcheck.NormalizeListen(settings.HealthListen)
			if healthListen != "" {
				healthServer, err := healthcheck.StartServer(runCtx, logger, healthListen, "bot", func() healthcheck.Status {
					snap := rt.Metrics()
					return healthcheck.Status{
						StreamState:  stream.State().String(),
						GatewayReady: gateway.IsReady(),
						BreakerState: rt.BreakerState(),
						Counters: map[string]int64{
							"routed":              snap.Routed,
							"replied":             snap.Replied,
							"fallbacks":           snap.Fallbacks,
							"generation_failures": snap.GenerationFailures,
						},
					}
				})
				if err != nil {
					logger.Warn("bot_health_server_start_error", "addr", healthListen, "error", err.Error())
				} else {
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						_ = healthServer.Shutdown(shutdownCtx)
						cancel()
					}()
				}
			}

			// Reconnection is handled inside the stream client; a
			// connection_failed event means it already exhausted its attempts.
			fatal := make(chan error, 1)
			stream.On(wsevents.EventConnectionFailed, func(wsevents.Event) {
				select {
				case fatal <- fmt.Errorf("event stream connection failed"):
				default:
				}
			})
			stream.On(wsevents.EventAuthenticated, func(wsevents.Event) {
				logger.Info("bot_stream_ready")
			})

			if err := stream.Connect(runCtx); err != nil {
				return fmt.Errorf("event stream connect: %w", err)
			}
			defer stream.Disconnect()
			logger.Info("bot_started", "team", settings.Team, "bot_name", settings.BotName)

			select {
			case <-runCtx.Done():
				logger.Info("bot_stop", "reason", "context_canceled")
				return nil
			case err := <-fatal:
				logger.Error("bot_stop", "reason", "stream_failed", "error", err.Error())
				return err
			}
		},
	}

	cmd.Flags().String("server-url", "", "Mattermost server URL (https://chat.example.com).")
	cmd.Flags().String("token", "", "Mattermost bot access token.")
	cmd.Flags().String("team", "", "Mattermost team name the bot operates in.")
	cmd.Flags().String("bot-name", "", "Name the bot goes by in prompts (warns when it differs from the account username).")
	cmd.Flags().Duration("ping-interval", 0, "WebSocket ping interval (0 uses the client default).")
	cmd.Flags().Int("requests-per-second", 10, "REST request budget per second.")
	cmd.Flags().String("llm-endpoint", "", "LLM API base URL (defaults to the OpenAI endpoint).")
	cmd.Flags().String("llm-api-key", "", "LLM API key.")
	cmd.Flags().String("llm-model", "gpt-4o-mini", "LLM model name.")
	cmd.Flags().Duration("llm-request-timeout", 0, "Per-request LLM timeout (0 uses the provider default).")
	cmd.Flags().Float64("llm-temperature", 0, "LLM sampling temperature (0 uses the provider default).")
	cmd.Flags().Int("llm-max-tokens", 0, "Max tokens per generation (0 uses the provider default).")
	cmd.Flags().String("system-prompt", "", "System prompt override.")
	cmd.Flags().Int("context-messages", 0, "Max prior thread messages carried as context.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address (empty disables).")

	return cmd
}
