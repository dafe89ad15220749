package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestBotSettingsFromViperKeys(t *testing.T) {
	viper.Reset()
	viper.Set("mattermost.server_url", "https://chat.example.com")
	viper.Set("mattermost.token", "tok-1")
	viper.Set("mattermost.team", "engineering")
	viper.Set("mattermost.bot_name", "morph")
	viper.Set("mattermost.ping_interval", "45s")
	viper.Set("rate.requests_per_second", 7)
	viper.Set("llm.endpoint", "https://llm.internal")
	viper.Set("llm.api_key", "sk-1")
	viper.Set("llm.model", "gpt-4o")
	viper.Set("llm.request_timeout", "20s")
	viper.Set("router.context_messages", 8)
	viper.Set("health.listen", "8086")

	cmd := newBotCmd()
	s, err := botSettingsFromCmd(cmd)
	if err != nil {
		t.Fatalf("botSettingsFromCmd: %v", err)
	}
	if s.ServerURL != "https://chat.example.com" || s.Token != "tok-1" || s.Team != "engineering" {
		t.Fatalf("connection settings mismatch: %+v", s)
	}
	if s.BotName != "morph" {
		t.Fatalf("bot name mismatch: got %q", s.BotName)
	}
	if s.PingInterval != 45*time.Second {
		t.Fatalf("ping interval mismatch: got %v want 45s", s.PingInterval)
	}
	if s.RequestsPerSecond != 7 {
		t.Fatalf("rate mismatch: got %d want 7", s.RequestsPerSecond)
	}
	if s.LLMRequestTimeout != 20*time.Second {
		t.Fatalf("llm timeout mismatch: got %v want 20s", s.LLMRequestTimeout)
	}
	if s.LLMModel != "gpt-4o" || s.LLMEndpoint != "https://llm.internal" {
		t.Fatalf("llm settings mismatch: %+v", s)
	}
	if s.ContextMessages != 8 {
		t.Fatalf("context messages mismatch: got %d want 8", s.ContextMessages)
	}
	if s.HealthListen != "8086" {
		t.Fatalf("health listen mismatch: got %q", s.HealthListen)
	}
}

func TestBotSettingsFlagOverridesViper(t *testing.T) {
	viper.Reset()
	viper.Set("mattermost.server_url", "https://chat.example.com")
	viper.Set("mattermost.token", "tok-1")
	viper.Set("mattermost.team", "engineering")
	viper.Set("mattermost.ping_interval", "45s")

	cmd := newBotCmd()
	if err := cmd.Flags().Set("ping-interval", "10s"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	s, err := botSettingsFromCmd(cmd)
	if err != nil {
		t.Fatalf("botSettingsFromCmd: %v", err)
	}
	if s.PingInterval != 10*time.Second {
		t.Fatalf("ping interval mismatch: got %v want 10s", s.PingInterval)
	}
}

func TestBotSettingsDefaults(t *testing.T) {
	viper.Reset()
	viper.Set("mattermost.server_url", "https://chat.example.com")
	viper.Set("mattermost.token", "tok-1")
	viper.Set("mattermost.team", "engineering")

	s, err := botSettingsFromCmd(newBotCmd())
	if err != nil {
		t.Fatalf("botSettingsFromCmd: %v", err)
	}
	if s.RequestsPerSecond != 10 {
		t.Fatalf("rate default mismatch: got %d want 10", s.RequestsPerSecond)
	}
	if s.LLMModel != "gpt-4o-mini" {
		t.Fatalf("model default mismatch: got %q", s.LLMModel)
	}
	if s.PingInterval != 0 || s.LLMRequestTimeout != 0 {
		t.Fatalf("unset durations should stay zero: %+v", s)
	}
}

func TestBotSettingsNameMissingField(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{
			name: "server url",
			set:  map[string]any{"mattermost.token": "t", "mattermost.team": "x"},
			want: "mattermost.server_url",
		},
		{
			name: "token",
			set:  map[string]any{"mattermost.server_url": "https://c", "mattermost.team": "x"},
			want: "mattermost.token",
		},
		{
			name: "team",
			set:  map[string]any{"mattermost.server_url": "https://c", "mattermost.token": "t"},
			want: "mattermost.team",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			for k, v := range tc.set {
				viper.Set(k, v)
			}
			_, err := botSettingsFromCmd(newBotCmd())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error mismatch: got %q want mention of %q", err.Error(), tc.want)
			}
		})
	}
}
