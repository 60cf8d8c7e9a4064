package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.Voice.Token = "token"
	cfg.Voice.WorkflowID = "wf-onboarding"
	return cfg
}

func TestValidateDefaultsWithCredentials(t *testing.T) {
	warnings, err := Validate(validConfig())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateWarnsOnMissingCredentials(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, EnvVoiceToken)
	require.Contains(t, warnings[1].Message, "workflow_id")
}

func TestValidateWarnsOnPlaintextRemoteURL(t *testing.T) {
	cfg := validConfig()
	cfg.Voice.URL = "ws://voice.example.com/v1/call"

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "not encrypted")
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "empty url", mutate: func(c *Config) { c.Voice.URL = " " }, want: "voice.url must not be empty"},
		{name: "http scheme", mutate: func(c *Config) { c.Voice.URL = "https://voice.example.com" }, want: "ws or wss"},
		{name: "no host", mutate: func(c *Config) { c.Voice.URL = "wss:///path" }, want: "must include a host"},
		{name: "dial timeout", mutate: func(c *Config) { c.Voice.DialTimeoutMS = 0 }, want: "dial_timeout_ms"},
		{name: "connect timeout", mutate: func(c *Config) { c.Voice.ConnectTimeoutMS = -1 }, want: "connect_timeout_ms"},
		{name: "gateway", mutate: func(c *Config) { c.Gateway.GRPC = "" }, want: "gateway.grpc"},
		{name: "gateway timeout", mutate: func(c *Config) { c.Gateway.TimeoutMS = -5 }, want: "gateway.timeout_ms"},
		{name: "listen", mutate: func(c *Config) { c.HTTP.Listen = "8080" }, want: "http.listen"},
		{name: "generator model", mutate: func(c *Config) { c.Generator.APIKey = "k"; c.Generator.Model = " " }, want: "generator.model"},
		{name: "generator base url", mutate: func(c *Config) { c.Generator.BaseURL = "/v1beta" }, want: "generator.base_url"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, want: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
