// Package config resolves, parses, validates, and defaults parley configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Voice      VoiceConfig
	Audio      AudioConfig
	Gateway    GatewayConfig
	Transcript TranscriptConfig
	HTTP       HTTPConfig
	Store      StoreConfig
	Generator  GeneratorConfig
	Sentry     SentryConfig
	Log        LogConfig
}

// VoiceConfig locates and authenticates against the voice bridge.
type VoiceConfig struct {
	URL              string
	Token            string
	WorkflowID       string
	DialTimeoutMS    int
	ConnectTimeoutMS int
	StreamAudio      bool
}

func (v VoiceConfig) DialTimeout() time.Duration {
	return time.Duration(v.DialTimeoutMS) * time.Millisecond
}

// ConnectTimeout is zero when disabled.
func (v VoiceConfig) ConnectTimeout() time.Duration {
	return time.Duration(v.ConnectTimeoutMS) * time.Millisecond
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input        string
	Fallback     string
	RequireInput bool
}

// GatewayConfig locates the feedback gateway.
type GatewayConfig struct {
	GRPC      string
	TimeoutMS int
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

type TranscriptConfig struct {
	SpeakerLabels bool
}

// HTTPConfig controls the status endpoint. Empty Listen disables it.
type HTTPConfig struct {
	Listen string
}

// StoreConfig controls the call log. Empty DatabaseURL disables it.
type StoreConfig struct {
	DatabaseURL string
}

// GeneratorConfig controls interview question generation. Empty APIKey
// disables it.
type GeneratorConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
