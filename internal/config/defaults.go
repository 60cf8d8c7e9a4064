package config

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Voice: VoiceConfig{
			URL:           "ws://127.0.0.1:8787/v1/call",
			DialTimeoutMS: 5000,
			StreamAudio:   true,
		},
		Audio: AudioConfig{
			Input:        "default",
			Fallback:     "default",
			RequireInput: true,
		},
		Gateway: GatewayConfig{
			GRPC:      "127.0.0.1:50061",
			TimeoutMS: 30000,
		},
		Transcript: TranscriptConfig{SpeakerLabels: true},
		Generator:  GeneratorConfig{Model: "gemini-2.0-flash"},
		Sentry:     SentryConfig{Environment: "production"},
		Log:        LogConfig{Level: "info"},
	}
}
