package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.NotContains(t, normalized, `"two",`)
	require.NotContains(t, normalized, "true,")
	require.Len(t, normalized, len(input))
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text, \"quoted\"",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, `// and /* comment-like */ text, \"quoted\"`)
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestParseAppliesSectionsOverBase(t *testing.T) {
	cfg, err := Parse(`{
  "voice": {
    "url": "wss://voice.example.com/v1/call",
    "connect_timeout_ms": 15000, // optional
    "stream_audio": false,
  },
  "audio": {"input": " USB Mic ", "require_input": false},
  "gateway": {"grpc": "gateway.internal:443"},
  "transcript": {"speaker_labels": false},
  "generator": {"api_key": "gk", "base_url": "http://127.0.0.1:9000"},
  "log": {"level": "debug"},
}`, Default())
	require.NoError(t, err)

	require.Equal(t, "wss://voice.example.com/v1/call", cfg.Voice.URL)
	require.Equal(t, 15000, cfg.Voice.ConnectTimeoutMS)
	require.False(t, cfg.Voice.StreamAudio)
	require.Equal(t, 5000, cfg.Voice.DialTimeoutMS)
	require.Equal(t, "USB Mic", cfg.Audio.Input)
	require.Equal(t, "default", cfg.Audio.Fallback)
	require.False(t, cfg.Audio.RequireInput)
	require.Equal(t, "gateway.internal:443", cfg.Gateway.GRPC)
	require.Equal(t, 30000, cfg.Gateway.TimeoutMS)
	require.False(t, cfg.Transcript.SpeakerLabels)
	require.Equal(t, "gk", cfg.Generator.APIKey)
	require.Equal(t, "gemini-2.0-flash", cfg.Generator.Model)
	require.Equal(t, "http://127.0.0.1:9000", cfg.Generator.BaseURL)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(`{"voice": {"uri": "ws://x"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown field "uri"`)
}

func TestParseReportsLineAndColumn(t *testing.T) {
	_, err := Parse("{\n  \"gateway\": {\n    \"timeout_ms\": \"soon\"\n  }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestParseRejectsMultipleValues(t *testing.T) {
	_, err := Parse(`{"log": {"level": "info"}} {"log": {}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestLineCol(t *testing.T) {
	content := "line1\nline2\nline3"

	line, col := lineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = lineCol(content, 8)
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = lineCol(content, 0)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)
}
