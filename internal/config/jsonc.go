package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type fileConfig struct {
	Voice      *fileVoice      `json:"voice"`
	Audio      *fileAudio      `json:"audio"`
	Gateway    *fileGateway    `json:"gateway"`
	Transcript *fileTranscript `json:"transcript"`
	HTTP       *fileHTTP       `json:"http"`
	Store      *fileStore      `json:"store"`
	Generator  *fileGenerator  `json:"generator"`
	Sentry     *fileSentry     `json:"sentry"`
	Log        *fileLog        `json:"log"`
}

type fileVoice struct {
	URL              *string `json:"url"`
	Token            *string `json:"token"`
	WorkflowID       *string `json:"workflow_id"`
	DialTimeoutMS    *int    `json:"dial_timeout_ms"`
	ConnectTimeoutMS *int    `json:"connect_timeout_ms"`
	StreamAudio      *bool   `json:"stream_audio"`
}

type fileAudio struct {
	Input        *string `json:"input"`
	Fallback     *string `json:"fallback"`
	RequireInput *bool   `json:"require_input"`
}

type fileGateway struct {
	GRPC      *string `json:"grpc"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type fileTranscript struct {
	SpeakerLabels *bool `json:"speaker_labels"`
}

type fileHTTP struct {
	Listen *string `json:"listen"`
}

type fileStore struct {
	DatabaseURL *string `json:"database_url"`
}

type fileGenerator struct {
	APIKey  *string `json:"api_key"`
	Model   *string `json:"model"`
	BaseURL *string `json:"base_url"`
}

type fileSentry struct {
	DSN         *string `json:"dsn"`
	Environment *string `json:"environment"`
}

type fileLog struct {
	Level *string `json:"level"`
}

// Parse decodes JSONC content over base. Comments and trailing commas are
// accepted; unknown keys are rejected with a line and column.
func Parse(content string, base Config) (Config, error) {
	if strings.TrimSpace(content) == "" {
		return base, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var file fileConfig
	if err := decoder.Decode(&file); err != nil {
		return Config{}, locate(normalized, err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("multiple JSON values are not allowed")
		}
		return Config{}, locate(normalized, err)
	}

	cfg := base
	file.applyTo(&cfg)
	return cfg, nil
}

func (f fileConfig) applyTo(cfg *Config) {
	if v := f.Voice; v != nil {
		setString(&cfg.Voice.URL, v.URL)
		setString(&cfg.Voice.Token, v.Token)
		setString(&cfg.Voice.WorkflowID, v.WorkflowID)
		setValue(&cfg.Voice.DialTimeoutMS, v.DialTimeoutMS)
		setValue(&cfg.Voice.ConnectTimeoutMS, v.ConnectTimeoutMS)
		setValue(&cfg.Voice.StreamAudio, v.StreamAudio)
	}
	if a := f.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		setValue(&cfg.Audio.RequireInput, a.RequireInput)
	}
	if g := f.Gateway; g != nil {
		setString(&cfg.Gateway.GRPC, g.GRPC)
		setValue(&cfg.Gateway.TimeoutMS, g.TimeoutMS)
	}
	if t := f.Transcript; t != nil {
		setValue(&cfg.Transcript.SpeakerLabels, t.SpeakerLabels)
	}
	if h := f.HTTP; h != nil {
		setString(&cfg.HTTP.Listen, h.Listen)
	}
	if s := f.Store; s != nil {
		setString(&cfg.Store.DatabaseURL, s.DatabaseURL)
	}
	if g := f.Generator; g != nil {
		setString(&cfg.Generator.APIKey, g.APIKey)
		setString(&cfg.Generator.Model, g.Model)
		setString(&cfg.Generator.BaseURL, g.BaseURL)
	}
	if s := f.Sentry; s != nil {
		setString(&cfg.Sentry.DSN, s.DSN)
		setString(&cfg.Sentry.Environment, s.Environment)
	}
	if l := f.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// normalizeJSONC blanks comments and trailing commas in one pass. Offsets
// are preserved so decoder errors still point at the original text.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)

	const (
		code = iota
		str
		strEscape
		lineComment
		blockComment
	)
	mode := code

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch mode {
		case str:
			if ch == '\\' {
				mode = strEscape
			} else if ch == '"' {
				mode = code
			}
		case strEscape:
			mode = str
		case lineComment:
			if ch == '\n' || ch == '\r' {
				mode = code
				continue
			}
			out[i] = ' '
		case blockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				mode = code
				continue
			}
			if ch != '\n' && ch != '\r' && ch != '\t' {
				out[i] = ' '
			}
		default:
			switch {
			case ch == '"':
				mode = str
			case ch == '/' && i+1 < len(out) && out[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				mode = lineComment
			case ch == '/' && i+1 < len(out) && out[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				i++
				mode = blockComment
			case ch == '}' || ch == ']':
				blankTrailingComma(out[:i])
			}
		}
	}

	if mode == blockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(out), nil
}

// blankTrailingComma replaces a comma that is the last non-space byte of
// prefix. Comments are already blanked when this runs.
func blankTrailingComma(prefix []byte) {
	for j := len(prefix) - 1; j >= 0; j-- {
		switch prefix[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case ',':
			prefix[j] = ' '
		}
		return
	}
}

func locate(content string, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		offset    int64 = -1
	)
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol converts a 1-based byte offset into a line and column.
func lineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := min(int(offset), len(content))

	before := content[:max(limit-1, 0)]
	line := strings.Count(before, "\n") + 1
	col := len(before) - strings.LastIndexByte(before, '\n')
	return line, col
}
