package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables that override secrets from the file.
const (
	EnvVoiceToken  = "PARLEY_VOICE_TOKEN"
	EnvWorkflowID  = "PARLEY_WORKFLOW_ID"
	EnvDatabaseURL = "PARLEY_DATABASE_URL"
	EnvSentryDSN   = "PARLEY_SENTRY_DSN"
	EnvGeminiKey   = "PARLEY_GEMINI_API_KEY"
)

// Loaded captures the resolved path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, applies environment overrides, and validates.
func Load(explicitPath string) (Loaded, error) {
	return load(explicitPath, os.Getenv)
}

func load(explicitPath string, getenv func(string) string) (Loaded, error) {
	path, err := resolvePath(explicitPath, getenv, os.UserHomeDir)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default()}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		loaded.Exists = true
		cfg, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
		}
		loaded.Config = cfg
	}

	applyEnv(&loaded.Config, getenv)

	warnings, err := Validate(loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", path, err)
	}
	loaded.Warnings = append(loaded.Warnings, warnings...)
	return loaded, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Voice.Token, EnvVoiceToken)
	set(&cfg.Voice.WorkflowID, EnvWorkflowID)
	set(&cfg.Store.DatabaseURL, EnvDatabaseURL)
	set(&cfg.Sentry.DSN, EnvSentryDSN)
	set(&cfg.Generator.APIKey, EnvGeminiKey)
}
