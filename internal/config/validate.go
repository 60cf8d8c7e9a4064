package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rbright/parley/internal/logging"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	raw := strings.TrimSpace(cfg.Voice.URL)
	if raw == "" {
		return nil, fmt.Errorf("voice.url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("voice.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("voice.url must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("voice.url must include a host")
	}
	if cfg.Voice.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("voice.dial_timeout_ms must be > 0")
	}
	if cfg.Voice.ConnectTimeoutMS < 0 {
		return nil, fmt.Errorf("voice.connect_timeout_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.Gateway.GRPC) == "" {
		return nil, fmt.Errorf("gateway.grpc must not be empty")
	}
	if cfg.Gateway.TimeoutMS <= 0 {
		return nil, fmt.Errorf("gateway.timeout_ms must be > 0")
	}

	if listen := strings.TrimSpace(cfg.HTTP.Listen); listen != "" {
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return nil, fmt.Errorf("http.listen: %w", err)
		}
	}

	if strings.TrimSpace(cfg.Generator.APIKey) != "" && strings.TrimSpace(cfg.Generator.Model) == "" {
		return nil, fmt.Errorf("generator.model must not be empty when generator.api_key is set")
	}
	if base := strings.TrimSpace(cfg.Generator.BaseURL); base != "" {
		if u, err := url.Parse(base); err != nil || u.Host == "" {
			return nil, fmt.Errorf("generator.base_url must be an absolute URL, got %q", base)
		}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	if strings.TrimSpace(cfg.Voice.Token) == "" {
		warnings = append(warnings, Warning{Message: "voice.token is empty; calls will fail until " + EnvVoiceToken + " or voice.token is set"})
	}
	if strings.TrimSpace(cfg.Voice.WorkflowID) == "" {
		warnings = append(warnings, Warning{Message: "voice.workflow_id is empty; onboarding calls are unavailable"})
	}
	if u.Scheme == "ws" && !isLoopback(u.Hostname()) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("voice.url %q is not encrypted; the token is sent in clear text", raw)})
	}

	return warnings, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
