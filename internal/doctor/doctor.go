// Package doctor reports whether credentials, the voice bridge, the feedback
// gateway, audio input, and the call log are ready for a session.
package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/bridge"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/feedback"
	"github.com/rbright/parley/internal/store"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes credential, connectivity, and device checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("not found at %q; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	checks = append(checks, checkPresent("voice.token", cfg.Config.Voice.Token, config.EnvVoiceToken))
	checks = append(checks, checkPresent("voice.workflow_id", cfg.Config.Voice.WorkflowID, config.EnvWorkflowID))
	checks = append(checks, checkBridge(ctx, cfg.Config))
	checks = append(checks, checkGateway(ctx, cfg.Config))

	if cfg.Config.Audio.RequireInput || cfg.Config.Voice.StreamAudio {
		checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	}
	if strings.TrimSpace(cfg.Config.Store.DatabaseURL) != "" {
		checks = append(checks, checkStore(ctx, cfg.Config))
	}

	return Report{Checks: checks}
}

// checkPresent reports whether a secret is set without echoing it.
func checkPresent(name, value, env string) Check {
	if strings.TrimSpace(value) == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("not set (config or %s)", env)}
	}
	return Check{Name: name, Pass: true, Message: "set"}
}

// checkBridge completes a websocket handshake with the configured token.
func checkBridge(ctx context.Context, cfg config.Config) Check {
	timeout := cfg.Voice.DialTimeout()
	if timeout <= 0 || timeout > probeTimeout {
		timeout = probeTimeout
	}
	err := bridge.Probe(ctx, bridge.Config{
		URL:         cfg.Voice.URL,
		Token:       cfg.Voice.Token,
		DialTimeout: timeout,
	})
	if err != nil {
		return Check{Name: "voice.bridge", Pass: false, Message: err.Error()}
	}
	return Check{Name: "voice.bridge", Pass: true, Message: fmt.Sprintf("reachable at %s", cfg.Voice.URL)}
}

// checkGateway waits briefly for the gRPC channel to report ready.
func checkGateway(ctx context.Context, cfg config.Config) Check {
	client, err := feedback.NewClient(feedback.ClientConfig{Endpoint: cfg.Gateway.GRPC, Timeout: cfg.Gateway.Timeout()})
	if err != nil {
		return Check{Name: "feedback.gateway", Pass: false, Message: err.Error()}
	}
	defer func() { _ = client.Close() }()

	readyCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := client.WaitReady(readyCtx); err != nil {
		return Check{Name: "feedback.gateway", Pass: false, Message: err.Error()}
	}
	return Check{Name: "feedback.gateway", Pass: true, Message: fmt.Sprintf("ready at %s", cfg.Gateway.GRPC)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkStore(ctx context.Context, cfg config.Config) Check {
	storeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	s, err := store.Open(storeCtx, cfg.Store.DatabaseURL)
	if err != nil {
		return Check{Name: "store", Pass: false, Message: err.Error()}
	}
	s.Close()
	return Check{Name: "store", Pass: true, Message: "connected; schema ready"}
}
