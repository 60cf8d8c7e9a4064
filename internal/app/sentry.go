package app

import (
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/version"
)

// newReporter initializes Sentry when a DSN is configured. The returned
// flush must run before exit.
func newReporter(cfg config.SentryConfig, logger *slog.Logger) (session.Reporter, func()) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, func() {}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     version.Release(),
	})
	if err != nil {
		logger.Warn("sentry init failed", "error", err.Error())
		return nil, func() {}
	}
	logger.Debug("sentry initialized", "environment", cfg.Environment)

	return sentryReporter{hub: sentry.CurrentHub()}, func() { sentry.Flush(2 * time.Second) }
}

type sentryReporter struct {
	hub *sentry.Hub
}

func (r sentryReporter) Report(callID string, reason failure.Reason) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("call_id", callID)
		scope.SetTag("failure_kind", string(reason.Kind))
		scope.SetLevel(sentry.LevelError)
		r.hub.CaptureMessage("call failed: " + reason.String())
	})
}
