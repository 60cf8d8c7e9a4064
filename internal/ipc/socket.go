package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning means another process owns the call socket.
var ErrAlreadyRunning = errors.New("parley call already running")

// SocketName is the file name of the call socket inside the runtime dir.
const SocketName = "parley.sock"

// RuntimeSocketPath returns the call socket under $XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(dir, SocketName), nil
}

// Lock takes single-owner control of the call socket.
type Lock struct {
	Path string
	// ProbeTimeout bounds the status probe sent to an existing socket.
	ProbeTimeout time.Duration
	// Attempts is the number of listen tries; values below 1 mean one.
	Attempts int
	// OnStale is called after the socket of a dead owner is unlinked.
	OnStale func(path string)
}

// Acquire listens on the lock path. A live owner yields ErrAlreadyRunning.
// A socket that accepts but never answers is left in place.
func (l Lock) Acquire(ctx context.Context) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	attempts := max(l.Attempts, 1)
	for attempt := 1; ; attempt++ {
		listener, err := net.Listen("unix", l.Path)
		if err == nil {
			if chmodErr := os.Chmod(l.Path, 0o600); chmodErr != nil {
				_ = listener.Close()
				return nil, fmt.Errorf("restrict socket %s: %w", l.Path, chmodErr)
			}
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", l.Path, err)
		}

		if err := l.clearStale(ctx); err != nil {
			return nil, err
		}
		if attempt >= attempts {
			return nil, fmt.Errorf("socket %s still busy after %d attempts", l.Path, attempts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
		}
	}
}

func (l Lock) clearStale(ctx context.Context) error {
	alive, err := Probe(ctx, l.Path, l.ProbeTimeout)
	switch {
	case alive:
		return ErrAlreadyRunning
	case err != nil:
		return fmt.Errorf("probe existing socket %s: %w", l.Path, err)
	}

	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", l.Path, err)
	}
	if l.OnStale != nil {
		l.OnStale(l.Path)
	}
	return nil
}
