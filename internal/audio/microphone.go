package audio

import (
	"context"
	"fmt"

	"github.com/rbright/parley/internal/failure"
)

// Microphone checks that a usable input source exists before a call starts.
type Microphone struct {
	Input    string
	Fallback string
	// Required disables the check when false, for bridges that do not take
	// audio from this host.
	Required bool

	// selectDevice is replaced in tests.
	selectDevice func(ctx context.Context, input, fallback string) (Selection, error)
}

// Check resolves the configured input. Any failure wraps failure.ErrPermissionDenied.
func (m Microphone) Check(ctx context.Context) error {
	if !m.Required {
		return nil
	}
	_, err := m.Select(ctx)
	return err
}

// Select resolves the configured input device.
func (m Microphone) Select(ctx context.Context) (Selection, error) {
	pick := m.selectDevice
	if pick == nil {
		pick = SelectDevice
	}
	selection, err := pick(ctx, m.Input, m.Fallback)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", failure.ErrPermissionDenied, err)
	}
	return selection, nil
}
