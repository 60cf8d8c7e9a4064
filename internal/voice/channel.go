package voice

import "context"

// Channel is the vendor connection abstraction: one inbound event stream and
// two outbound commands.
type Channel interface {
	// Subscribe registers a new event listener. Callers must Close it.
	Subscribe() *Subscription
	// Start issues the start command and returns once the channel has
	// acknowledged it.
	Start(context.Context, StartRequest) error
	// Stop issues the stop command without waiting for the call to end.
	Stop(context.Context) error
}

// StartRequest is the payload of one start command.
type StartRequest struct {
	Profile   Profile
	Variables map[string]string
}
