package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/metrics"
)

const (
	maxRequestBytes = 4 << 10
	requestDeadline = 2 * time.Second
)

// Handler answers one command for the call owner.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers one request per connection until ctx ends or the listener
// closes. In-flight requests finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			serveConn(ctx, conn, handler)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	_ = conn.SetReadDeadline(time.Now().Add(requestDeadline))
	enc := json.NewEncoder(conn)

	var req Request
	if err := json.NewDecoder(io.LimitReader(conn, maxRequestBytes)).Decode(&req); err != nil {
		metrics.IncIPCRequest("invalid", false)
		_ = enc.Encode(Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		metrics.IncIPCRequest("invalid", false)
		_ = enc.Encode(Response{OK: false, Error: "empty command"})
		return
	}

	resp := handler.Handle(ctx, req)
	metrics.IncIPCRequest(req.Command, resp.OK)
	_ = conn.SetWriteDeadline(time.Now().Add(requestDeadline))
	_ = enc.Encode(resp)
}
