package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gateway service.
	ServiceName  = "parley.feedback.v1.FeedbackGateway"
	submitMethod = "/" + ServiceName + "/Submit"
)

// ClientConfig controls gateway connection behavior.
type ClientConfig struct {
	Endpoint    string
	Timeout     time.Duration
	DialOptions []grpc.DialOption
}

// Client submits transcripts to a remote gateway over gRPC.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewClient prepares a lazily connecting gateway client.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("feedback gateway endpoint is empty")
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, cfg.DialOptions...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial feedback gateway %q: %w", endpoint, err)
	}

	return &Client{conn: conn, timeout: cfg.Timeout}, nil
}

// Submit sends one submission. A success=false answer returns ErrRejected
// alongside the decoded result.
func (c *Client) Submit(ctx context.Context, s Submission) (Result, error) {
	req, err := encodeSubmission(s)
	if err != nil {
		return Result{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, submitMethod, req, resp); err != nil {
		return Result{}, fmt.Errorf("submit feedback: %w", err)
	}

	result := decodeResult(resp)
	if !result.Success {
		return result, ErrRejected
	}
	return result, nil
}

// WaitReady connects and blocks until the channel is ready or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	c.conn.Connect()
	for {
		state := c.conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !c.conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RegisterServer exposes impl as the gateway service on s.
func RegisterServer(s grpc.ServiceRegistrar, impl Submitter) {
	s.RegisterService(&gatewayServiceDesc, impl)
}

var gatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Submitter)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parley/feedback/v1/gateway.proto",
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	handle := func(ctx context.Context, req any) (any, error) {
		submission, err := decodeSubmission(req.(*structpb.Struct))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		result, err := srv.(Submitter).Submit(ctx, submission)
		if err != nil {
			return nil, err
		}
		return encodeResult(result)
	}

	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitMethod}
	return interceptor(ctx, in, info, handle)
}
