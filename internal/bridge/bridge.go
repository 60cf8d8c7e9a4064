// Package bridge implements voice.Channel over a websocket voice-agent bridge.
//
// Control frames are JSON text messages. The client sends
// {"type":"start","profile":...,"variableValues":...} and {"type":"stop"};
// the bridge answers with voice.Event documents. Microphone PCM, when
// configured, is sent as binary messages for the lifetime of the call.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/parley/internal/failure"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/voice"
)

const writeWait = 5 * time.Second

var (
	// ErrClosed is returned by Start after Close.
	ErrClosed     = errors.New("voice bridge closed")
	errLinkClosed = errors.New("voice bridge link closed")
)

// AudioStream is a live PCM source; audio.Capture satisfies it.
type AudioStream interface {
	Chunks() <-chan []byte
	Stop() error
}

// AudioSource opens one AudioStream per call.
type AudioSource interface {
	Open(context.Context) (AudioStream, error)
}

// AudioSourceFunc adapts a function to AudioSource.
type AudioSourceFunc func(context.Context) (AudioStream, error)

func (f AudioSourceFunc) Open(ctx context.Context) (AudioStream, error) {
	return f(ctx)
}

// Config describes how to reach the bridge.
type Config struct {
	URL         string
	Token       string
	DialTimeout time.Duration
	// Audio is optional; nil sends no PCM.
	Audio  AudioSource
	Logger *slog.Logger
}

// Channel is a websocket-backed voice.Channel. One call is live at a time;
// starting a new call drops whatever link the previous one left behind.
type Channel struct {
	cfg    Config
	dialer *websocket.Dialer
	events *voice.Emitter
	logger *slog.Logger

	mu     sync.Mutex
	link   *link
	closed bool

	wg sync.WaitGroup
}

var _ voice.Channel = (*Channel)(nil)

// New returns an idle channel. Nothing is dialed until Start.
func New(cfg Config) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Channel{
		cfg:    cfg,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: cfg.DialTimeout},
		events: voice.NewEmitter(),
		logger: logger,
	}
}

// Subscribe registers an event listener.
func (c *Channel) Subscribe() *voice.Subscription {
	return c.events.Subscribe()
}

type startFrame struct {
	Type           string            `json:"type"`
	Profile        voice.Profile     `json:"profile"`
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

type controlFrame struct {
	Type string `json:"type"`
}

// Start dials the bridge and sends the start frame. It returns once the
// frame is written; the call-start event arrives on the subscription.
func (c *Channel) Start(ctx context.Context, req voice.StartRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if stale := c.link; stale != nil {
		c.link = nil
		stale.shutdown()
		stale.quiesce()
	}

	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}

	var stream AudioStream
	if c.cfg.Audio != nil {
		s, err := c.cfg.Audio.Open(ctx)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		stream = s
	}

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if stream != nil {
			_ = stream.Stop()
		}
		return dialError(resp, err)
	}

	l := &link{conn: conn, audio: stream, done: make(chan struct{})}
	frame, err := json.Marshal(startFrame{Type: "start", Profile: req.Profile, VariableValues: req.Variables})
	if err != nil {
		l.shutdown()
		return fmt.Errorf("encode start frame: %w", err)
	}
	if err := l.write(websocket.TextMessage, frame, deadline(ctx)); err != nil {
		l.shutdown()
		return fmt.Errorf("send start frame: %w", err)
	}

	c.link = l
	c.wg.Add(1)
	go c.readLoop(l)
	if stream != nil {
		c.wg.Add(1)
		go c.pumpAudio(l, stream)
	}

	c.logger.Debug("voice bridge call started", "url", c.cfg.URL, "profile", string(req.Profile.Kind))
	return nil
}

// Stop asks the bridge to end the call. It is a no-op without a live link.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil {
		return nil
	}

	frame, _ := json.Marshal(controlFrame{Type: "stop"})
	if err := l.write(websocket.TextMessage, frame, deadline(ctx)); err != nil {
		if errors.Is(err, errLinkClosed) {
			return nil
		}
		return fmt.Errorf("send stop frame: %w", err)
	}
	return nil
}

// Close drops any live link, waits for its goroutines, and closes every
// subscription.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l != nil {
		l.shutdown()
	}
	c.wg.Wait()
	c.events.Close()
	return nil
}

func (c *Channel) readLoop(l *link) {
	defer c.wg.Done()
	defer c.release(l)

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emit(l, voice.Event{Type: voice.EventEnded})
				return
			}
			c.emit(l, voice.Event{
				Type:  voice.EventError,
				Error: &voice.ErrorPayload{Type: "transport", Message: err.Error()},
			})
			return
		}

		ev, ok := c.decode(data)
		if !ok {
			continue
		}
		if !c.emit(l, ev) {
			return
		}
	}
}

// decode parses one bridge frame. An error frame whose body cannot be
// parsed is still delivered as an error so the call does not hang.
func (c *Channel) decode(data []byte) (voice.Event, bool) {
	var ev voice.Event
	err := json.Unmarshal(data, &ev)
	if err == nil {
		return ev, ev.Type != ""
	}

	var head struct {
		Type voice.EventType `json:"type"`
	}
	if json.Unmarshal(data, &head) == nil && head.Type == voice.EventError {
		c.logger.Warn("bridge error frame has an unexpected shape", "error", err)
		return voice.Event{
			Type:  voice.EventError,
			Error: &voice.ErrorPayload{Type: "malformed-error", Message: string(data)},
		}, true
	}
	c.logger.Warn("discarding malformed bridge frame", "error", err)
	return voice.Event{}, false
}

// emit delivers ev only while l is the live link. After call-end, or once
// the link is shut down, nothing more from l reaches subscribers.
func (c *Channel) emit(l *link, ev voice.Event) bool {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()
	if l.isDone() || l.ended {
		return false
	}
	if ev.Type == voice.EventEnded {
		l.ended = true
	}
	return c.events.EmitUntil(l.done, ev)
}

func (c *Channel) pumpAudio(l *link, stream AudioStream) {
	defer c.wg.Done()
	defer func() { _ = stream.Stop() }()

	for chunk := range stream.Chunks() {
		if err := l.write(websocket.BinaryMessage, chunk, time.Now().Add(writeWait)); err != nil {
			if !errors.Is(err, errLinkClosed) {
				c.logger.Debug("audio pump stopped", "error", err)
			}
			return
		}
	}
}

// release detaches l when the read side ends.
func (c *Channel) release(l *link) {
	c.mu.Lock()
	if c.link == l {
		c.link = nil
	}
	c.mu.Unlock()
	l.shutdown()
}

// Probe completes a websocket handshake with the bridge and hangs up
// without starting a call.
func Probe(ctx context.Context, cfg Config) error {
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: cfg.DialTimeout}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return dialError(resp, err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "probe"),
		time.Now().Add(time.Second))
	return conn.Close()
}

func dialError(resp *http.Response, err error) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: voice bridge rejected token (%s)", failure.ErrMissingCredential, resp.Status)
	}
	return fmt.Errorf("dial voice bridge: %w", err)
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(writeWait)
}

// link is one websocket connection carrying one call.
type link struct {
	conn  *websocket.Conn
	audio AudioStream

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once

	// emitMu is held by the read loop while it hands an event to the
	// emitter; ended is guarded by it.
	emitMu sync.Mutex
	ended  bool
}

// quiesce waits for an in-flight emit on a shut-down link to finish.
func (l *link) quiesce() {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()
}

func (l *link) write(messageType int, data []byte, deadline time.Time) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.isDone() {
		return errLinkClosed
	}
	_ = l.conn.SetWriteDeadline(deadline)
	return l.conn.WriteMessage(messageType, data)
}

func (l *link) isDone() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *link) shutdown() {
	l.once.Do(func() {
		l.writeMu.Lock()
		close(l.done)
		_ = l.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		l.writeMu.Unlock()
		_ = l.conn.Close()
		if l.audio != nil {
			_ = l.audio.Stop()
		}
	})
}
