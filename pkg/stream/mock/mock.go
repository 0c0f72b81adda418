// Package mock provides test doubles for the stream package interfaces.
//
// Use [Provider] to script connection outcomes (including per-attempt
// failures for retry tests) and [Session] to drive the inbound audio/event
// streams and inspect what the session controller sent.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
//	sess.EmitEvent(stream.Event{Type: stream.EventTurnComplete})
//	sess.Close()
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/tutorvox/tutorvox/pkg/stream"
)

// Compile-time interface assertions.
var (
	_ stream.Provider = (*Provider)(nil)
	_ stream.Session  = (*Session)(nil)
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the Config passed to Connect.
	Cfg stream.Config
}

// Provider is a mock implementation of stream.Provider.
type Provider struct {
	mu sync.Mutex

	// ConnectFunc, if non-nil, fully scripts Connect; all other connect
	// fields are ignored. Useful for per-attempt behaviour in retry tests.
	ConnectFunc func(ctx context.Context, cfg stream.Config) (stream.Session, error)

	// Session is returned by Connect. If nil, Connect returns a new
	// default Session.
	Session *Session

	// ConnectErr, if non-nil, is returned as the error from every Connect.
	ConnectErr error

	// ProviderCapabilities is returned by Capabilities.
	ProviderCapabilities stream.Capabilities

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns the scripted outcome.
func (p *Provider) Connect(ctx context.Context, cfg stream.Config) (stream.Session, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	fn := p.ConnectFunc
	sess := p.Session
	err := p.ConnectErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	return NewSession(), nil
}

// Capabilities returns ProviderCapabilities.
func (p *Provider) Capabilities() stream.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ProviderCapabilities
}

// Calls returns a snapshot of every recorded Connect call.
func (p *Provider) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.ConnectCalls))
	copy(out, p.ConnectCalls)
	return out
}

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of stream.Session. Tests feed inbound
// traffic with [Session.EmitAudio] and [Session.EmitEvent]; Close closes
// both channels exactly once.
type Session struct {
	mu sync.Mutex

	audioCh chan []byte
	events  chan stream.Event

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by the first Close.
	CloseErr error

	// ErrVal is returned by Err.
	ErrVal error

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closed bool
}

// NewSession creates a Session with buffered inbound channels.
func NewSession() *Session {
	return &Session{
		audioCh: make(chan []byte, 64),
		events:  make(chan stream.Event, 64),
	}
}

// EmitAudio queues an inbound audio chunk. Panics if called after Close,
// matching the real session's channel-ownership contract.
func (s *Session) EmitAudio(chunk []byte) {
	s.audioCh <- chunk
}

// EmitEvent queues an inbound event.
func (s *Session) EmitEvent(ev stream.Event) {
	s.events <- ev
}

// SetErr sets the value Err reports. Call before Close so consumers draining
// the channels observe it.
func (s *Session) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrVal = err
}

// SendAudio records the call and returns SendAudioErr, or an error if the
// session is already closed.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Audio returns the inbound audio channel.
func (s *Session) Audio() <-chan []byte { return s.audioCh }

// Events returns the inbound event channel.
func (s *Session) Events() <-chan stream.Event { return s.events }

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// Close closes the inbound channels once and counts the call. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.audioCh)
	close(s.events)
	return s.CloseErr
}

// Sent returns a snapshot of every recorded SendAudio call.
func (s *Session) Sent() []SendAudioCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SendAudioCall, len(s.SendAudioCalls))
	copy(out, s.SendAudioCalls)
	return out
}

// Closed reports whether Close has been called at least once.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
