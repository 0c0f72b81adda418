// Package gemlive implements the stream.Provider interface for the Gemini
// Live API.
//
// It establishes a bidirectional WebSocket connection to the Live endpoint
// and exchanges JSON messages according to the BidiGenerateContent protocol.
// Outbound audio travels as base64-encoded PCM chunks in realtimeInput
// messages; inbound serverContent messages carry synthesised audio,
// input/output transcription fragments, and turn signals.
package gemlive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/tutorvox/tutorvox/pkg/stream"
)

// Compile-time assertions that Provider and session satisfy the stream
// interfaces.
var _ stream.Provider = (*Provider)(nil)
var _ stream.Session = (*session)(nil)

const (
	defaultModel   = "gemini-2.0-flash-live-001"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	// defaultInputRate is the input rate advertised on outbound chunks
	// when the caller does not declare one: 16-bit PCM at 16 kHz, mono,
	// little-endian.
	defaultInputRate = 16000

	// outputSampleRate is the rate of the PCM audio the Live API returns.
	outputSampleRate = 24000

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements stream.Provider for the Gemini Live API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new Live Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Capabilities returns static metadata about the Live provider.
func (p *Provider) Capabilities() stream.Capabilities {
	return stream.Capabilities{
		OutputSampleRate:     outputSampleRate,
		MaxSessionDurationMs: 15 * 60 * 1000,
		Voices:               []string{"Aoede", "Charon", "Fenrir", "Kore", "Puck"},
	}
}

// Connect establishes a new Live session with the given configuration. After
// the setup message, any prior conversation turns in cfg.Context are replayed
// as clientContent so the model resumes coherently. The returned Session is
// ready to accept audio immediately.
func (p *Provider) Connect(ctx context.Context, cfg stream.Config) (stream.Session, error) {
	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		p.baseURL, p.apiKey,
	)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemlive: dial: %w", err)
	}

	inputRate := cfg.InputSampleRate
	if inputRate <= 0 {
		inputRate = defaultInputRate
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:      conn,
		inputMIME: fmt.Sprintf("audio/pcm;rate=%d", inputRate),
		audioCh:   make(chan []byte, 64),
		events:    make(chan stream.Event, 64),
		done:      make(chan struct{}),
		ctx:       sessCtx,
		cancel:    sessCancel,
	}

	if err := sess.sendSetup(p.model, cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("gemlive: setup: %w", err)
	}
	if len(cfg.Context) > 0 {
		if err := sess.sendContext(cfg.Context); err != nil {
			sessCancel()
			conn.Close(websocket.StatusInternalError, "context replay failed")
			return nil, fmt.Errorf("gemlive: context replay: %w", err)
		}
	}

	go sess.receiveLoop()
	go sess.keepaliveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model             string             `json:"model"`
	GenerationConfig  generationConfig   `json:"generationConfig"`
	SystemInstruction *systemInstruction `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []contentTurn `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type contentTurn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent   `json:"serverContent,omitempty"`
	Error         *liveError       `json:"error,omitempty"`
}

type liveError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type transcription struct {
	Text string `json:"text"`
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn      *websocket.Conn
	inputMIME string
	audioCh   chan []byte
	events    chan stream.Event

	mu     sync.Mutex
	errVal error
	done   chan struct{}
	closed bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// sendSetup sends the initial BidiGenerateContent setup message.
func (s *session) sendSetup(model string, cfg stream.Config) error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"audio"},
			},
		},
	}

	if cfg.Instructions != "" {
		msg.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: cfg.Instructions}},
		}
	}

	if cfg.Voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}

	return s.writeJSON(msg)
}

// sendContext replays prior conversation turns as a single clientContent
// message so the model treats them as committed history.
func (s *session) sendContext(items []stream.ContextItem) error {
	turns := make([]contentTurn, len(items))
	for i, item := range items {
		role := item.Role
		switch role {
		case "assistant":
			role = "model"
		case "model":
			// already correct
		default:
			role = "user"
		}
		turns[i] = contentTurn{
			Role:  role,
			Parts: []part{{Text: item.Content}},
		}
	}

	msg := clientContentMessage{
		ClientContent: clientContent{
			Turns:        turns,
			TurnComplete: true,
		},
	}
	return s.writeJSON(msg)
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemlive: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads messages from the WebSocket and dispatches them.
// It owns audioCh and events: it closes both when it exits.
func (s *session) receiveLoop() {
	defer s.closeChannels()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			// If the session context was cancelled, exit cleanly.
			if s.ctx.Err() != nil {
				return
			}
			s.setErr(err)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // skip malformed frames
		}

		if msg.Error != nil {
			text := msg.Error.Message
			if text == "" {
				text = "unknown error"
			}
			s.setErr(fmt.Errorf("gemlive: server error: %s", text))
		}
		if msg.ServerContent != nil {
			if !s.handleServerContent(msg.ServerContent) {
				return
			}
		}
	}
}

// handleServerContent emits audio chunks and events in the order the server
// packed them: model turn parts first, then transcriptions, then turn
// signals. Returns false when the session context was cancelled mid-emit.
func (s *session) handleServerContent(sc *serverContent) bool {
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil {
				audioData, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil || len(audioData) == 0 {
					continue
				}
				if !s.emitAudio(audioData) {
					return false
				}
			}
			if p.Text != "" {
				if !s.emit(stream.Event{Type: stream.EventModelTranscript, Text: p.Text}) {
					return false
				}
			}
		}
	}

	// User speech recognition fragment.
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		if !s.emit(stream.Event{Type: stream.EventUserTranscript, Text: sc.InputTranscription.Text}) {
			return false
		}
	}

	// Text form of the model's spoken output.
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		if !s.emit(stream.Event{Type: stream.EventModelTranscript, Text: sc.OutputTranscription.Text}) {
			return false
		}
	}

	if sc.Interrupted {
		if !s.emit(stream.Event{Type: stream.EventInterrupted}) {
			return false
		}
	}
	if sc.TurnComplete {
		if !s.emit(stream.Event{Type: stream.EventTurnComplete}) {
			return false
		}
	}
	return true
}

func (s *session) emitAudio(chunk []byte) bool {
	select {
	case s.audioCh <- chunk:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *session) emit(ev stream.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// keepaliveLoop sends WebSocket pings to keep the Live connection alive.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

func (s *session) closeChannels() {
	s.closeOnce.Do(func() {
		close(s.audioCh)
		close(s.events)
	})
}

// ── Session methods ────────────────────────────────────────────────────────────

// SendAudio delivers a raw PCM audio chunk (s16le, mono, at the rate declared
// when the session was opened) to the model.
func (s *session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("gemlive: session closed")
	}
	s.mu.Unlock()

	encoded := base64.StdEncoding.EncodeToString(chunk)
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{
				{MIMEType: s.inputMIME, Data: encoded},
			},
		},
	}
	return s.writeJSON(msg)
}

// Audio returns the channel on which the model's synthesised audio arrives.
func (s *session) Audio() <-chan []byte { return s.audioCh }

// Events returns the ordered transcript/turn-signal channel.
func (s *session) Events() <-chan stream.Event { return s.events }

// Err returns the first non-nil error that caused the session to terminate.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()    // unblocks receiveLoop and keepaliveLoop
	close(s.done) // signals keepaliveLoop via done channel
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
