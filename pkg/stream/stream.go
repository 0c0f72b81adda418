// Package stream defines the Provider interface for real-time speech-model
// backends.
//
// A stream provider wraps a hosted speech-to-speech service that accepts raw
// audio input and returns synthesised audio plus transcripts over a single
// stateful session. The central abstraction is [Session]: a bidirectional,
// multiplexed handle carrying outbound audio one way and audio, transcript
// fragments, and turn signals the other way.
//
// Transcript fragments and turn signals share one ordered [Session.Events]
// channel so that a turn-completion can never be observed before the
// fragments that belong to it.
//
// All implementations must be safe for concurrent use.
package stream

import "context"

// EventType classifies the non-audio events emitted by a [Session].
type EventType int

const (
	// EventUserTranscript is a fragment of the model's running recognition
	// of the user's speech.
	EventUserTranscript EventType = iota

	// EventModelTranscript is a fragment of the text form of the model's
	// spoken response.
	EventModelTranscript

	// EventTurnComplete signals that the current conversational exchange is
	// finalised; accumulated fragments can be committed.
	EventTurnComplete

	// EventInterrupted signals that the model abandoned its in-flight
	// response, typically because the user started speaking over it.
	EventInterrupted
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventUserTranscript:
		return "USER_TRANSCRIPT"
	case EventModelTranscript:
		return "MODEL_TRANSCRIPT"
	case EventTurnComplete:
		return "TURN_COMPLETE"
	case EventInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry on a session's ordered event stream. Text is set only
// for transcript fragment events.
type Event struct {
	Type EventType
	Text string
}

// ContextItem is one prior conversation turn supplied at connect time so the
// model can resume an interrupted conversation coherently.
type ContextItem struct {
	// Role is the speaker role: "user" or "model" ("assistant" is accepted
	// and mapped to "model").
	Role string

	// Content is the turn's text.
	Content string
}

// Config is the initial configuration for a new session.
type Config struct {
	// Voice selects the provider voice used for synthesised speech.
	Voice string

	// Instructions is the system-level prompt defining the session's
	// behaviour.
	Instructions string

	// Context holds prior conversation turns replayed to the model at
	// connect time. May be empty.
	Context []ContextItem

	// InputSampleRate is the rate in Hz of the PCM audio the caller will
	// send, so the provider can label outbound chunks truthfully. Zero
	// means the provider's default input rate.
	InputSampleRate int
}

// Capabilities describes static properties of a provider. The values are
// assumed constant for the lifetime of the Provider instance.
type Capabilities struct {
	// Voices lists the voice names available from this provider.
	Voices []string

	// OutputSampleRate is the rate in Hz of the PCM audio the provider
	// returns.
	OutputSampleRate int

	// MaxSessionDurationMs is the provider's hard upper bound on session
	// lifetime in milliseconds. Zero means no documented limit.
	MaxSessionDurationMs int
}

// Session represents an open streaming session. It is an interface so that
// test code can supply scripted implementations without a live connection.
//
// The session is the hot path of the audio pipeline — every method must
// return quickly, and consumers must drain the Audio and Events channels
// promptly to keep the provider's receive loop from stalling.
//
// Callers must call Close when the session is no longer needed.
type Session interface {
	// SendAudio delivers one encoded outbound audio chunk (s16le PCM at the
	// negotiated rate) to the model. Returns an error if the session is
	// closed or the transport rejects the write.
	SendAudio(chunk []byte) error

	// Audio returns a read-only channel of raw PCM byte chunks as the model
	// synthesises its spoken response. The channel is closed when the
	// session ends; check [Session.Err] afterwards to see whether it ended
	// cleanly.
	Audio() <-chan []byte

	// Events returns a read-only channel of transcript fragments and turn
	// signals in exact arrival order. Closed when the session ends.
	Events() <-chan Event

	// Err returns the error that terminated the session, or nil if it
	// ended cleanly (or is still running).
	Err() error

	// Close terminates the session, releases its resources, and closes the
	// Audio and Events channels. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over a speech-model backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new session with the given configuration. The
	// returned Session is ready to accept audio immediately. The caller
	// owns the Session and is responsible for calling Close.
	Connect(ctx context.Context, cfg Config) (Session, error)

	// Capabilities returns static metadata about the provider's model.
	Capabilities() Capabilities
}
