package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tutorvox/tutorvox/internal/capture"
	"github.com/tutorvox/tutorvox/internal/observe"
	"github.com/tutorvox/tutorvox/internal/playback"
	"github.com/tutorvox/tutorvox/pkg/audio"
	"github.com/tutorvox/tutorvox/pkg/device"
	"github.com/tutorvox/tutorvox/pkg/stream"
)

// SessionState is the lifecycle phase of a tutoring session.
type SessionState int

const (
	// StateIdle means no session exists and no resources are held.
	StateIdle SessionState = iota

	// StateConnecting means devices are being acquired and the model dialed.
	StateConnecting

	// StateActive means the full pipeline is running.
	StateActive

	// StateClosing means teardown is in progress.
	StateClosing
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the controller's externally visible
// state, delivered to the state observer and returned by [Controller.State].
type Snapshot struct {
	Phase     SessionState
	Connected bool
	Volume    float64
	Silent    bool
}

// Settings holds the tunable parameters of a tutoring session. The zero
// value is usable; unset fields take the package defaults.
type Settings struct {
	// Voice selects the provider voice.
	Voice string

	// CaptureRate is the device sample rate in Hz. Default 48000.
	CaptureRate int

	// BlockSize is the capture block size in samples. Default 4096.
	BlockSize int

	// TargetRate is the model input rate in Hz. Default 16000.
	TargetRate int

	// VolumeGain scales RMS into display volume. Default 500.
	VolumeGain float64

	// VoiceThreshold is the voice-activity RMS threshold. Default 0.02.
	VoiceThreshold float64

	// ConnectAttempts bounds connection retries. Default 3.
	ConnectAttempts int

	// BackoffBase is the linear backoff unit between attempts: the wait
	// before attempt n+1 is BackoffBase × n. Default 1s.
	BackoffBase time.Duration

	// SettleDelay is the pause between stop and restart during a level
	// change, giving devices time to release. Default 500ms.
	SettleDelay time.Duration

	// ContextTurns is how many prior conversation turns a level change
	// carries into the new session. Default 6.
	ContextTurns int

	// SilenceTimeout is the silence watchdog delay. Default 20s.
	SilenceTimeout time.Duration
}

// Defaults for unset Settings fields.
const (
	DefaultCaptureRate     = 48000
	DefaultBlockSize       = 4096
	DefaultTargetRate      = 16000
	DefaultVolumeGain      = 500
	DefaultVoiceThreshold  = 0.02
	DefaultConnectAttempts = 3
	DefaultBackoffBase     = time.Second
	DefaultSettleDelay     = 500 * time.Millisecond
	DefaultContextTurns    = 6
	DefaultSilenceTimeout  = 20 * time.Second
)

func (s Settings) withDefaults() Settings {
	if s.CaptureRate <= 0 {
		s.CaptureRate = DefaultCaptureRate
	}
	if s.BlockSize <= 0 {
		s.BlockSize = DefaultBlockSize
	}
	if s.TargetRate <= 0 {
		s.TargetRate = DefaultTargetRate
	}
	if s.VolumeGain <= 0 {
		s.VolumeGain = DefaultVolumeGain
	}
	if s.VoiceThreshold <= 0 {
		s.VoiceThreshold = DefaultVoiceThreshold
	}
	if s.ConnectAttempts <= 0 {
		s.ConnectAttempts = DefaultConnectAttempts
	}
	if s.BackoffBase <= 0 {
		s.BackoffBase = DefaultBackoffBase
	}
	if s.SettleDelay <= 0 {
		s.SettleDelay = DefaultSettleDelay
	}
	if s.ContextTurns <= 0 {
		s.ContextTurns = DefaultContextTurns
	}
	if s.SilenceTimeout <= 0 {
		s.SilenceTimeout = DefaultSilenceTimeout
	}
	return s
}

// HistoryStore persists sessions and chat records. All methods are called
// best-effort: failures are logged, never propagated into the session
// lifecycle.
type HistoryStore interface {
	BeginSession(ctx context.Context, id uuid.UUID, level string, startedAt time.Time) error
	EndSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error
	AppendMessage(ctx context.Context, sessionID uuid.UUID, msg ChatMessage) error
}

// Controller owns one tutoring session at a time: the capture loop, the
// playback scheduler, the streaming session, and the watchdog. All state
// transitions are serialized by one mutex; every async continuation carries
// the epoch it was started under and no-ops when a newer Start or Stop has
// moved the epoch on.
type Controller struct {
	platform device.Platform
	provider stream.Provider
	settings Settings
	metrics  *observe.Metrics
	logger   *slog.Logger
	history  HistoryStore

	chat     *ChatLog
	watchdog *Watchdog

	mu        sync.Mutex
	state     SessionState
	epoch     uint64
	level     Level
	volume    float64
	connected bool
	sessionID uuid.UUID

	dialCancel context.CancelFunc
	session    stream.Session
	scheduler  *playback.Scheduler
	closers    []func() error

	inputBuf  strings.Builder
	outputBuf strings.Builder

	onState  func(Snapshot)
	onVolume func(float64)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithHistory enables best-effort persistence of sessions and chat records.
func WithHistory(store HistoryStore) Option {
	return func(c *Controller) { c.history = store }
}

// NewController creates an idle controller. It holds no resources until
// Start.
func NewController(platform device.Platform, provider stream.Provider, settings Settings, opts ...Option) *Controller {
	c := &Controller{
		platform: platform,
		provider: provider,
		settings: settings.withDefaults(),
		chat:     &ChatLog{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.watchdog = NewWatchdog(c.settings.SilenceTimeout, c.onSilenceChange)
	return c
}

// OnStateChange registers the observer called after every externally visible
// state change. Single observer, replace semantics.
func (c *Controller) OnStateChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnVolume registers the observer called with the metered volume of every
// capture block. Single observer, replace semantics.
func (c *Controller) OnVolume(fn func(float64)) {
	c.mu.Lock()
	c.onVolume = fn
	c.mu.Unlock()
}

// OnChatMessage registers the observer called for every committed chat
// record. Single observer, replace semantics.
func (c *Controller) OnChatMessage(fn func(ChatMessage)) {
	c.chat.OnAppend(fn)
}

// Messages returns a snapshot of all committed chat records.
func (c *Controller) Messages() []ChatMessage {
	return c.chat.Messages()
}

// Level returns the level of the current or most recent session.
func (c *Controller) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// State returns the current externally visible state.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:     c.state,
		Connected: c.connected,
		Volume:    c.volume,
		Silent:    c.watchdog.Silent(),
	}
}

func (c *Controller) notifyState() {
	c.mu.Lock()
	fn := c.onState
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// AddSystemMessage commits a client-generated notice to the chat log.
func (c *Controller) AddSystemMessage(text string) {
	c.commitMessage(ChatMessage{
		ID:        uuid.New(),
		Sender:    SenderSystem,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// commitMessage appends a record to the chat log, counts it, and persists it
// best-effort.
func (c *Controller) commitMessage(msg ChatMessage) {
	c.chat.Append(msg)
	c.metrics.RecordChatMessage(context.Background(), string(msg.Sender))

	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()

	if c.history != nil && sid != uuid.Nil {
		if err := c.history.AppendMessage(context.Background(), sid, msg); err != nil {
			c.logger.Warn("failed to persist chat record", "error", err)
		}
	}
}

// Start brings up a full session at the given level. It is a no-op when a
// session already exists (any state but Idle). contextItems, when non-empty,
// are replayed to the model at connect time so the conversation resumes
// coherently.
//
// Start blocks through device acquisition and the bounded connect retries.
// A Stop issued while Start is in flight cancels the dial and wins the race:
// Start releases whatever it acquired and returns nil without the session
// ever becoming active.
func (c *Controller) Start(ctx context.Context, level Level, contextItems []stream.ContextItem) error {
	if !level.IsValid() {
		return fmt.Errorf("tutor: invalid level %q", level)
	}

	ctx, span := observe.StartSpan(ctx, "tutor.session.start",
		trace.WithAttributes(attribute.String("tutor.level", level.String())))
	defer span.End()

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.epoch++
	epoch := c.epoch
	c.level = level
	dialCtx, dialCancel := context.WithCancel(ctx)
	c.dialCancel = dialCancel
	c.mu.Unlock()
	defer dialCancel()
	c.notifyState()

	capDev, timeline, session, err := c.acquire(dialCtx, level, contextItems)
	if err != nil {
		return c.failStart(epoch, err)
	}

	// Commit: the resources only become the controller's once we are sure
	// no Stop moved the epoch on while we were dialing.
	c.mu.Lock()
	if c.state != StateConnecting || c.epoch != epoch {
		c.mu.Unlock()
		releaseAll(c.logger, session.Close, timeline.Close, capDev.Close)
		return nil
	}

	sched := &playback.Scheduler{Timeline: timeline, Metrics: c.metrics, Logger: c.logger}
	capCtx, capCancel := context.WithCancel(context.Background())

	c.session = session
	c.scheduler = sched
	c.dialCancel = nil
	c.sessionID = uuid.New()
	sid := c.sessionID
	// Closers run in reverse on Stop: halt playback, stop capture, close
	// devices, close the stream session.
	c.closers = []func() error{
		session.Close,
		timeline.Close,
		capDev.Close,
		func() error { capCancel(); return nil },
		func() error { sched.Stop(context.Background()); return nil },
	}
	c.state = StateActive
	c.connected = true
	c.mu.Unlock()

	c.watchdog.Reset()
	c.metrics.SessionStarts.Add(ctx, 1)
	c.metrics.ActiveSessions.Add(ctx, 1)
	c.notifyState()

	if c.history != nil {
		if err := c.history.BeginSession(context.Background(), sid, level.String(), time.Now()); err != nil {
			c.logger.Warn("failed to persist session start", "error", err)
		}
	}

	outputRate := c.provider.Capabilities().OutputSampleRate
	if outputRate <= 0 {
		outputRate = 24000
	}

	loop := &capture.Loop{
		Device: capDev,
		Meter: capture.Meter{
			Gain:      c.settings.VolumeGain,
			Threshold: c.settings.VoiceThreshold,
		},
		TargetRate: c.settings.TargetRate,
		Send:       func(p audio.Payload) error { return session.SendAudio(p.Data) },
		Observe:    func(volume float64, voiced bool) { c.observeCapture(epoch, volume, voiced) },
		Metrics:    c.metrics,
		Logger:     c.logger,
	}
	go func() {
		if err := loop.Run(capCtx); err != nil {
			c.logger.Error("capture loop failed", "error", err)
		}
	}()
	go c.pumpAudio(session, sched, outputRate)
	go c.pumpEvents(epoch, session)

	observe.Logger(ctx).Info("session active", "level", level, "session_id", sid)
	return nil
}

// acquire opens the devices and dials the model with bounded retries. On any
// failure it releases what it already acquired and returns the error.
func (c *Controller) acquire(ctx context.Context, level Level, contextItems []stream.ContextItem) (device.CaptureDevice, device.OutputTimeline, stream.Session, error) {
	capDev, err := c.platform.OpenCapture(ctx, device.CaptureConfig{
		SampleRate: c.settings.CaptureRate,
		Channels:   1,
		BlockSize:  c.settings.BlockSize,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open capture device: %w", err)
	}

	outputRate := c.provider.Capabilities().OutputSampleRate
	if outputRate <= 0 {
		outputRate = 24000
	}
	timeline, err := c.platform.OpenOutput(ctx, device.OutputConfig{
		SampleRate: outputRate,
		Channels:   1,
	})
	if err != nil {
		releaseAll(c.logger, capDev.Close)
		return nil, nil, nil, fmt.Errorf("open output device: %w", err)
	}

	// Blocks at or below the target rate pass through the downsampler
	// unchanged, so the session must be told the rate actually sent.
	sendRate := c.settings.TargetRate
	if r := capDev.SampleRate(); r > 0 && r < sendRate {
		sendRate = r
	}

	session, err := c.connectWithRetry(ctx, level, contextItems, sendRate)
	if err != nil {
		releaseAll(c.logger, timeline.Close, capDev.Close)
		return nil, nil, nil, err
	}
	return capDev, timeline, session, nil
}

// connectWithRetry dials the provider up to ConnectAttempts times with
// linear backoff. The wait between attempts is interruptible by ctx, which
// Stop cancels.
func (c *Controller) connectWithRetry(ctx context.Context, level Level, contextItems []stream.ContextItem, sendRate int) (stream.Session, error) {
	cfg := stream.Config{
		Voice:           c.settings.Voice,
		Instructions:    instructionsFor(level),
		Context:         contextItems,
		InputSampleRate: sendRate,
	}

	start := time.Now()
	defer func() {
		c.metrics.ConnectDuration.Record(ctx, time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= c.settings.ConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		session, err := c.provider.Connect(ctx, cfg)
		if err == nil {
			c.metrics.RecordConnectAttempt(ctx, "ok")
			return session, nil
		}
		c.metrics.RecordConnectAttempt(ctx, "error")
		lastErr = err
		c.logger.Warn("connection attempt failed",
			"attempt", attempt, "max_attempts", c.settings.ConnectAttempts, "error", err)

		if attempt < c.settings.ConnectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.settings.BackoffBase * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("connect failed after %d attempts: %w", c.settings.ConnectAttempts, lastErr)
}

// failStart finishes a Start whose acquisition failed. A dial aborted by
// Stop is not an error: Stop already transitioned the controller to Idle and
// the user asked for exactly this outcome.
func (c *Controller) failStart(epoch uint64, err error) error {
	c.mu.Lock()
	interrupted := c.epoch != epoch || c.state != StateConnecting
	if !interrupted {
		c.state = StateIdle
		c.dialCancel = nil
	}
	c.mu.Unlock()
	c.notifyState()

	if interrupted || errors.Is(err, context.Canceled) {
		return nil
	}

	c.logger.Error("failed to start session", "error", err)
	c.AddSystemMessage("Could not reach the tutor. Please check your connection and try again.")
	return fmt.Errorf("tutor: start: %w", err)
}

// Stop tears down the current session. Idempotent: extra calls, concurrent
// calls, and calls while Idle are all safe no-ops. Teardown always reaches
// Idle even when individual releases fail.
func (c *Controller) Stop() {
	ctx, span := observe.StartSpan(context.Background(), "tutor.session.stop")
	defer span.End()

	c.mu.Lock()
	switch c.state {
	case StateIdle, StateClosing:
		c.mu.Unlock()
		return

	case StateConnecting:
		// The in-flight Start observes the moved epoch and disposes
		// whatever it acquired itself.
		c.epoch++
		if c.dialCancel != nil {
			c.dialCancel()
			c.dialCancel = nil
		}
		c.state = StateIdle
		c.volume = 0
		c.connected = false
		c.mu.Unlock()
		c.watchdog.Cancel()
		c.notifyState()
		return
	}

	// Active.
	c.epoch++
	c.state = StateClosing
	closers := c.closers
	c.closers = nil
	c.session = nil
	c.scheduler = nil
	sid := c.sessionID
	c.sessionID = uuid.Nil
	// A turn cut off by teardown never commits; its fragments must not
	// leak into the next session's first record.
	c.inputBuf.Reset()
	c.outputBuf.Reset()
	c.mu.Unlock()
	c.notifyState()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			c.logger.Warn("failed to release session resource", "error", err)
		}
	}
	c.watchdog.Cancel()

	c.metrics.SessionStops.Add(ctx, 1)
	c.metrics.ActiveSessions.Add(ctx, -1)
	if c.history != nil && sid != uuid.Nil {
		if err := c.history.EndSession(ctx, sid, time.Now()); err != nil {
			c.logger.Warn("failed to persist session end", "error", err)
		}
	}

	c.mu.Lock()
	c.state = StateIdle
	c.volume = 0
	c.connected = false
	c.mu.Unlock()
	c.notifyState()
	observe.Logger(ctx).Info("session stopped", "session_id", sid)
}

// ChangeLevel restarts the session at a new level, carrying the most recent
// conversation turns so the tutor keeps its thread. The settle delay between
// stop and restart gives the devices time to release cleanly.
func (c *Controller) ChangeLevel(ctx context.Context, newLevel Level) error {
	if !newLevel.IsValid() {
		return fmt.Errorf("tutor: invalid level %q", newLevel)
	}

	ctx, span := observe.StartSpan(ctx, "tutor.session.change_level",
		trace.WithAttributes(attribute.String("tutor.level", newLevel.String())))
	defer span.End()

	items := contextItems(c.chat.LastTurns(c.settings.ContextTurns))
	c.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.settings.SettleDelay):
	}

	return c.Start(ctx, newLevel, items)
}

// contextItems converts chat records into connect-time context turns.
func contextItems(msgs []ChatMessage) []stream.ContextItem {
	items := make([]stream.ContextItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, stream.ContextItem{
			Role:    string(m.Sender),
			Content: m.Text,
		})
	}
	return items
}

// observeCapture handles one metered capture block: update the UI volume and
// feed the watchdog on voiced input. Stale epochs are discarded; the capture
// loop may deliver a few blocks after Stop has moved on.
func (c *Controller) observeCapture(epoch uint64, volume float64, voiced bool) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.volume = volume
	fn := c.onVolume
	c.mu.Unlock()

	if fn != nil {
		fn(volume)
	}
	if voiced {
		c.watchdog.Reset()
	}
}

// onSilenceChange is the watchdog observer.
func (c *Controller) onSilenceChange(silent bool) {
	if silent {
		c.metrics.WatchdogFires.Add(context.Background(), 1)
		c.logger.Info("prolonged silence detected")
	}
	c.notifyState()
}

// pumpAudio decodes inbound model audio and hands it to the scheduler. A bad
// chunk is logged and skipped; the stream continues. Runs until the session's
// audio channel closes.
func (c *Controller) pumpAudio(session stream.Session, sched *playback.Scheduler, rate int) {
	for chunk := range session.Audio() {
		blocks, err := audio.DecodePCM16(chunk, rate, 1)
		if err != nil {
			c.metrics.DecodeFailures.Add(context.Background(), 1)
			c.logger.Warn("failed to decode audio chunk", "error", err)
			continue
		}
		for _, block := range blocks {
			// Scheduler errors are already logged and counted; after
			// Stop it simply rejects.
			_ = sched.Enqueue(context.Background(), block)
		}
	}
}

// pumpEvents applies inbound transcript and turn events until the session's
// event channel closes, then handles the session end.
func (c *Controller) pumpEvents(epoch uint64, session stream.Session) {
	for ev := range session.Events() {
		c.handleEvent(epoch, ev)
	}
	c.handleSessionEnd(epoch, session.Err())
}

// handleEvent applies one inbound event under the epoch guard. Chat records
// are committed outside the lock: observers may call back into the
// controller.
func (c *Controller) handleEvent(epoch uint64, ev stream.Event) {
	var commits []ChatMessage
	var flush *playback.Scheduler

	c.mu.Lock()
	if c.epoch != epoch || c.state != StateActive {
		c.mu.Unlock()
		return
	}
	switch ev.Type {
	case stream.EventUserTranscript:
		c.inputBuf.WriteString(ev.Text)
	case stream.EventModelTranscript:
		c.outputBuf.WriteString(ev.Text)
	case stream.EventTurnComplete:
		commits = c.flushTurnLocked()
	case stream.EventInterrupted:
		// The model abandoned its in-flight response: commit what was
		// said and drop the audio scheduled beyond the interruption.
		commits = c.flushTurnLocked()
		flush = c.scheduler
	}
	c.mu.Unlock()

	for _, msg := range commits {
		c.commitMessage(msg)
	}
	if flush != nil {
		flush.Flush(context.Background())
	}
}

// flushTurnLocked commits the accumulated transcript buffers as chat records,
// user first. Caller holds c.mu.
func (c *Controller) flushTurnLocked() []ChatMessage {
	var commits []ChatMessage
	now := time.Now()
	if c.inputBuf.Len() > 0 {
		commits = append(commits, ChatMessage{
			ID:        uuid.New(),
			Sender:    SenderUser,
			Text:      c.inputBuf.String(),
			Timestamp: now,
		})
		c.inputBuf.Reset()
	}
	if c.outputBuf.Len() > 0 {
		commits = append(commits, ChatMessage{
			ID:        uuid.New(),
			Sender:    SenderModel,
			Text:      c.outputBuf.String(),
			Timestamp: now,
		})
		c.outputBuf.Reset()
	}
	return commits
}

// handleSessionEnd reacts to the remote side closing the session while the
// controller still believes it is active: post a notice for network-looking
// failures, then tear down.
func (c *Controller) handleSessionEnd(epoch uint64, err error) {
	c.mu.Lock()
	stale := c.epoch != epoch || c.state != StateActive
	c.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		if isTransient(err) {
			c.AddSystemMessage("Connection to the tutor was lost.")
		}
		c.logger.Error("session ended with error", "error", err)
	} else {
		c.logger.Info("session closed by remote")
	}
	c.Stop()
}

// isTransient reports whether err looks like a network interruption worth a
// user-visible notice, as opposed to a protocol or programming error.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset", "connection refused", "broken pipe",
		"timeout", "temporarily unavailable", "network", "closed",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// instructionsFor builds the minimal system prompt for a level.
func instructionsFor(level Level) string {
	return fmt.Sprintf(
		"You are a friendly spoken-language tutor. The learner is at CEFR level %s. "+
			"Keep your vocabulary and pace appropriate for that level, gently correct "+
			"mistakes, and keep the conversation going with follow-up questions.",
		level)
}

// releaseAll runs release funcs in order, logging failures.
func releaseAll(log *slog.Logger, fns ...func() error) {
	for _, fn := range fns {
		if err := fn(); err != nil {
			log.Warn("failed to release resource", "error", err)
		}
	}
}
