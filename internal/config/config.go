// Package config provides the configuration schema, loader, and file watcher
// for the TutorVox client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for TutorVox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	Audio   AudioConfig   `yaml:"audio"`
	Tutor   TutorConfig   `yaml:"tutor"`
	History HistoryConfig `yaml:"history"`
}

// ServerConfig holds the ops listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the ops endpoint (healthz, readyz,
	// metrics) listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// StreamConfig configures the remote speech-model connection.
type StreamConfig struct {
	// APIKey authenticates against the speech-model API. Required.
	APIKey string `yaml:"api_key"`

	// Model selects the speech model. Empty uses the provider default.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's default endpoint. Leave empty in
	// production; used for testing against local servers.
	BaseURL string `yaml:"base_url"`

	// Voice selects the synthesised voice.
	Voice string `yaml:"voice"`

	// ConnectAttempts bounds connection retries. Default 3.
	ConnectAttempts int `yaml:"connect_attempts"`

	// BackoffBaseMs is the linear backoff unit between attempts in
	// milliseconds. Default 1000.
	BackoffBaseMs int `yaml:"backoff_base_ms"`
}

// AudioConfig holds the capture pipeline parameters.
type AudioConfig struct {
	// CaptureRate is the microphone sample rate in Hz. Default 48000.
	CaptureRate int `yaml:"capture_rate"`

	// BlockSize is the capture block size in samples. Default 4096.
	BlockSize int `yaml:"block_size"`

	// TargetRate is the model input sample rate in Hz. Default 16000.
	TargetRate int `yaml:"target_rate"`

	// VolumeGain scales RMS amplitude into the 0-100 display volume.
	// Default 500.
	VolumeGain float64 `yaml:"volume_gain"`

	// VoiceThreshold is the RMS level above which a block counts as
	// voiced. Default 0.02.
	VoiceThreshold float64 `yaml:"voice_threshold"`
}

// TutorConfig holds session behaviour settings.
type TutorConfig struct {
	// Level is the CEFR proficiency level (A1, A2, B1, B2, C1, C2).
	// Default "B1". Editing this value in the file while a session runs
	// triggers a live level change.
	Level string `yaml:"level"`

	// SilenceTimeoutSeconds is the silence watchdog delay. Default 20.
	SilenceTimeoutSeconds int `yaml:"silence_timeout_seconds"`

	// SettleDelayMs is the pause between stop and restart during a level
	// change. Default 500.
	SettleDelayMs int `yaml:"settle_delay_ms"`

	// ContextTurns is how many prior conversation turns a level change
	// carries over. Default 6.
	ContextTurns int `yaml:"context_turns"`
}

// HistoryConfig configures the optional transcript store.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`

	// RetentionDays prunes sessions that ended more than this many days
	// ago on startup. Zero keeps everything.
	RetentionDays int `yaml:"retention_days"`
}
