package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/tutorvox/tutorvox/internal/tutor"
)

// KnownVoices lists the voices the default speech model offers. [Validate]
// warns about other values rather than rejecting them, since the provider
// may add voices faster than this list is updated.
var KnownVoices = []string{"Aoede", "Charon", "Fenrir", "Kore", "Puck"}

// Defaults for unset config fields, applied by [LoadFromReader].
const (
	DefaultListenAddr            = ":8080"
	DefaultVoice                 = "Aoede"
	DefaultConnectAttempts       = 3
	DefaultBackoffBaseMs         = 1000
	DefaultCaptureRate           = 48000
	DefaultBlockSize             = 4096
	DefaultTargetRate            = 16000
	DefaultVolumeGain            = 500
	DefaultVoiceThreshold        = 0.02
	DefaultLevel                 = "B1"
	DefaultSilenceTimeoutSeconds = 20
	DefaultSettleDelayMs         = 500
	DefaultContextTurns          = 6
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Stream.Voice == "" {
		cfg.Stream.Voice = DefaultVoice
	}
	if cfg.Stream.ConnectAttempts == 0 {
		cfg.Stream.ConnectAttempts = DefaultConnectAttempts
	}
	if cfg.Stream.BackoffBaseMs == 0 {
		cfg.Stream.BackoffBaseMs = DefaultBackoffBaseMs
	}
	if cfg.Audio.CaptureRate == 0 {
		cfg.Audio.CaptureRate = DefaultCaptureRate
	}
	if cfg.Audio.BlockSize == 0 {
		cfg.Audio.BlockSize = DefaultBlockSize
	}
	if cfg.Audio.TargetRate == 0 {
		cfg.Audio.TargetRate = DefaultTargetRate
	}
	if cfg.Audio.VolumeGain == 0 {
		cfg.Audio.VolumeGain = DefaultVolumeGain
	}
	if cfg.Audio.VoiceThreshold == 0 {
		cfg.Audio.VoiceThreshold = DefaultVoiceThreshold
	}
	if cfg.Tutor.Level == "" {
		cfg.Tutor.Level = DefaultLevel
	}
	if cfg.Tutor.SilenceTimeoutSeconds == 0 {
		cfg.Tutor.SilenceTimeoutSeconds = DefaultSilenceTimeoutSeconds
	}
	if cfg.Tutor.SettleDelayMs == 0 {
		cfg.Tutor.SettleDelayMs = DefaultSettleDelayMs
	}
	if cfg.Tutor.ContextTurns == 0 {
		cfg.Tutor.ContextTurns = DefaultContextTurns
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Stream.APIKey == "" {
		errs = append(errs, errors.New("stream.api_key is required"))
	}
	if cfg.Stream.ConnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("stream.connect_attempts %d must be positive", cfg.Stream.ConnectAttempts))
	}
	if cfg.Stream.BackoffBaseMs < 0 {
		errs = append(errs, fmt.Errorf("stream.backoff_base_ms %d must be positive", cfg.Stream.BackoffBaseMs))
	}
	if cfg.Stream.Voice != "" && !slices.Contains(KnownVoices, cfg.Stream.Voice) {
		slog.Warn("unknown voice name, passing through to the provider",
			"voice", cfg.Stream.Voice, "known", KnownVoices)
	}

	if cfg.Audio.CaptureRate < 0 {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d must be positive", cfg.Audio.CaptureRate))
	}
	if cfg.Audio.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("audio.block_size %d must be positive", cfg.Audio.BlockSize))
	}
	if cfg.Audio.TargetRate < 0 {
		errs = append(errs, fmt.Errorf("audio.target_rate %d must be positive", cfg.Audio.TargetRate))
	}
	if cfg.Audio.TargetRate > cfg.Audio.CaptureRate && cfg.Audio.CaptureRate > 0 {
		slog.Warn("audio.target_rate exceeds capture_rate; audio will be sent at the capture rate",
			"capture_rate", cfg.Audio.CaptureRate, "target_rate", cfg.Audio.TargetRate)
	}
	if cfg.Audio.VoiceThreshold < 0 || cfg.Audio.VoiceThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.voice_threshold %.3f is out of range [0, 1]", cfg.Audio.VoiceThreshold))
	}

	if _, err := tutor.ParseLevel(cfg.Tutor.Level); err != nil {
		errs = append(errs, fmt.Errorf("tutor.level %q is invalid; valid values: A1, A2, B1, B2, C1, C2", cfg.Tutor.Level))
	}
	if cfg.Tutor.SilenceTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("tutor.silence_timeout_seconds %d must be positive", cfg.Tutor.SilenceTimeoutSeconds))
	}
	if cfg.Tutor.ContextTurns < 0 {
		errs = append(errs, fmt.Errorf("tutor.context_turns %d must be positive", cfg.Tutor.ContextTurns))
	}

	if cfg.History.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("history.retention_days %d must be positive", cfg.History.RetentionDays))
	}
	if cfg.History.RetentionDays > 0 && cfg.History.Path == "" {
		slog.Warn("history.retention_days is set but history.path is empty; persistence is disabled")
	}

	return errors.Join(errs...)
}
