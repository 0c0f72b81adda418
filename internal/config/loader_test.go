package config_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/tutorvox/tutorvox/internal/config"
)

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(`
stream:
  api_key: test-key
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Stream.Voice != "Aoede" {
		t.Errorf("voice = %q, want Aoede", cfg.Stream.Voice)
	}
	if cfg.Stream.ConnectAttempts != 3 {
		t.Errorf("connect_attempts = %d, want 3", cfg.Stream.ConnectAttempts)
	}
	if cfg.Stream.BackoffBaseMs != 1000 {
		t.Errorf("backoff_base_ms = %d, want 1000", cfg.Stream.BackoffBaseMs)
	}
	if cfg.Audio.CaptureRate != 48000 || cfg.Audio.BlockSize != 4096 || cfg.Audio.TargetRate != 16000 {
		t.Errorf("audio defaults = %d/%d/%d, want 48000/4096/16000",
			cfg.Audio.CaptureRate, cfg.Audio.BlockSize, cfg.Audio.TargetRate)
	}
	if cfg.Audio.VolumeGain != 500 {
		t.Errorf("volume_gain = %v, want 500", cfg.Audio.VolumeGain)
	}
	if cfg.Audio.VoiceThreshold != 0.02 {
		t.Errorf("voice_threshold = %v, want 0.02", cfg.Audio.VoiceThreshold)
	}
	if cfg.Tutor.Level != "B1" {
		t.Errorf("level = %q, want B1", cfg.Tutor.Level)
	}
	if cfg.Tutor.SilenceTimeoutSeconds != 20 {
		t.Errorf("silence_timeout_seconds = %d, want 20", cfg.Tutor.SilenceTimeoutSeconds)
	}
	if cfg.Tutor.SettleDelayMs != 500 {
		t.Errorf("settle_delay_ms = %d, want 500", cfg.Tutor.SettleDelayMs)
	}
	if cfg.Tutor.ContextTurns != 6 {
		t.Errorf("context_turns = %d, want 6", cfg.Tutor.ContextTurns)
	}
}

func TestLoadFromReader_ExplicitValuesKept(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(`
server:
  listen_addr: ":9090"
  log_level: debug
stream:
  api_key: test-key
  model: custom-live-model
  voice: Puck
  connect_attempts: 5
audio:
  capture_rate: 44100
  block_size: 2048
tutor:
  level: c1
  context_turns: 10
history:
  path: /tmp/history.db
  retention_days: 30
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Stream.Model != "custom-live-model" || cfg.Stream.Voice != "Puck" {
		t.Errorf("stream = %+v", cfg.Stream)
	}
	if cfg.Stream.ConnectAttempts != 5 {
		t.Errorf("connect_attempts = %d, want 5", cfg.Stream.ConnectAttempts)
	}
	if cfg.Audio.CaptureRate != 44100 || cfg.Audio.BlockSize != 2048 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Tutor.Level != "c1" {
		t.Errorf("level = %q, want raw c1 (parsing happens at use)", cfg.Tutor.Level)
	}
	if cfg.History.Path != "/tmp/history.db" || cfg.History.RetentionDays != 30 {
		t.Errorf("history = %+v", cfg.History)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
stream:
  api_key: test-key
  api_secrett: oops
`))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadFromReader_EmptyInputFailsValidation(t *testing.T) {
	t.Parallel()

	// An empty file yields a default config, which still lacks the
	// required API key.
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil {
		t.Fatal("empty config accepted despite missing api key")
	}
	if !strings.Contains(err.Error(), "stream.api_key") {
		t.Errorf("error %q does not mention stream.api_key", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
stream:
  api_key: file-key
tutor:
  level: A2
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.APIKey != "file-key" || cfg.Tutor.Level != "A2" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/tutorvox.yaml")
	if err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}
