// Command tutorvox is the terminal front-end for the TutorVox voice tutor.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tutorvox/tutorvox/internal/config"
	"github.com/tutorvox/tutorvox/internal/health"
	"github.com/tutorvox/tutorvox/internal/history"
	"github.com/tutorvox/tutorvox/internal/observe"
	"github.com/tutorvox/tutorvox/internal/tutor"
	"github.com/tutorvox/tutorvox/pkg/device/portaudio"
	"github.com/tutorvox/tutorvox/pkg/stream/gemlive"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tutorvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "tutorvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("tutorvox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "tutorvox",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Audio platform ────────────────────────────────────────────────────────
	platform, err := portaudio.New()
	if err != nil {
		slog.Error("failed to initialise audio platform", "err", err)
		return 1
	}
	defer func() {
		if err := platform.Close(); err != nil {
			slog.Warn("audio platform close error", "err", err)
		}
	}()

	// ── History store (optional) ──────────────────────────────────────────────
	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			slog.Error("failed to open history store", "path", cfg.History.Path, "err", err)
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("history store close error", "err", err)
			}
		}()
		if cfg.History.RetentionDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
			pruned, err := store.Prune(ctx, cutoff)
			if err != nil {
				slog.Warn("failed to prune history", "err", err)
			} else if pruned > 0 {
				slog.Info("pruned old sessions", "count", pruned, "before", cutoff)
			}
		}
	}

	// ── Stream provider ───────────────────────────────────────────────────────
	var streamOpts []gemlive.Option
	if cfg.Stream.Model != "" {
		streamOpts = append(streamOpts, gemlive.WithModel(cfg.Stream.Model))
	}
	if cfg.Stream.BaseURL != "" {
		streamOpts = append(streamOpts, gemlive.WithBaseURL(cfg.Stream.BaseURL))
	}
	provider := gemlive.New(cfg.Stream.APIKey, streamOpts...)

	// ── Session controller ────────────────────────────────────────────────────
	settings := tutor.Settings{
		Voice:           cfg.Stream.Voice,
		CaptureRate:     cfg.Audio.CaptureRate,
		BlockSize:       cfg.Audio.BlockSize,
		TargetRate:      cfg.Audio.TargetRate,
		VolumeGain:      cfg.Audio.VolumeGain,
		VoiceThreshold:  cfg.Audio.VoiceThreshold,
		ConnectAttempts: cfg.Stream.ConnectAttempts,
		BackoffBase:     time.Duration(cfg.Stream.BackoffBaseMs) * time.Millisecond,
		SettleDelay:     time.Duration(cfg.Tutor.SettleDelayMs) * time.Millisecond,
		ContextTurns:    cfg.Tutor.ContextTurns,
		SilenceTimeout:  time.Duration(cfg.Tutor.SilenceTimeoutSeconds) * time.Second,
	}
	ctrlOpts := []tutor.Option{
		tutor.WithLogger(logger),
		tutor.WithMetrics(metrics),
	}
	if store != nil {
		ctrlOpts = append(ctrlOpts, tutor.WithHistory(store))
	}
	controller := tutor.NewController(platform, provider, settings, ctrlOpts...)

	controller.OnChatMessage(func(msg tutor.ChatMessage) {
		fmt.Printf("  [%s] %s\n", msg.Sender, msg.Text)
	})
	registerStatePrinter(controller)

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if old.Tutor.Level == new.Tutor.Level {
			return
		}
		level, err := tutor.ParseLevel(new.Tutor.Level)
		if err != nil {
			slog.Warn("ignoring level change from config", "level", new.Tutor.Level, "err", err)
			return
		}
		if controller.State().Phase != tutor.StateActive {
			slog.Info("level updated in config; takes effect on next start", "level", level)
			return
		}
		slog.Info("level changed in config, restarting session", "level", level)
		if err := controller.ChangeLevel(ctx, level); err != nil {
			slog.Error("failed to change level", "err", err)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Ops server ────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	var checkers []health.Checker
	if store != nil {
		checkers = append(checkers, health.Checker{Name: "history", Check: store.Ping})
	}
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	printStartupSummary(cfg)
	slog.Info("ready — type 'start' to begin, 'quit' to exit")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		commandLoop(gctx, controller, cfg)
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		controller.Stop()
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down…")
	controller.Stop()
	slog.Info("goodbye")
	return 0
}

// ── Terminal front-end ─────────────────────────────────────────────────────────

// commandLoop reads commands from stdin until ctx is cancelled, stdin closes,
// or the user quits. Session errors are printed, never fatal.
func commandLoop(ctx context.Context, controller *tutor.Controller, cfg *config.Config) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
			arg = strings.TrimSpace(arg)

			switch strings.ToLower(cmd) {
			case "":
				// blank line

			case "start":
				level := controller.Level()
				if arg != "" {
					parsed, err := tutor.ParseLevel(arg)
					if err != nil {
						fmt.Printf("  unknown level %q (valid: A1, A2, B1, B2, C1, C2)\n", arg)
						continue
					}
					level = parsed
				} else if !level.IsValid() {
					parsed, err := tutor.ParseLevel(cfg.Tutor.Level)
					if err != nil {
						fmt.Printf("  no level configured; use: start <level>\n")
						continue
					}
					level = parsed
				}
				if err := controller.Start(ctx, level, nil); err != nil {
					fmt.Printf("  could not start: %v\n", err)
				}

			case "stop":
				controller.Stop()

			case "level":
				parsed, err := tutor.ParseLevel(arg)
				if err != nil {
					fmt.Printf("  unknown level %q (valid: A1, A2, B1, B2, C1, C2)\n", arg)
					continue
				}
				if err := controller.ChangeLevel(ctx, parsed); err != nil {
					fmt.Printf("  could not change level: %v\n", err)
				}

			case "note":
				if arg == "" {
					fmt.Println("  usage: note <text>")
					continue
				}
				controller.AddSystemMessage(arg)

			case "quit", "exit":
				return

			default:
				fmt.Printf("  unknown command %q — commands: start [level], stop, level <L>, note <text>, quit\n", cmd)
			}
		}
	}
}

// registerStatePrinter prints session phase transitions and silence nudges to
// the terminal, deduplicating repeats since state snapshots also arrive on
// volume-only changes.
func registerStatePrinter(controller *tutor.Controller) {
	var mu sync.Mutex
	var lastPhase tutor.SessionState = -1
	lastSilent := false

	controller.OnStateChange(func(snap tutor.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Phase != lastPhase {
			lastPhase = snap.Phase
			fmt.Printf("  -- session %s --\n", snap.Phase)
		}
		if snap.Silent != lastSilent {
			lastSilent = snap.Silent
			if snap.Silent {
				fmt.Println("  -- still there? say something to keep the conversation going --")
			}
		}
	})
}

// ── Startup summary ─────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	model := cfg.Stream.Model
	if model == "" {
		model = "(provider default)"
	}
	historyLine := "(disabled)"
	if cfg.History.Path != "" {
		historyLine = cfg.History.Path
	}

	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║           TutorVox — startup summary          ║")
	fmt.Println("╠═══════════════════════════════════════════════╣")
	printSummaryLine("Model", model)
	printSummaryLine("Voice", cfg.Stream.Voice)
	printSummaryLine("Level", cfg.Tutor.Level)
	printSummaryLine("Capture", fmt.Sprintf("%d Hz / %d frames", cfg.Audio.CaptureRate, cfg.Audio.BlockSize))
	printSummaryLine("Model input", fmt.Sprintf("%d Hz s16le mono", cfg.Audio.TargetRate))
	printSummaryLine("History", historyLine)
	printSummaryLine("Ops listener", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

func printSummaryLine(label, value string) {
	if len(value) > 27 {
		value = value[:24] + "…"
	}
	fmt.Printf("║  %-14s : %-27s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
