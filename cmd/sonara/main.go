package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nvoss/sonara/internal/audio"
	"github.com/nvoss/sonara/internal/config"
	"github.com/nvoss/sonara/internal/session"
	"github.com/nvoss/sonara/internal/storage"
	"github.com/nvoss/sonara/internal/summary"
	"github.com/nvoss/sonara/internal/transcript"
	"github.com/nvoss/sonara/internal/voice"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("sonara exited", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer func() { _ = store.Close() }()

	archive := storage.NewWriter(filepath.Join(filepath.Dir(cfg.DBPath), "transcripts"))

	var summarizer session.Summarizer
	if cfg.OpenAIAPIKey != "" {
		summarizer = summary.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, store)
	}

	manager := session.NewManager(store, archive, summarizer, logger)

	if err := portaudio.Initialize(); err != nil {
		logger.Warn("portaudio unavailable, running without microphone", zap.Error(err))
	} else {
		defer func() { _ = portaudio.Terminate() }()
	}

	mic := openMic(cfg, logger)
	if mic != nil {
		defer func() { _ = mic.Close() }()
	}

	var src audio.Source
	if mic != nil {
		src = mic
	}

	client := voice.NewClient(voice.Options{
		Endpoint:             cfg.Endpoint,
		APIKey:               cfg.VoiceAPIKey,
		SampleRate:           cfg.WireSampleRate,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.ParsedReconnectBaseDelay(),
		SpeechThreshold:      cfg.SpeechThreshold,
		SilenceWindow:        cfg.ParsedSilenceWindow(),
		Source:               src,
		AudioDir:             cfg.AudioDir,
	}, logger)

	client.OnMessage(func(msg transcript.Message) {
		fmt.Println(msg.FormatMarkdown())
		if err := manager.HandleMessage(msg); err != nil {
			logger.Warn("persist message", zap.Error(err))
		}
	})
	client.OnError(func(err error) {
		logger.Warn("voice service error", zap.Error(err))
	})

	exhausted := make(chan struct{}, 1)
	client.OnReconnectionFailed(func() {
		select {
		case exhausted <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	err = client.Connect(ctx, cfg.ConfigID, cfg.SystemPrompt)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if src != nil {
		if err := client.StartMicStream(); err != nil {
			logger.Warn("mic streaming unavailable", zap.Error(err))
		}
	} else {
		logger.Info("no microphone, conversation is text-only (stdin not wired, use SendText integrations)")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case <-exhausted:
		logger.Error("connection lost and reconnection attempts exhausted")
	}

	client.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	sessionID := manager.Active()
	if err := manager.End(shutdownCtx); err != nil && !errors.Is(err, session.ErrNoActiveSession) {
		logger.Warn("end session", zap.Error(err))
	}

	printSummary(store, sessionID)
	return nil
}

// openMic probes the configured sample rates in order and returns the first
// capture stream that opens, or nil when none do.
func openMic(cfg config.Config, logger *zap.Logger) *audio.Mic {
	for _, rate := range cfg.SampleRateCandidates() {
		mic, err := audio.NewMic(rate, rate/10)
		if err != nil {
			logger.Warn("microphone open failed", zap.Int("rate", rate), zap.Error(err))
			continue
		}
		logger.Info("microphone opened", zap.Int("rate", rate))
		return mic
	}
	logger.Warn("no usable microphone found")
	return nil
}

func printSummary(store *storage.SQLiteStore, sessionID string) {
	if sessionID == "" {
		return
	}
	sess, err := store.GetSession(sessionID)
	if err != nil || sess.Summary == "" {
		return
	}
	fmt.Println("\n" + sess.Summary)
}
