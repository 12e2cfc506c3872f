package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"lyceum/auth"
	"lyceum/infrastructure/ws"
	"lyceum/internal"
	"lyceum/moderation"
	"lyceum/presence"
	"lyceum/rooms"
	"lyceum/runtime"
	"lyceum/runtime/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanups always execute
// before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	maskingRune, err := characterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Moderation
	words, err := runtime.LoadCensoredWords()
	if err != nil {
		return fmt.Errorf("censored word lists: %w", err)
	}
	moderator, err := moderation.NewModerator(words, maskingRune)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored words loaded", len(words)))

	// 3. State components & Engine
	roomRegistry := rooms.NewRegistry(log)
	history := rooms.NewHistoryStore(config.HistoryLimit)
	directory := presence.NewDirectory(log)
	connRegistry := runtime.NewRegistry()
	authenticator := auth.NewTokenAuthenticator(config.AuthSecret)

	engine := runtime.NewEngine(log, authenticator, roomRegistry, history,
		directory, connRegistry, moderator, config.BufferSize)

	// 4. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(engine)
	sup.Add(workers.NewFanoutWorker(log, connRegistry, engine.Notifications()))
	sup.Add(workers.NewPresenceSweepWorker(log, engine, config.PresenceSweep, config.PresenceThreshold))
	sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 6. Read-only stats channel
	internal.StartStatsServer(log, config.StatsPort, func() map[string]any {
		return map[string]any{
			"rooms":        roomRegistry.RoomCount(),
			"participants": roomRegistry.ParticipantCount(),
			"online":       directory.OnlineCount(),
		}
	})

	// 7. WebSocket endpoint
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.NewServer(log, engine, config.ConnectionBufferSize).Handler())

	httpServer := &http.Server{Addr: address, Handler: mux}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
