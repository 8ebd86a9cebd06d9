package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"jamlab/approval"
	"jamlab/auth"
	"jamlab/domain/event"
	"jamlab/gateway"
	"jamlab/internal"
	"jamlab/moderation"
	"jamlab/observability"
	"jamlab/onboarding"
	"jamlab/projection"
	"jamlab/repositories"
	"jamlab/repositories/storage"
	"jamlab/runtime"
	"jamlab/runtime/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	words, err := moderation.LoadWords(db)
	if err != nil {
		return fmt.Errorf("blacklist loading failed: %w", err)
	}
	censoredChar, err := characterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(words, censoredChar, log)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	// 4. Core runtime
	users := repositories.NewUserRepository(db)
	bus := runtime.NewBus(log)
	registry := runtime.NewRegistry(log)
	timers := runtime.NewTimerTable(log)
	orchestrator := runtime.NewOrchestrator(log, registry, bus, timers, users, &moderator, config.GracePeriod)
	approvals := approval.NewEngine(log, orchestrator, registry, timers, bus, config.ApprovalTimeout)
	orchestrator.AttachApproval(approvals)
	onboarding.NewCoordinator(log, bus, timers, config.OnboardingTimeout)

	// 5. Read side & telemetry
	lobby := projection.NewLobby()
	for _, kind := range projection.Kinds() {
		bus.Subscribe(kind, lobby.Consume)
	}
	metrics := observability.NewMetrics(log)
	journal := repositories.NewJournalRepository(db, log, config.LimitEvents)
	sink := storage.NewDiskSink(journal, log, config.JournalBufferSize)
	for _, kind := range event.Kinds() {
		bus.Subscribe(kind, metrics.Consume)
		bus.Subscribe(kind, sink.Consume)
	}

	// 6. Gateway
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	server := gateway.NewServer(log, users, tokens, registry, orchestrator, approvals, bus, lobby, metrics, config.Debug)
	server.SetAddr(fmt.Sprintf("%s:%d", config.Host, config.Port))

	if config.Debug {
		debugPort := config.Port + 1
		internal.StartDebugServer(db, debugPort, func() map[string]any {
			stats := metrics.Snapshot()
			return map[string]any{
				"rooms_open":       stats.RoomsOpen,
				"events_published": stats.EventsPublished,
				"goroutines":       stats.NumGoroutine,
				"alloc_mb":         stats.AllocMemMb,
			}
		})
		log.Info("Debug inspector started", "url", fmt.Sprintf("http://localhost:%d/inspect", debugPort))
	}

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewSweepWorker(log, timers, config.TimerResolution),
		workers.NewHeartbeatWorker(log, metrics, config.HeartbeatInterval),
		sink,
		server,
	)
	log.Info("Starting jamlab", "address", fmt.Sprintf("%s:%d", config.Host, config.Port))
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
