package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"campushub/auth"
	"campushub/realtime"
	"campushub/realtime/workers"
	"campushub/repositories"
	"campushub/services"
	"campushub/transport"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	// Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Durable Store
	userRepository := repositories.NewUserRepository(db)
	groupRepository := repositories.NewGroupRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	store := repositories.NewStore(userRepository, groupRepository, messageRepository)

	// 4. Realtime Core
	tokens := auth.NewTokenService(config.JWTSecret, config.TokenDuration)
	presence := realtime.NewPresenceRegistry(log)
	rooms := realtime.NewRoomIndex(store, log)
	typing := realtime.NewTypingTracker(config.TypingTimeout)
	dispatcher := realtime.NewDispatcher(presence, rooms, log)
	controller := realtime.NewController(log, tokens, store, presence, rooms, typing, dispatcher)

	// 5. Services & Transport
	authService := services.NewAuthService(userRepository, tokens)
	groupService := services.NewGroupService(groupRepository, controller)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	transport.NewWSHandler(log, controller, config.SendBufferSize).Register(app)
	transport.NewHTTPHandler(log, authService, groupService,
		messageRepository, groupRepository, tokens).Register(app)

	// 6. Background Workers under Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval).
		Add(workers.NewIdleSweepWorker(log, controller, config.IdleSweepInterval, config.IdleThreshold)).
		Add(workers.NewTypingSweepWorker(log, controller, config.TypingSweepInterval)).
		Add(workers.NewTelemetryWorker(log, config.TelemetryInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. HTTP/WebSocket Server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
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
	if err := app.ShutdownWithTimeout(config.ShutdownGracePeriod); err != nil {
		log.Error("Server shutdown failed", "err", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

// newLogger builds a JSON slog logger at the configured level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
