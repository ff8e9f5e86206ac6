package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/rs/cors"

	"chat-hub/infrastructure/ws"
	"chat-hub/moderation"
	"chat-hub/observability"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/search"
	"chat-hub/services"
	"chat-hub/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB) & Search (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()
	index := search.NewIndex(writer, log)

	// 3. Moderation
	loader := moderation.NewCensoredLoader()
	data, err := loader.LoadAll("censored")
	if err != nil {
		return fmt.Errorf("censored words loading failed: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	// 4. Supervision & Orchestration
	sup := workers.NewSupervisor(log)
	registry := runtime.NewRegistry()
	typing := runtime.NewTypingCoordinator(config.TypingTTL)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	userDirectory := repositories.NewUserDirectory(db)
	roomDirectory := repositories.NewRoomDirectory(db)

	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, typing, messageRepository, moderator,
		config.BufferSize, config.SinkTimeout, config.SweepInterval, config.MetricInterval,
	)
	orchestrator.AddSinks(sink.NewTimeline(), sink.NewSearchSink(index, log))

	monitoring := observability.NewMonitoringManager(log)
	orchestrator.AddTelemetryHandlers(monitoring)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go monitoring.Listen(ctx, config.MetricInterval)

	// 6. Start the Engine
	errChan := make(chan error, 2)
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator failed: %w", err)
		}
	}()

	// 7. HTTP & Websocket Server Setup
	service := services.NewChatService(log, registry, orchestrator, typing,
		userDirectory, roomDirectory, messageRepository, index)

	allowedOrigins := strings.Split(config.AllowedOrigins, ",")
	gateway := ws.NewGateway(log, service, registry, allowedOrigins, config.ConnectionBufferSize)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: c.Handler(gateway.SetupRouter()),
	}

	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
