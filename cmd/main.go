package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chathub/api"
	"chathub/auth"
	"chathub/moderation"
	"chathub/repositories"
	"chathub/runtime"
	"chathub/services"
	"chathub/ws"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
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
	log := newLogger(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	// 3. Repositories
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	defer userRepository.Close()
	chatRepository, err := repositories.NewChatRepository(db)
	if err != nil {
		return fmt.Errorf("chat repository: %w", err)
	}
	defer chatRepository.Close()
	messageRepository, err := repositories.NewMessageRepository(db)
	if err != nil {
		return fmt.Errorf("message repository: %w", err)
	}
	defer messageRepository.Close()
	tokenRepository := repositories.NewTokenRepository(db)
	searchRepository := repositories.NewSearchRepository(indexWriter)

	// 4. Moderation (optional, on when a word list is configured)
	var moderator *moderation.Moderator
	if config.CensoredWordsFile != "" {
		words, err := moderation.LoadWords(config.CensoredWordsFile)
		if err != nil {
			return fmt.Errorf("loading censored words: %w", err)
		}
		moderator, err = moderation.NewModerator(words, config.CharacterReplacement)
		if err != nil {
			return fmt.Errorf("building moderator: %w", err)
		}
		log.Info("Moderation enabled", "words", len(words))
	}

	// 5. Core services
	manager := auth.NewTokenManager(config.JWTSecret, config.AccessTokenDuration, config.RefreshTokenDuration)
	registry := runtime.NewRegistry(log)
	authService := services.NewAuthService(userRepository, tokenRepository, manager)
	userService := services.NewUserService(userRepository)
	chatService := services.NewChatService(log, chatRepository, messageRepository,
		searchRepository, registry, moderator)

	// 6. HTTP surface
	handler := api.NewHandler(log, authService, userService, chatService)
	session := ws.NewSessionHandler(log, manager, chatService, registry, config.ConnectionBufferSize)
	router := api.NewRouter(log, handler, manager, session)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
