package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courier-chat/courier/auth"
	"github.com/courier-chat/courier/hub"
	"github.com/courier-chat/courier/internal/config"
	"github.com/courier-chat/courier/internal/slogging"
	"github.com/courier-chat/courier/store"
	"github.com/gin-gonic/gin"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := slogging.Initialize(slogging.Config{
		Level:            cfg.GetLogLevel(),
		IsDev:            cfg.Logging.IsDev,
		LogDir:           cfg.Logging.LogDir,
		MaxAgeDays:       cfg.Logging.MaxAgeDays,
		MaxSizeMB:        cfg.Logging.MaxSizeMB,
		MaxBackups:       cfg.Logging.MaxBackups,
		AlsoLogToConsole: cfg.Logging.AlsoLogToConsole,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := slogging.Get()
	defer func() { _ = logger.Close() }()

	redisDB, err := store.NewRedisDB(store.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	directory := store.NewChatDirectory()
	messages := store.NewMessageStore(directory)
	userStatus := store.NewUserStatusStore(redisDB)
	resolver := auth.NewResolver(cfg.Auth.JWT.Secret, cfg.GetJWTDuration())

	h := hub.New(resolver, directory, messages, userStatus, hub.Options{
		HandshakeTimeout: time.Duration(cfg.WebSocket.HandshakeTimeoutSeconds) * time.Second,
		SendBufferSize:   cfg.WebSocket.SendBufferSize,
		ReadLimit:        cfg.WebSocket.ReadLimitBytes,
		PingInterval:     time.Duration(cfg.WebSocket.PingIntervalSeconds) * time.Second,
		PongWait:         time.Duration(cfg.WebSocket.PongWaitSeconds) * time.Second,
		WriteWait:        time.Duration(cfg.WebSocket.WriteWaitSeconds) * time.Second,
	})

	if !cfg.Logging.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", h.HandleWS)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"connections":     h.ConnectionCount(),
			"connected_users": h.ConnectedUsers(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.Interface + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep persisted online records alive while their users hold connections.
	go refreshPresence(ctx, h, userStatus)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// refreshPresence periodically extends the Redis TTL on online records for
// every user that still holds at least one connection.
func refreshPresence(ctx context.Context, h *hub.Hub, userStatus *store.UserStatusStore) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range h.ConnectedUsers() {
				if err := userStatus.RefreshOnlineStatus(ctx, userID); err != nil {
					slogging.Get().Warn("Failed to refresh presence for user %s: %v", userID, err)
				}
			}
		}
	}
}
