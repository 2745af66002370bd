package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/syncroom/server/internal/controller"
	connInmemory "github.com/syncroom/server/internal/repository/connection/inmemory"
	roomInmemory "github.com/syncroom/server/internal/repository/room/inmemory"
	roomService "github.com/syncroom/server/internal/service/room"
	searchService "github.com/syncroom/server/internal/service/search"
	"github.com/syncroom/server/pkg/ctxlogger"
	"github.com/syncroom/server/pkg/redisclient"
	"github.com/syncroom/server/pkg/videometa"
)

type Config struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	LogLevel          string        `json:"log_level"`
	MembersLimit      int           `json:"members_limit"`
	QueueLimit        int           `json:"queue_limit"`
	ChatHistoryLimit  int           `json:"chat_history_limit"`
	AutoAdvanceOnEnd  bool          `json:"auto_advance_on_end"`
	PurgeVotesOnLeave bool          `json:"purge_votes_on_leave"`
	RoomIdleTTL       time.Duration `json:"room_idle_ttl"`
	SearchCacheTTL    time.Duration `json:"search_cache_ttl"`
	InvidiousURL      string        `json:"invidious_url"`
	PipedURL          string        `json:"piped_url"`
	RedisHost         string        `json:"redis_host"`
	RedisPort         int           `json:"redis_port"`
	RedisPassword     string        `json:"-"`
}

func (cfg *Config) Validate() error {
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.QueueLimit < 1 {
		return fmt.Errorf("queue limit must be greater than 0")
	}
	if cfg.ChatHistoryLimit < 1 {
		return fmt.Errorf("chat history limit must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}
	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomInmemory.NewRepo(roomInmemory.Limits{
		Members:     cfg.MembersLimit,
		Queue:       cfg.QueueLimit,
		ChatHistory: cfg.ChatHistoryLimit,
	})
	connRepo := connInmemory.NewRepo()

	rooms := roomService.NewService(roomRepo, connRepo, roomService.Config{
		AutoAdvanceOnEnd:  cfg.AutoAdvanceOnEnd,
		PurgeVotesOnLeave: cfg.PurgeVotesOnLeave,
		RoomIdleTTL:       cfg.RoomIdleTTL,
	}, logger)

	providers := []searchService.Provider{
		searchService.NewInvidiousProvider(cfg.InvidiousURL),
		searchService.NewPipedProvider(cfg.PipedURL),
	}
	videos := searchService.NewService(providers, rc, cfg.SearchCacheTTL, logger)

	ctrl := controller.NewController(rooms, videos, videometa.NewClient(), logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	go rooms.StartReaper(serverCtx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
