package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/castlebay/arena/internal/archive"
	"github.com/castlebay/arena/internal/clock"
	appcfg "github.com/castlebay/arena/internal/config"
	"github.com/castlebay/arena/internal/gateway"
	"github.com/castlebay/arena/internal/history"
	"github.com/castlebay/arena/internal/obslog"
	"github.com/castlebay/arena/internal/ratinghook"
	"github.com/castlebay/arena/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}

	// finished-game sinks are optional; the engine runs without any
	var sinks []session.FinishedSink

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		sinks = append(sinks, archive.NewStore(rdb))
	}

	var repo *history.Repository
	if cfg.DatabaseURL != "" {
		repo, err = history.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("history repo error: %v", err)
		}
		sinks = append(sinks, repo)
	}

	if cfg.RatingWebhookURL != "" {
		hook, err := ratinghook.NewClient(cfg.RatingWebhookURL)
		if err != nil {
			log.Fatalf("rating hook error: %v", err)
		}
		sinks = append(sinks, hook)
	}

	reg := session.NewRegistry(
		session.WithSessionDefaults(session.Config{
			Clock:          clockConfig(cfg),
			DisconnectMode: session.PausePolicy(cfg.PausePolicy),
			AbandonGrace:   cfg.AbandonGrace,
		}),
		session.WithFinishedSinks(sinks...),
		session.WithRetention(cfg.SessionRetention),
	)

	gw := gateway.NewServer(reg, gateway.WithMaxSessions(cfg.MaxSessions))
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obslog.L().Fatal("server_listen_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("server_shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	reg.Close()
	if repo != nil {
		_ = repo.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

func clockConfig(cfg *appcfg.AppConfig) clock.Config {
	return clock.Config{Initial: cfg.ClockInitial, Increment: cfg.ClockIncrement}
}
