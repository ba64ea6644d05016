package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanosuguru/go-simple-meetup/internal/api/handler"
	"github.com/sanosuguru/go-simple-meetup/internal/api/router"
	"github.com/sanosuguru/go-simple-meetup/internal/application"
	"github.com/sanosuguru/go-simple-meetup/internal/config"
	"github.com/sanosuguru/go-simple-meetup/internal/infrastructure/postgres"
	redislock "github.com/sanosuguru/go-simple-meetup/internal/infrastructure/redis"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/clock"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/logger"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/metrics"
	"github.com/sanosuguru/go-simple-meetup/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Env)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("サーバーが異常終了しました", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// データベース
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		return err
	}
	logger.Info("マイグレーション完了", zap.String("path", cfg.Database.MigrationsPath))

	m := metrics.New()
	healthChecks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}

	// Redis（任意）。使えない場合はDBのロックだけで動かす
	var lockManager *redislock.LockManager
	if cfg.Redis.Enabled {
		client := redislock.NewClient(&cfg.Redis)
		defer client.Close()
		if err := redislock.Ping(ctx, client); err != nil {
			logger.Warn("Redisに接続できないため分散ロックを無効にします", zap.Error(err))
		} else {
			lockManager = redislock.NewLockManager(client, cfg.Redis.LockTTL, m)
			healthChecks["redis"] = func(ctx context.Context) error { return redislock.Ping(ctx, client) }
		}
	}

	clk := clock.System()
	eventRepo := postgres.NewEventRepository(db, clk)
	eventService := application.NewEventService(postgres.NewTxManager(db), eventRepo, lockManager, clk, m)

	e := router.New(router.Deps{
		EventService: eventService,
		Clock:        clk,
		Metrics:      m,
		MetricsAuth:  cfg.Metrics,
		HealthChecks: healthChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	closer := worker.NewPastEventCloser(eventService, cfg.Worker.ClosePastEventsInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("サーバーを起動します", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバー起動エラー: %w", err)
		}
		return nil
	})

	// ワーカーはシャットダウン時に Stop で止め、実行中の締め切りを待つ
	g.Go(func() error {
		closer.Start(context.WithoutCancel(gctx))
		return nil
	})

	// シグナル受信（またはサーバーの異常終了）でシャットダウン
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("サーバーをシャットダウンしています...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		closer.Stop()
		if err != nil {
			return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
		}
		return nil
	})

	return g.Wait()
}
