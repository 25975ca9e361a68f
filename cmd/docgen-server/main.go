// cmd/docgen-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docgen-service/internal/common/alerting"
	"docgen-service/internal/common/config"
	"docgen-service/internal/common/logger"
	"docgen-service/internal/common/observability"
	"docgen-service/internal/convert"
	"docgen-service/internal/history"
	"docgen-service/internal/pipeline"
	"docgen-service/internal/server"
	"docgen-service/internal/stats"
	"docgen-service/internal/storage"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting docgen server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Template store and scratch workspace ---
	templates := storage.NewTemplateStore(cfg.Templates.Dir)
	workspace, err := storage.NewWorkspace(cfg.Templates.WorkDir)
	if err != nil {
		zapLog.Fatal("workspace init failed", zap.Error(err))
	}

	// --- Generation stats recorder (Redis when configured) ---
	var recorder stats.Recorder = stats.NewMemoryRecorder()
	if cfg.Database.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Database.Redis.Address,
			Password: cfg.Database.Redis.Password,
			DB:       cfg.Database.Redis.DB,
		})
		err = retryWithBackoff(func() error {
			return redisClient.Ping(ctx).Err()
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		recorder = stats.NewRedisRecorder(redisClient)
		zapLog.Info("Redis stats recorder connected successfully")
	}

	// --- Render history store (Postgres when configured) ---
	var historyStore history.Store
	if cfg.Database.Postgres.Enabled {
		var pg *history.PostgresStore
		err = retryWithBackoff(func() error {
			var err error
			pg, err = history.NewPostgresStore(cfg.Database.Postgres.GetDSN(), log)
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		historyStore = pg
		zapLog.Info("PostgreSQL history store connected successfully")
	}

	// --- Failure alerting ---
	var notifier alerting.Notifier = alerting.NoopNotifier{}
	if cfg.Alerting.Email.Enabled {
		sesNotifier, err := alerting.NewSESNotifier(ctx,
			cfg.Alerting.AWS.Region,
			cfg.Alerting.Email.FromEmail,
			cfg.Alerting.Email.ToEmail,
			log,
		)
		if err != nil {
			zapLog.Fatal("ses notifier init failed", zap.Error(err))
		}
		notifier = sesNotifier
		zapLog.Info("SES failure notifier initialized")
	}

	// --- Conversion strategy chain: remote, local, pass-through ---
	strategies := []convert.Strategy{}
	if cfg.Convert.Remote.APIKey != "" {
		strategies = append(strategies, convert.NewRemoteStrategy(convert.RemoteConfig{
			BaseURL:      cfg.Convert.Remote.BaseURL,
			APIKey:       cfg.Convert.Remote.APIKey,
			OutputFormat: cfg.Convert.OutputFormat,
			PollInterval: time.Duration(cfg.Convert.Remote.PollInterval) * time.Millisecond,
			MaxPolls:     cfg.Convert.Remote.MaxPolls,
			Timeout:      time.Duration(cfg.Convert.Remote.Timeout) * time.Millisecond,
		}, log))
	} else {
		zapLog.Warn("remote conversion API key not set, skipping remote strategy")
	}
	strategies = append(strategies, convert.NewLocalStrategy(convert.LocalConfig{
		Binary:       cfg.Convert.Local.Binary,
		OutputFormat: cfg.Convert.OutputFormat,
		Timeout:      time.Duration(cfg.Convert.Local.Timeout) * time.Millisecond,
	}, workspace, log))
	strategies = append(strategies, convert.NewPassthroughStrategy())

	orchestrator := convert.NewOrchestrator(log, strategies...)

	pipe := pipeline.New(templates, orchestrator, log).
		WithStats(recorder).
		WithHistory(historyStore).
		WithObservability(obs)

	srv := server.New(cfg, pipe, templates, recorder, notifier, log)

	// --- pprof on a side port ---
	go func() {
		zapLog.Info("pprof listening on :6060")
		if err := http.ListenAndServe(":6060", nil); err != nil {
			zapLog.Error("pprof server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down http server", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
