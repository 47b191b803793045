// Command server boots the gateway process: it loads configuration,
// opens the store and the per-device credential store, wires the
// crypto, device, outbox, and webhook components together, starts the
// HTTP API, and shuts everything down in order on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rijan-wa/gateway/internal/api"
	"github.com/rijan-wa/gateway/internal/authstore"
	"github.com/rijan-wa/gateway/internal/config"
	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/device"
	"github.com/rijan-wa/gateway/internal/lock"
	"github.com/rijan-wa/gateway/internal/metrics"
	"github.com/rijan-wa/gateway/internal/outbox"
	"github.com/rijan-wa/gateway/internal/protocolclient"
	"github.com/rijan-wa/gateway/internal/ratelimit"
	"github.com/rijan-wa/gateway/internal/store"
	"github.com/rijan-wa/gateway/internal/webhooks"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: .env load failed", "error", err)
	}

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config: load failed", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Server.LogLevel, cfg.IsProduction())
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server: exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string, production bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if production {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, log *slog.Logger) error {
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	auth, err := authstore.New(cfg.Sessions.Root)
	if err != nil {
		return err
	}

	prim, err := crypto.New(cfg.Security.MasterKeyHash)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(cfg, log)
	if err != nil {
		return err
	}

	fanout := webhooks.New(st, cfg.Webhook.WorkerCount, log)
	locks := lock.New(st, cfg.Instance.ID)

	devices := device.New(st, auth, fanout, locks, protocolclient.NewFakeFactory(), cfg.Instance.ID, device.Config{
		LockTTL:             time.Duration(cfg.Device.LockTTLSec) * time.Second,
		LockRefreshInterval: time.Duration(cfg.Device.LockRefreshSec) * time.Second,
		LockAcquireTimeout:  time.Duration(cfg.Device.LockAcquireTimeoutSec) * time.Second,
		ReconnectMaxBackoff: time.Duration(cfg.Device.ReconnectMaxBackoffSec) * time.Second,
		ReconnectMaxRetries: cfg.Device.ReconnectMaxRetries,
		QRExpiry:            time.Duration(cfg.Device.QRExpirySec) * time.Second,
	}, log)

	producer := outbox.NewProducer(st, limiter)
	sender := outbox.NewSender(st, devices, outbox.SenderConfig{}, log)
	reaper := lock.NewReaper(st, time.Duration(cfg.Device.LockRefreshSec)*time.Second, time.Duration(cfg.Device.LockTTLSec)*time.Second, log)

	registry := metrics.New(st)
	devices.SetMetrics(registry)
	sender.SetMetrics(registry)
	fanout.SetMetrics(registry)
	metricsServer := metrics.NewServer(registry, st, map[string]metrics.Heartbeater{
		"outbox_sender":  sender,
		"webhook_fanout": fanout,
		"lock_reaper":    reaper,
	}, 2*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sender.Run(ctx)
	go reaper.Run(ctx)
	go metricsServer.RunRefresh(ctx, 15*time.Second)

	devices.RecoverOnBoot(ctx, st.FindTenantByID)

	server := api.New(st, prim, devices, producer, fanout, metricsServer, cfg, log)
	httpServer := server.ListenAndServe(api.AddrFromPort(cfg.Server.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("server: shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server: http shutdown", "error", err)
	}

	cancel() // stop sender, reaper, metrics refresh
	devices.StopAll(shutdownCtx)
	fanout.Shutdown()

	log.Info("server: shutdown complete")
	return nil
}

func newLimiter(cfg *config.Config, log *slog.Logger) (ratelimit.Limiter, error) {
	if cfg.RateLimit.Backend != "redis" {
		return ratelimit.NewMemory(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisURL})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("ratelimit: redis unreachable, falling back to memory", "error", err)
		return ratelimit.NewMemory(), nil
	}
	return ratelimit.NewRedis(client, ""), nil
}
