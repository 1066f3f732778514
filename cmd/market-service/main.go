package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/bettable-market/internal/authz"
	"github.com/radieske/bettable-market/internal/bettable"
	mcache "github.com/radieske/bettable-market/internal/market-service/cache"
	httpapi "github.com/radieske/bettable-market/internal/market-service/http"
	kpub "github.com/radieske/bettable-market/internal/market-service/producer"
	"github.com/radieske/bettable-market/internal/market-service/registry"
	"github.com/radieske/bettable-market/internal/market-service/repo"
	"github.com/radieske/bettable-market/internal/market-service/wager"
	"github.com/radieske/bettable-market/internal/market-service/wallet"
	"github.com/radieske/bettable-market/internal/market-service/ws"
	"github.com/radieske/bettable-market/internal/shared/cache"
	"github.com/radieske/bettable-market/internal/shared/config"
	"github.com/radieske/bettable-market/internal/shared/db"
	"github.com/radieske/bettable-market/internal/shared/kafka"
	"github.com/radieske/bettable-market/internal/shared/logger"
	"github.com/radieske/bettable-market/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	policy, err := bettable.ParseWindowPolicy(cfg.BettingWindowPolicy)
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}
	log.Info("starting service", zap.String("betting_window_policy", policy.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	repository := repo.NewPostgres(pg)
	grants := authz.NewPostgres(pg)
	if err := repository.EnsureSchema(ctx); err != nil {
		log.Fatal("schema markets", zap.Error(err))
	}
	if err := grants.EnsureSchema(ctx); err != nil {
		log.Fatal("schema grants", zap.Error(err))
	}

	// Redis
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (market_events + DLQ)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEvents)
	defer writer.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEventsDLQ)
	defer dlq.Close()

	// deps
	gate := authz.NewGate(grants, authz.NewRedisCache(rdb), cfg.PermissionCacheTTL, log.Named("authz"))
	publ := kpub.NewKafkaPublisher(writer, dlq)
	fanout := kpub.Fanout{publ, ws.NewRedisBroadcaster(rdb)}
	wagers := wager.NewFactory(wallet.New(cfg.WalletURL), publ, log.Named("wager"))
	markets := registry.New(repository, gate, wagers, fanout, mcache.NewOddsCache(rdb), log.Named("market"),
		bettable.WithWindowPolicy(policy),
	)

	// WebSocket: cada réplica assina o canal Redis e repassa aos seus clientes
	hub := ws.NewHub(ws.AllowOrigins(cfg.CORSOrigins))
	ws.StartRedisSubscriber(ctx, rdb, hub, log.Named("ws"))

	// HTTP público
	api := httpapi.NewServer(log, markets).WithStream(hub.HandleWS).WithCORS(cfg.CORSOrigins)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiSrv, metricsSrv} {
		srv := srv
		g.Go(func() error {
			log.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdownCtx)
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("market-service stopped", zap.Error(err))
		return
	}
	log.Info("market-service stopped")
}
