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

	"github.com/radieske/bettable-market/internal/market-service/wallet"
	"github.com/radieske/bettable-market/internal/refund-worker/consumer"
	"github.com/radieske/bettable-market/internal/shared/config"
	"github.com/radieske/bettable-market/internal/shared/kafka"
	"github.com/radieske/bettable-market/internal/shared/logger"
	"github.com/radieske/bettable-market/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("refund-worker", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Kafka consumer: consome a DLQ com os estornos que falharam no market-service
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMarketEventsDLQ, cfg.RefundGroupID)
	defer reader.Close()

	p := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Wallet:     wallet.New(cfg.WalletURL),
		Retries:    cfg.RefundRetries,
		Backoff:    300 * time.Millisecond,
		OnRefunded: func() { metrics.RefundRetries.WithLabelValues("refunded").Inc() },
		OnSkipped:  func() { metrics.RefundRetries.WithLabelValues("skipped").Inc() },
		OnError:    func(string) { metrics.RefundRetries.WithLabelValues("failed").Inc() },
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, nil)

	log.Info("refund-worker started",
		zap.String("consume", cfg.TopicMarketEventsDLQ),
		zap.String("group", cfg.RefundGroupID),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("refund-worker stopped", zap.Error(err))
		return
	}
	log.Info("refund-worker stopped")
}
