package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	mcache "github.com/radieske/bettable-market/internal/market-service/cache"
	"github.com/radieske/bettable-market/internal/market-service/repo"
	"github.com/radieske/bettable-market/internal/market-service/seed"
	"github.com/radieske/bettable-market/internal/shared/cache"
	"github.com/radieske/bettable-market/internal/shared/config"
	"github.com/radieske/bettable-market/internal/shared/db"
	"github.com/radieske/bettable-market/internal/shared/logger"
)

// pairs acumula flags repetidas: -odds home=1.85 -odds draw=3.1
type pairs []string

func (p *pairs) String() string     { return strings.Join(*p, ",") }
func (p *pairs) Set(v string) error { *p = append(*p, v); return nil }

// seed-market grava um mercado novo com deadlines e odds já definidos.
// uso: seed-market -id 1 -info "derby" -deadline home=2025-01-01T18:00:00Z -odds home=1.85
func main() {
	var deadlines, odds pairs
	id := flag.Int64("id", 0, "market id (must not exist)")
	info := flag.String("info", "", "market description")
	flag.Var(&deadlines, "deadline", "outcome=RFC3339, repeatable")
	flag.Var(&odds, "odds", "outcome=value, repeatable")
	flag.Parse()

	dl, err := seed.ParseDeadlines(deadlines)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	od, err := seed.ParseOdds(odds)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	m := seed.Market{ID: *id, Info: *info, Odds: od, Deadlines: dl}

	cfg := config.Load()
	log, err := logger.New("seed-market", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	store := repo.NewPostgres(pg)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("schema markets", zap.Error(err))
	}
	if err := seed.Run(ctx, store, m); err != nil {
		if errors.Is(err, seed.ErrInvalid) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Fatal("seed", zap.Int64("market_id", m.ID), zap.Error(err))
	}

	// leitura rápida de odds vem do redis; sem ele o cache é preenchido na próxima escrita
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, odds cache not warmed", zap.Error(err))
	} else {
		defer rdb.Close()
		oc := mcache.NewOddsCache(rdb)
		for o, v := range m.Odds {
			if err := oc.SetOdds(ctx, m.ID, o, v); err != nil {
				log.Warn("odds cache set failed", zap.String("outcome", string(o)), zap.Error(err))
			}
		}
	}

	log.Info("market seeded",
		zap.Int64("market_id", m.ID),
		zap.Int("deadlines", len(m.Deadlines)),
		zap.Int("odds", len(m.Odds)),
	)
}
