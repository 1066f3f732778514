package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bettable-market/internal/authz"
	"github.com/radieske/bettable-market/internal/bettable"
	"github.com/radieske/bettable-market/internal/shared/cache"
	"github.com/radieske/bettable-market/internal/shared/config"
	"github.com/radieske/bettable-market/internal/shared/db"
	"github.com/radieske/bettable-market/internal/shared/logger"
)

// grant-capability concede uma capability a um usuário e limpa o cache dele.
// uso: grant-capability -user admin [-capability bettable.edit]
func main() {
	user := flag.String("user", "", "user id to grant")
	capability := flag.String("capability", bettable.CapabilityEditBettable, "capability name")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New("grant-capability", cfg.Env, cfg.LogLevel)
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

	grants := authz.NewPostgres(pg)
	if err := grants.EnsureSchema(ctx); err != nil {
		log.Fatal("schema grants", zap.Error(err))
	}
	if err := grants.Grant(ctx, *user, *capability); err != nil {
		log.Fatal("grant", zap.Error(err))
	}

	// o market-service lê do cache primeiro; sem invalidar a concessão só vale após o TTL
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, cache expires on its own", zap.Error(err))
	} else {
		defer rdb.Close()
		if err := authz.NewRedisCache(rdb).Invalidate(ctx, *user); err != nil {
			log.Warn("cache invalidate failed", zap.Error(err))
		}
	}

	log.Info("capability granted", zap.String("user_id", *user), zap.String("capability", *capability))
}
