package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/radieske/bettable-market/internal/bettable"
)

// OddsCache espelha as odds do mercado no Redis para os serviços de leitura.
// Chave "odds:{marketID}:1x2:{outcome}" => valor string com odd, ex: "1.85"
type OddsCache struct {
	Rdb *redis.Client
}

func NewOddsCache(r *redis.Client) *OddsCache { return &OddsCache{Rdb: r} }

func keyOdds(marketID int64, o bettable.Outcome) string {
	return fmt.Sprintf("odds:%d:1x2:%s", marketID, o)
}

func (c *OddsCache) SetOdds(ctx context.Context, marketID int64, o bettable.Outcome, v decimal.Decimal) error {
	return c.Rdb.Set(ctx, keyOdds(marketID, o), v.String(), 0).Err()
}
