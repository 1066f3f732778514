package repo

import (
	"github.com/shopspring/decimal"
)

// BetRow é a aposta persistida em market_bets.
type BetRow struct {
	MarketID    int64
	BetID       int64
	UserID      string
	Selection   string
	StakeCents  int64
	OddValue    decimal.Decimal
	ExternalRef string // reserva da aposta no wallet-service
}
