package dto

import "github.com/shopspring/decimal"

type MarketResponse struct {
	ID        int64  `json:"id"`
	Info      string `json:"info"`
	BetsCount int    `json:"betsCount"`
}

type OddsResponse struct {
	MarketID int64           `json:"marketId"`
	Outcome  string          `json:"outcome"`
	Value    decimal.Decimal `json:"value"`
}

type DeadlineResponse struct {
	MarketID int64  `json:"marketId"`
	Outcome  string `json:"outcome"`
	Deadline string `json:"deadline,omitempty"` // vazio = não definido
}

type OutcomeResponse struct {
	MarketID int64  `json:"marketId"`
	Outcome  string `json:"outcome"`
}

type BetResponse struct {
	MarketID   int64           `json:"marketId"`
	BetID      int64           `json:"betId"`
	UserID     string          `json:"userId"`
	Selection  string          `json:"selection"`
	StakeCents int64           `json:"stake_cents"`
	OddValue   decimal.Decimal `json:"odd_value"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Guard   string `json:"guard,omitempty"`
	Message string `json:"message,omitempty"`
}
