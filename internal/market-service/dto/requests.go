package dto

import "github.com/shopspring/decimal"

type CreateMarketRequest struct {
	ID   int64  `json:"id"`
	Info string `json:"info"`
}

type SetInfoRequest struct {
	Info string `json:"info"`
}

type SetOddsRequest struct {
	Value decimal.Decimal `json:"value"` // ex: "1.85"
}

type SetDeadlineRequest struct {
	Deadline string `json:"deadline"` // RFC3339
}

type SetOutcomeRequest struct {
	Outcome string `json:"outcome"` // "home" | "draw" | "away"
}

type PlaceBetRequest struct {
	BetID      int64           `json:"betId"`
	Selection  string          `json:"selection"` // "home" | "draw" | "away"
	StakeCents int64           `json:"stake_cents"`
	OddValue   decimal.Decimal `json:"odd_value"` // odd que o cliente viu
}

type UpdateBetRequest struct {
	Selection  string          `json:"selection"`
	StakeCents int64           `json:"stake_cents"`
	OddValue   decimal.Decimal `json:"odd_value"`
}
