package bettable

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ChangeKind string

const (
	ChangeOdds       ChangeKind = "odds_set"
	ChangeDeadline   ChangeKind = "deadline_set"
	ChangeOutcome    ChangeKind = "outcome_set"
	ChangeInfo       ChangeKind = "info_set"
	ChangeBetAdded   ChangeKind = "bet_added"
	ChangeBetUpdated ChangeKind = "bet_updated"
	ChangeBetDeleted ChangeKind = "bet_deleted"
)

// Change descreve uma mutação aplicada ao mercado.
// Só os campos relevantes para o Kind vêm preenchidos.
type Change struct {
	MarketID int64
	Kind     ChangeKind
	Outcome  Outcome
	Odds     decimal.Decimal
	Deadline time.Time
	Info     string
	Bet      Bet
}

// Observer recebe cada mutação ainda sob o lock do mercado.
// Retornar erro desfaz a mutação. Não deve chamar o Entity de volta.
type Observer interface {
	Observe(ctx context.Context, c Change) error
}

type ObserverFunc func(ctx context.Context, c Change) error

func (f ObserverFunc) Observe(ctx context.Context, c Change) error { return f(ctx, c) }
