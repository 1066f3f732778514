package wager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/bettable-market/internal/bettable"
	"github.com/radieske/bettable-market/internal/market-service/repo"
	"github.com/radieske/bettable-market/internal/shared/metrics"
	"github.com/radieske/bettable-market/pkg/contracts/events"
)

// Refunder estorna a reserva de saldo de uma aposta (wallet-service)
type Refunder interface {
	Refund(ctx context.Context, userID, externalRef string) error
}

// Wallet reserva o stake na entrada da aposta e estorna na saída
type Wallet interface {
	Refunder
	Reserve(ctx context.Context, userID string, cents int64, externalRef string) (string, error)
}

// FailureSink recebe estornos que falharam para reprocessamento
type FailureSink interface {
	PublishDLQ(ctx context.Context, e events.MarketEvent) error
}

// Factory cria Wagers ligados ao wallet e à DLQ
type Factory struct {
	wallet Wallet
	dlq    FailureSink
	log    *zap.Logger
}

func NewFactory(w Wallet, dlq FailureSink, log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{wallet: w, dlq: dlq, log: log}
}

// Wager é a aposta concreta registrada num mercado.
type Wager struct {
	marketID  int64
	betID     int64
	userID    string
	selection bettable.Outcome
	stake     int64
	odd       decimal.Decimal
	ref       string

	f    *Factory
	once sync.Once
}

// New monta uma aposta nova com uma referência de reserva própria.
// Cada versão da aposta (nova, atualizada, recolocada) reserva sob outra referência.
func (f *Factory) New(marketID, betID int64, userID string, selection bettable.Outcome, stakeCents int64, odd decimal.Decimal) *Wager {
	return f.build(marketID, betID, userID, selection, stakeCents, odd, NewExternalRef(marketID, betID))
}

func (f *Factory) build(marketID, betID int64, userID string, selection bettable.Outcome, stakeCents int64, odd decimal.Decimal, ref string) *Wager {
	return &Wager{
		marketID:  marketID,
		betID:     betID,
		userID:    userID,
		selection: selection,
		stake:     stakeCents,
		odd:       odd,
		ref:       ref,
		f:         f,
	}
}

// FromRow reconstrói a aposta persistida
func (f *Factory) FromRow(r repo.BetRow) (*Wager, error) {
	sel, err := bettable.ParseOutcome(r.Selection)
	if err != nil {
		return nil, fmt.Errorf("bet %d: %w", r.BetID, err)
	}
	if r.ExternalRef == "" {
		return nil, fmt.Errorf("bet %d: missing external ref", r.BetID)
	}
	return f.build(r.MarketID, r.BetID, r.UserID, sel, r.StakeCents, r.OddValue, r.ExternalRef), nil
}

func (w *Wager) ID() int64                 { return w.betID }
func (w *Wager) Owner() string             { return w.userID }
func (w *Wager) Outcome() bettable.Outcome { return w.selection }
func (w *Wager) Stake() int64              { return w.stake }
func (w *Wager) Odd() decimal.Decimal      { return w.odd }

// ExternalRef identifica a reserva da aposta no wallet-service
func (w *Wager) ExternalRef() string { return w.ref }

// NewExternalRef gera market:{id}:bet:{betId}:{uuid}
func NewExternalRef(marketID, betID int64) string {
	return fmt.Sprintf("market:%d:bet:%d:%s", marketID, betID, uuid.NewString())
}

// Reserve bloqueia o stake no wallet antes da aposta entrar no mercado
func (w *Wager) Reserve(ctx context.Context) error {
	resID, err := w.f.wallet.Reserve(ctx, w.userID, w.stake, w.ref)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", w.ref, err)
	}
	w.f.log.Debug("stake reserved",
		zap.Int64("market_id", w.marketID),
		zap.Int64("bet_id", w.betID),
		zap.String("reservation_id", resID),
	)
	return nil
}

// Withdraw estorna o stake uma única vez.
// Falha no estorno vai para a DLQ; a aposta já saiu do mercado.
func (w *Wager) Withdraw(ctx context.Context) {
	w.once.Do(func() {
		// o request pode ter sido cancelado; o estorno não deve ser
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := w.f.wallet.Refund(rctx, w.userID, w.ref)
		if err == nil {
			w.f.log.Info("bet withdrawn", zap.Int64("market_id", w.marketID), zap.Int64("bet_id", w.betID))
			return
		}

		metrics.WithdrawFailures.Inc()
		w.f.log.Error("bet refund failed",
			zap.Int64("market_id", w.marketID),
			zap.Int64("bet_id", w.betID),
			zap.String("user_id", w.userID),
			zap.String("external_ref", w.ref),
			zap.Error(err),
		)
		if w.f.dlq == nil {
			return
		}
		dlqErr := w.f.dlq.PublishDLQ(rctx, events.MarketEvent{
			MarketID:    w.marketID,
			Type:        events.TypeBetWithdrawFailed,
			Outcome:     string(w.selection),
			BetID:       w.betID,
			UserID:      w.userID,
			StakeCents:  w.stake,
			ExternalRef: w.ref,
			Reason:      err.Error(),
		})
		if dlqErr != nil {
			w.f.log.Error("dlq publish failed", zap.Int64("bet_id", w.betID), zap.Error(dlqErr))
		}
	})
}
