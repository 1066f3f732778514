package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/bettable-market/internal/market-service/wager"
	"github.com/radieske/bettable-market/pkg/contracts/events"
)

// MessageReader é o pedaço do kafka.Reader que o Processor usa
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Processor consome a DLQ de mercados e refaz os estornos que falharam no Withdraw.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log     *zap.Logger
	Reader  MessageReader
	Wallet  wager.Refunder
	Retries int           // tentativas por mensagem
	Backoff time.Duration // base do backoff linear entre tentativas

	OnRefunded func()       // métricas
	OnSkipped  func()       // mensagem que não é estorno
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			sleep(ctx, 500*time.Millisecond)
			continue
		}

		var ev events.MarketEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			p.fail("decode")
			continue
		}

		if err := p.Handle(ctx, ev); err != nil {
			// sem fila de compensação: o evento fica só no log e na métrica
			p.Log.Error("refund retry exhausted",
				zap.Int64("market_id", ev.MarketID),
				zap.Int64("bet_id", ev.BetID),
				zap.String("user_id", ev.UserID),
				zap.Error(err),
			)
			p.fail("refund")
		}
	}
}

// Handle refaz o estorno de um bet_withdraw_failed com retry e backoff linear
func (p *Processor) Handle(ctx context.Context, ev events.MarketEvent) error {
	if ev.Type != events.TypeBetWithdrawFailed {
		if p.OnSkipped != nil {
			p.OnSkipped()
		}
		return nil
	}
	if ev.UserID == "" || ev.ExternalRef == "" {
		return fmt.Errorf("incomplete withdraw event %q", ev.EventID)
	}

	ref := ev.ExternalRef
	retries := p.Retries
	if retries <= 0 {
		retries = 1
	}

	var err error
	for i := 0; i < retries; i++ {
		if i > 0 {
			sleep(ctx, time.Duration(i)*p.Backoff)
		}
		if err = p.Wallet.Refund(ctx, ev.UserID, ref); err == nil {
			p.Log.Info("refund retried", zap.String("external_ref", ref), zap.Int("attempt", i+1))
			if p.OnRefunded != nil {
				p.OnRefunded()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("refund %s: %w", ref, err)
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
