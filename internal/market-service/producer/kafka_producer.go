package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/bettable-market/internal/shared/kafka"
	"github.com/radieske/bettable-market/pkg/contracts/events"
)

// KafkaPublisher publica MarketEvents; a chave é o id do mercado para manter a ordem por mercado
type KafkaPublisher struct {
	Writer *kafka.Writer
	DLQ    *kafka.Writer
}

func NewKafkaPublisher(w, dlq *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, DLQ: dlq}
}

func (p *KafkaPublisher) PublishMarketEvent(ctx context.Context, e events.MarketEvent) error {
	return publish(ctx, p.Writer, e)
}

// PublishDLQ envia eventos que precisam de tratamento manual (ex: estorno falhou)
func (p *KafkaPublisher) PublishDLQ(ctx context.Context, e events.MarketEvent) error {
	return publish(ctx, p.DLQ, e)
}

func publish(ctx context.Context, w *kafka.Writer, e events.MarketEvent) error {
	stamp(&e)
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, w, strconv.FormatInt(e.MarketID, 10), b)
}

// stamp preenche id e timestamp quando ausentes
func stamp(e *events.MarketEvent) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
}
