package producer

import (
	"context"
	"errors"

	"github.com/radieske/bettable-market/pkg/contracts/events"
)

// EventPublisher é qualquer destino de MarketEvents (Kafka, Redis Pub/Sub)
type EventPublisher interface {
	PublishMarketEvent(ctx context.Context, e events.MarketEvent) error
}

// Fanout entrega o mesmo evento a todos os destinos e junta os erros
type Fanout []EventPublisher

func (f Fanout) PublishMarketEvent(ctx context.Context, e events.MarketEvent) error {
	stamp(&e)
	var errs []error
	for _, p := range f {
		if err := p.PublishMarketEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
