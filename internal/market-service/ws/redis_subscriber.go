package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/bettable-market/pkg/contracts/events"
)

// PubSubChannel define o canal Redis Pub/Sub usado no broadcast de mercados
const PubSubChannel = "market_updates_broadcast"

// publicTypes são os eventos que podem ir para qualquer cliente.
// Eventos de aposta carregam dados do apostador e não entram no broadcast.
var publicTypes = map[string]bool{
	events.TypeOddsSet:     true,
	events.TypeDeadlineSet: true,
	events.TypeOutcomeSet:  true,
	events.TypeInfoSet:     true,
}

// RedisBroadcaster publica as mudanças públicas no canal; cada réplica do
// market-service assina o canal e repassa aos seus clientes WebSocket.
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) PublishMarketEvent(ctx context.Context, e events.MarketEvent) error {
	if !publicTypes[e.Type] {
		return nil
	}
	payload, err := json.Marshal(MarketUpdate{MarketID: e.MarketID, Payload: e})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, PubSubChannel, payload).Err()
}

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// e repassa as atualizações para os clientes conectados via Hub
func StartRedisSubscriber(ctx context.Context, r *redis.Client, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, PubSubChannel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var upd MarketUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				hub.Broadcast(upd)
			}
		}
	}()
}
