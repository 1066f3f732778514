package ws

import "github.com/radieske/bettable-market/pkg/contracts/events"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MarketID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type     string `json:"type"`     // subscribe | unsubscribe | ping
	MarketID int64  `json:"marketId"` // requerido em subscribe/unsubscribe
}

// MarketUpdate é o que os clientes inscritos recebem a cada mudança pública do mercado
type MarketUpdate struct {
	MarketID int64              `json:"marketId"`
	Payload  events.MarketEvent `json:"payload"`
}
