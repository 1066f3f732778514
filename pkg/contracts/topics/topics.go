package topics

const (
	// Mercados apostáveis
	MarketEvents = "market_events"

	// DLQs
	MarketEventsDLQ = "market_events_dlq"
)
