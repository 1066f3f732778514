package events

// Tipos de MarketEvent publicados no tópico "market_events"
const (
	TypeOddsSet           = "odds_set"
	TypeDeadlineSet       = "deadline_set"
	TypeOutcomeSet        = "outcome_set"
	TypeInfoSet           = "info_set"
	TypeBetAdded          = "bet_added"
	TypeBetUpdated        = "bet_updated"
	TypeBetDeleted        = "bet_deleted"
	TypeBetWithdrawFailed = "bet_withdraw_failed" // vai para a DLQ
)

// MarketEvent é emitido pelo market-service após cada mutação aceita.
type MarketEvent struct {
	EventID     string `json:"event_id"`
	MarketID    int64  `json:"market_id"`
	Type        string `json:"type"`
	Outcome     string `json:"outcome,omitempty"`
	BetID       int64  `json:"bet_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Value       string `json:"value,omitempty"`    // odd em decimal, ex: "1.85"
	Deadline    string `json:"deadline,omitempty"` // RFC3339
	Info        string `json:"info,omitempty"`
	StakeCents  int64  `json:"stake_cents,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"` // reserva da aposta no wallet
	Reason      string `json:"reason,omitempty"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
