package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations conta chamadas ao mercado por operação e resultado ("ok" | "rejected" | "error")
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bettable_operations_total",
		Help: "Operations executed against bettable markets.",
	}, []string{"op", "result"})

	// GuardRejections conta rejeições por guard
	GuardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bettable_guard_rejections_total",
		Help: "Calls rejected by a bettable market guard.",
	}, []string{"guard"})

	// WithdrawFailures conta estornos que falharam no wallet-service
	WithdrawFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bettable_withdraw_failures_total",
		Help: "Bet withdrawals whose wallet refund failed.",
	})

	// RefundRetries conta o resultado do reprocessamento da DLQ ("refunded" | "failed" | "skipped")
	RefundRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bettable_refund_retries_total",
		Help: "Refunds retried from the market events DLQ.",
	}, []string{"result"})
)
