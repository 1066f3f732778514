package dto

// RefundRequest representa o payload para estornar uma reserva no wallet-service.
type RefundRequest struct {
	UserID      string `json:"userId"`
	ExternalRef string `json:"external_ref"` // ex: market:{id}:bet:{betId}
}

// RefundResponse é o corpo devolvido por /wallet/refund.
type RefundResponse struct {
	Status string `json:"status"` // REFUNDED
}
