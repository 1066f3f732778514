package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	walletdto "github.com/radieske/bettable-market/internal/market-service/wallet/dto"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Reserve bloqueia o stake da aposta no saldo do usuário (reserva PENDING).
// O wallet-service é idempotente por external_ref: repetir devolve a mesma reserva.
func (c *Client) Reserve(ctx context.Context, userID string, cents int64, externalRef string) (string, error) {
	body, _ := json.Marshal(walletdto.ReserveRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/reserve", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("wallet reserve http %d", res.StatusCode)
	}
	var out walletdto.ReserveResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

// Refund estorna a reserva feita para a aposta (external_ref).
// O wallet-service é idempotente: estornar duas vezes não devolve o saldo em dobro.
func (c *Client) Refund(ctx context.Context, userID, externalRef string) error {
	body, _ := json.Marshal(walletdto.RefundRequest{UserID: userID, ExternalRef: externalRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/refund", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("wallet refund http %d", res.StatusCode)
	}
	var out walletdto.RefundResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return err
	}
	if out.Status != "REFUNDED" {
		return fmt.Errorf("wallet refund status %q", out.Status)
	}
	return nil
}
