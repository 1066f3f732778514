package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/bettable-market/internal/authz"
	"github.com/radieske/bettable-market/internal/bettable"
	"github.com/radieske/bettable-market/internal/market-service/dto"
	"github.com/radieske/bettable-market/internal/market-service/registry"
	"github.com/radieske/bettable-market/internal/market-service/wager"
	walletclient "github.com/radieske/bettable-market/internal/market-service/wallet"
	walletdto "github.com/radieske/bettable-market/internal/market-service/wallet/dto"
	"github.com/radieske/bettable-market/pkg/contracts/events"
)

type countingWallet struct {
	mu       sync.Mutex
	reserved []string
	refs     []string
}

func (c *countingWallet) Reserve(_ context.Context, _ string, _ int64, ref string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserved = append(c.reserved, ref)
	return "res-" + ref, nil
}

func (c *countingWallet) Refund(_ context.Context, _ string, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, ref)
	return nil
}

// fakeMarkets guarda mercados em memória, sem persistência
type fakeMarkets struct {
	gate    bettable.AuthorizationGate
	wagers  *wager.Factory
	markets map[int64]*bettable.Entity
}

func (f *fakeMarkets) Create(ctx context.Context, id int64, info string) (*bettable.Entity, error) {
	if _, ok := f.markets[id]; ok {
		return nil, registry.ErrAlreadyExists
	}
	e := bettable.New(id, f.gate, bettable.WithWindowPolicy(bettable.WindowOpen))
	if err := e.SetInfo(ctx, info); err != nil {
		return nil, err
	}
	f.markets[id] = e
	return e, nil
}

func (f *fakeMarkets) Get(_ context.Context, id int64) (*bettable.Entity, error) {
	e, ok := f.markets[id]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return e, nil
}

func (f *fakeMarkets) Wagers() *wager.Factory { return f.wagers }

func newTestServer() (http.Handler, *countingWallet) {
	wallet := &countingWallet{}
	m := &fakeMarkets{
		gate:    authz.StaticGate{"admin": {bettable.CapabilityEditBettable}},
		wagers:  wager.NewFactory(wallet, nil, nil),
		markets: map[int64]*bettable.Entity{},
	}
	return NewServer(zap.NewNop(), m).Router(), wallet
}

func do(t *testing.T, h http.Handler, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(HeaderUserID, caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestMarketFlow(t *testing.T) {
	h, wallet := newTestServer()

	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets", "admin", dto.CreateMarketRequest{ID: 7, Info: "derby"}), http.StatusCreated)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/7/odds/home", "admin", map[string]string{"value": "1.50"}), http.StatusOK)

	rec := do(t, h, http.MethodGet, "/v1/markets/7/odds/home", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var odds dto.OddsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &odds)
	if odds.Value.String() != "1.5" {
		t.Fatalf("expected odds 1.5, got %s", odds.Value)
	}

	bet := map[string]any{"betId": 1, "selection": "home", "stake_cents": 500, "odd_value": "1.5"}
	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets/7/bets", "alice", bet), http.StatusCreated)

	rec = do(t, h, http.MethodPut, "/v1/markets/7/odds/home", "admin", map[string]string{"value": "2.00"})
	expectStatus(t, rec, http.StatusConflict)
	if resp := errorCode(t, rec); resp.Error != "state_conflict" || resp.Guard != string(bettable.GuardNoBetsPlaced) {
		t.Fatalf("unexpected error body: %+v", resp)
	}

	rec = do(t, h, http.MethodGet, "/v1/markets/7/bets/1", "alice", nil)
	expectStatus(t, rec, http.StatusOK)
	var got dto.BetResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.UserID != "alice" || got.StakeCents != 500 || got.Selection != "home" {
		t.Fatalf("unexpected bet: %+v", got)
	}

	expectStatus(t, do(t, h, http.MethodGet, "/v1/markets/7/bets/1", "mallory", nil), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodDelete, "/v1/markets/7/bets/1", "mallory", nil), http.StatusForbidden)

	expectStatus(t, do(t, h, http.MethodDelete, "/v1/markets/7/bets/1", "alice", nil), http.StatusNoContent)
	if len(wallet.reserved) != 1 || !strings.HasPrefix(wallet.reserved[0], "market:7:bet:1:") {
		t.Fatalf("expected one reservation, got %v", wallet.reserved)
	}
	if len(wallet.refs) != 1 || wallet.refs[0] != wallet.reserved[0] {
		t.Fatalf("expected refund of %v, got %v", wallet.reserved, wallet.refs)
	}
	expectStatus(t, do(t, h, http.MethodGet, "/v1/markets/7/bets/1", "alice", nil), http.StatusNotFound)
}

func TestOutcomeEndpoints(t *testing.T) {
	h, _ := newTestServer()
	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets", "admin", dto.CreateMarketRequest{ID: 3}), http.StatusCreated)

	rec := do(t, h, http.MethodGet, "/v1/markets/3/outcome", "", nil)
	expectStatus(t, rec, http.StatusConflict)
	if resp := errorCode(t, rec); resp.Error != "not_final" {
		t.Fatalf("expected not_final, got %+v", resp)
	}

	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/3/outcome", "admin", dto.SetOutcomeRequest{Outcome: "not_available"}), http.StatusConflict)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/3/outcome", "punter", dto.SetOutcomeRequest{Outcome: "away"}), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/3/outcome", "", dto.SetOutcomeRequest{Outcome: "away"}), http.StatusUnauthorized)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/3/outcome", "admin", dto.SetOutcomeRequest{Outcome: "away"}), http.StatusOK)

	rec = do(t, h, http.MethodGet, "/v1/markets/3/outcome", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var out dto.OutcomeResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Outcome != "away" {
		t.Fatalf("expected away, got %q", out.Outcome)
	}
}

func TestDeadlineAndInfoEndpoints(t *testing.T) {
	h, _ := newTestServer()
	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets", "admin", dto.CreateMarketRequest{ID: 4}), http.StatusCreated)

	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/4/deadlines/draw", "admin", dto.SetDeadlineRequest{Deadline: "tomorrow"}), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/4/deadlines/draw", "admin", dto.SetDeadlineRequest{Deadline: "2099-01-01T12:00:00Z"}), http.StatusOK)

	rec := do(t, h, http.MethodGet, "/v1/markets/4/deadlines/draw", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var dl dto.DeadlineResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &dl)
	if dl.Deadline != "2099-01-01T12:00:00Z" {
		t.Fatalf("unexpected deadline %q", dl.Deadline)
	}

	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/4/info", "admin", dto.SetInfoRequest{Info: "semi final"}), http.StatusOK)
	rec = do(t, h, http.MethodGet, "/v1/markets/4", "", nil)
	var m dto.MarketResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &m)
	if m.Info != "semi final" {
		t.Fatalf("unexpected info %q", m.Info)
	}
}

func TestBetValidation(t *testing.T) {
	h, _ := newTestServer()
	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets", "admin", dto.CreateMarketRequest{ID: 5}), http.StatusCreated)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/5/odds/draw", "admin", map[string]string{"value": "3.2"}), http.StatusOK)

	cases := []struct {
		name   string
		caller string
		body   map[string]any
		want   int
	}{
		{"no caller", "", map[string]any{"betId": 1, "selection": "draw", "stake_cents": 100, "odd_value": "3.2"}, http.StatusUnauthorized},
		{"bad selection", "bob", map[string]any{"betId": 1, "selection": "not_available", "stake_cents": 100, "odd_value": "3.2"}, http.StatusBadRequest},
		{"no stake", "bob", map[string]any{"betId": 1, "selection": "draw", "stake_cents": 0, "odd_value": "3.2"}, http.StatusBadRequest},
		{"stale odd", "bob", map[string]any{"betId": 1, "selection": "draw", "stake_cents": 100, "odd_value": "3.0"}, http.StatusConflict},
		{"ok", "bob", map[string]any{"betId": 1, "selection": "draw", "stake_cents": 100, "odd_value": "3.2"}, http.StatusCreated},
		{"duplicate", "bob", map[string]any{"betId": 1, "selection": "draw", "stake_cents": 100, "odd_value": "3.2"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, do(t, h, http.MethodPost, "/v1/markets/5/bets", tc.caller, tc.body), tc.want)
		})
	}

	expectStatus(t, do(t, h, http.MethodGet, "/v1/markets/99", "", nil), http.StatusNotFound)
	expectStatus(t, do(t, h, http.MethodGet, "/v1/markets/abc", "", nil), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/5/bets/42", "bob", map[string]any{"selection": "draw", "stake_cents": 100, "odd_value": "3.2"}), http.StatusNotFound)
}

func TestStreamAndCORS(t *testing.T) {
	m := &fakeMarkets{markets: map[int64]*bettable.Entity{}}
	called := false
	h := NewServer(zap.NewNop(), m).
		WithStream(func(w http.ResponseWriter, _ *http.Request) { called = true; w.WriteHeader(http.StatusSwitchingProtocols) }).
		WithCORS([]string{"http://front.local"}).
		Router()

	do(t, h, http.MethodGet, "/v1/ws", "", nil)
	if !called {
		t.Fatal("expected /v1/ws to reach the stream handler")
	}

	req := httptest.NewRequest(http.MethodOptions, "/v1/markets/1", nil)
	req.Header.Set("Origin", "http://front.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://front.local" {
		t.Fatalf("expected CORS allow origin, got %q", got)
	}
}

func TestOddsScale(t *testing.T) {
	h, _ := newTestServer()
	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets", "admin", dto.CreateMarketRequest{ID: 6}), http.StatusCreated)

	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/6/odds/away", "admin", map[string]string{"value": "1.23456"}), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/6/odds/away", "admin", map[string]string{"value": "100000000"}), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/6/odds/away", "admin", map[string]string{"value": "1.50000"}), http.StatusOK)

	bet := map[string]any{"betId": 1, "selection": "draw", "stake_cents": 100, "odd_value": "2.00001"}
	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets/6/bets", "bob", bet), http.StatusBadRequest)
}

type reservation struct {
	userID string
	cents  int64
	status string
}

// fakeWallet segue o wallet-service: reserve idempotente por external_ref,
// refund só de reserva existente e PENDING
type fakeWallet struct {
	mu       sync.Mutex
	balances map[string]int64
	res      map[string]*reservation
}

func newFakeWallet(balances map[string]int64) *fakeWallet {
	return &fakeWallet{balances: balances, res: map[string]*reservation{}}
}

func (f *fakeWallet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/wallet/reserve":
		var req walletdto.ReserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if cur, ok := f.res[req.ExternalRef]; ok {
			writeJSON(w, http.StatusOK, walletdto.ReserveResponse{ReservationID: req.ExternalRef, Status: cur.status})
			return
		}
		if f.balances[req.UserID] < req.AmountCents {
			http.Error(w, "insufficient funds", http.StatusConflict)
			return
		}
		f.balances[req.UserID] -= req.AmountCents
		f.res[req.ExternalRef] = &reservation{userID: req.UserID, cents: req.AmountCents, status: "PENDING"}
		writeJSON(w, http.StatusOK, walletdto.ReserveResponse{ReservationID: req.ExternalRef, Status: "PENDING"})
	case "/wallet/refund":
		var req walletdto.RefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		cur, ok := f.res[req.ExternalRef]
		if !ok || cur.userID != req.UserID {
			http.Error(w, "reservation not found", http.StatusNotFound)
			return
		}
		if cur.status == "PENDING" {
			cur.status = "REFUNDED"
			f.balances[cur.userID] += cur.cents
		}
		writeJSON(w, http.StatusOK, walletdto.RefundResponse{Status: cur.status})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeWallet) balance(user string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[user]
}

func (f *fakeWallet) statuses() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int{}
	for _, r := range f.res {
		out[r.status]++
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.MarketEvent
}

func (s *recordingSink) PublishDLQ(_ context.Context, e events.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func TestBetReservesAndRefundsThroughWallet(t *testing.T) {
	fw := newFakeWallet(map[string]int64{"alice": 1000})
	srv := httptest.NewServer(fw)
	defer srv.Close()

	sink := &recordingSink{}
	m := &fakeMarkets{
		gate:    authz.StaticGate{"admin": {bettable.CapabilityEditBettable}},
		wagers:  wager.NewFactory(walletclient.New(srv.URL), sink, nil),
		markets: map[int64]*bettable.Entity{},
	}
	h := NewServer(zap.NewNop(), m).Router()

	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets", "admin", dto.CreateMarketRequest{ID: 8}), http.StatusCreated)
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/8/odds/home", "admin", map[string]string{"value": "1.5"}), http.StatusOK)

	bet := map[string]any{"betId": 1, "selection": "home", "stake_cents": 600, "odd_value": "1.5"}
	expectStatus(t, do(t, h, http.MethodPost, "/v1/markets/8/bets", "alice", bet), http.StatusCreated)
	if got := fw.balance("alice"); got != 400 {
		t.Fatalf("expected 400 after reserve, got %d", got)
	}

	// aposta repetida: a reserva nova é estornada quando o mercado rejeita
	dup := map[string]any{"betId": 1, "selection": "home", "stake_cents": 300, "odd_value": "1.5"}
	rec := do(t, h, http.MethodPost, "/v1/markets/8/bets", "alice", dup)
	expectStatus(t, rec, http.StatusConflict)
	if resp := errorCode(t, rec); resp.Guard != string(bettable.GuardBetNotExists) {
		t.Fatalf("expected not-exists guard, got %+v", resp)
	}
	if got := fw.balance("alice"); got != 400 {
		t.Fatalf("expected rejected bet to be refunded, balance %d", got)
	}

	// saldo insuficiente: nada entra no mercado
	big := map[string]any{"betId": 2, "selection": "home", "stake_cents": 500, "odd_value": "1.5"}
	rec = do(t, h, http.MethodPost, "/v1/markets/8/bets", "alice", big)
	expectStatus(t, rec, http.StatusConflict)
	if resp := errorCode(t, rec); resp.Error != "wallet_reserve_failed" {
		t.Fatalf("expected wallet_reserve_failed, got %+v", resp)
	}
	expectStatus(t, do(t, h, http.MethodGet, "/v1/markets/8/bets/2", "alice", nil), http.StatusNotFound)

	// troca de stake: reserva a versão nova e estorna a anterior
	upd := map[string]any{"selection": "home", "stake_cents": 300, "odd_value": "1.5"}
	expectStatus(t, do(t, h, http.MethodPut, "/v1/markets/8/bets/1", "alice", upd), http.StatusOK)
	if got := fw.balance("alice"); got != 700 {
		t.Fatalf("expected 700 after update, got %d", got)
	}

	expectStatus(t, do(t, h, http.MethodDelete, "/v1/markets/8/bets/1", "alice", nil), http.StatusNoContent)
	if got := fw.balance("alice"); got != 1000 {
		t.Fatalf("expected full balance after delete, got %d", got)
	}
	if st := fw.statuses(); st["REFUNDED"] != 3 || st["PENDING"] != 0 {
		t.Fatalf("expected 3 refunded reservations, got %v", st)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no dlq events, got %+v", sink.events)
	}
}
