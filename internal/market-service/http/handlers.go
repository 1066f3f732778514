package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/bettable-market/internal/bettable"
	"github.com/radieske/bettable-market/internal/market-service/dto"
	"github.com/radieske/bettable-market/internal/market-service/repo"
	"github.com/radieske/bettable-market/internal/market-service/wager"
	"github.com/radieske/bettable-market/internal/shared/metrics"
)

// createMarket cria um mercado novo (exige capability de edição)
func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	const op = "create_market"
	var req dto.CreateMarketRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, op, "bad json")
		return
	}
	if req.ID <= 0 {
		s.badRequest(w, op, "id must be positive")
		return
	}
	e, err := s.markets.Create(r.Context(), req.ID, req.Info)
	if err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusCreated, dto.MarketResponse{ID: e.ID(), Info: e.Info(), BetsCount: e.BetsCount()})
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	const op = "get_market"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	s.ok(w, op, http.StatusOK, dto.MarketResponse{ID: e.ID(), Info: e.Info(), BetsCount: e.BetsCount()})
}

func (s *Server) setInfo(w http.ResponseWriter, r *http.Request) {
	const op = "set_info"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	var req dto.SetInfoRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, op, "bad json")
		return
	}
	if err := e.SetInfo(r.Context(), req.Info); err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusOK, dto.MarketResponse{ID: e.ID(), Info: e.Info(), BetsCount: e.BetsCount()})
}

func (s *Server) getOdds(w http.ResponseWriter, r *http.Request) {
	const op = "get_odds"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	o, ok := s.outcomeParam(w, r, op)
	if !ok {
		return
	}
	s.ok(w, op, http.StatusOK, dto.OddsResponse{MarketID: e.ID(), Outcome: string(o), Value: e.Odds(o)})
}

func (s *Server) setOdds(w http.ResponseWriter, r *http.Request) {
	const op = "set_odds"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	o, ok := s.outcomeParam(w, r, op)
	if !ok {
		return
	}
	var req dto.SetOddsRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, op, "bad json")
		return
	}
	if req.Value.IsNegative() {
		s.badRequest(w, op, "odds must not be negative")
		return
	}
	if !repo.FitsOddsColumn(req.Value) {
		s.badRequest(w, op, "odds must have at most 4 decimal places")
		return
	}
	if err := e.SetOdds(r.Context(), o, req.Value); err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusOK, dto.OddsResponse{MarketID: e.ID(), Outcome: string(o), Value: e.Odds(o)})
}

func (s *Server) getDeadline(w http.ResponseWriter, r *http.Request) {
	const op = "get_deadline"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	o, ok := s.outcomeParam(w, r, op)
	if !ok {
		return
	}
	d, err := e.Deadline(r.Context(), o)
	if err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusOK, deadlineResponse(e.ID(), o, d))
}

func (s *Server) setDeadline(w http.ResponseWriter, r *http.Request) {
	const op = "set_deadline"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	o, ok := s.outcomeParam(w, r, op)
	if !ok {
		return
	}
	var req dto.SetDeadlineRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, op, "bad json")
		return
	}
	d, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		s.badRequest(w, op, "deadline must be RFC3339")
		return
	}
	if err := e.SetDeadline(r.Context(), o, d.UTC()); err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusOK, deadlineResponse(e.ID(), o, d.UTC()))
}

func deadlineResponse(id int64, o bettable.Outcome, d time.Time) dto.DeadlineResponse {
	resp := dto.DeadlineResponse{MarketID: id, Outcome: string(o)}
	if !d.IsZero() {
		resp.Deadline = d.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) getOutcome(w http.ResponseWriter, r *http.Request) {
	const op = "get_outcome"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	o, err := e.Outcome(r.Context())
	if err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusOK, dto.OutcomeResponse{MarketID: e.ID(), Outcome: string(o)})
}

func (s *Server) setOutcome(w http.ResponseWriter, r *http.Request) {
	const op = "set_outcome"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	var req dto.SetOutcomeRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, op, "bad json")
		return
	}
	o, err := bettable.ParseOutcome(req.Outcome)
	if err != nil {
		s.badRequest(w, op, err.Error())
		return
	}
	// not_available chega ao mercado e é rejeitado pelo guard de finalidade
	if err := e.SetOutcome(r.Context(), o); err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusOK, dto.OutcomeResponse{MarketID: e.ID(), Outcome: string(o)})
}

// placeBet reserva o stake no wallet e registra a aposta do caller.
// Se o mercado rejeitar a aposta, a reserva é estornada.
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	const op = "add_bet"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	var req dto.PlaceBetRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, op, "bad json")
		return
	}
	if req.BetID <= 0 {
		s.badRequest(w, op, "betId must be positive")
		return
	}
	bet, ok := s.buildBet(w, r, op, e, req)
	if !ok {
		return
	}
	if !s.reserve(w, r, op, bet) {
		return
	}
	if err := e.AddBet(r.Context(), bet); err != nil {
		bet.Withdraw(r.Context())
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusCreated, betResponse(e.ID(), bet))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	const op = "get_bet"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	id, ok := s.betIDParam(w, r, op)
	if !ok {
		return
	}
	bet, err := e.Bet(r.Context(), id)
	if err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusOK, betResponse(e.ID(), bet))
}

func (s *Server) updateBet(w http.ResponseWriter, r *http.Request) {
	const op = "update_bet"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	id, ok := s.betIDParam(w, r, op)
	if !ok {
		return
	}
	var req dto.UpdateBetRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, op, "bad json")
		return
	}
	place := dto.PlaceBetRequest{BetID: id, Selection: req.Selection, StakeCents: req.StakeCents, OddValue: req.OddValue}
	bet, ok := s.buildBet(w, r, op, e, place)
	if !ok {
		return
	}
	// a versão nova reserva o próprio stake; a anterior é estornada depois da troca
	if !s.reserve(w, r, op, bet) {
		return
	}
	prev, err := e.ReplaceBet(r.Context(), bet)
	if err != nil {
		bet.Withdraw(r.Context())
		s.writeError(w, op, err)
		return
	}
	prev.Withdraw(r.Context())
	s.ok(w, op, http.StatusOK, betResponse(e.ID(), bet))
}

// deleteBet remove a aposta; o estorno acontece no Withdraw da aposta
func (s *Server) deleteBet(w http.ResponseWriter, r *http.Request) {
	const op = "delete_bet"
	e, ok := s.market(w, r, op)
	if !ok {
		return
	}
	id, ok := s.betIDParam(w, r, op)
	if !ok {
		return
	}
	bet, err := e.Bet(r.Context(), id)
	if err != nil {
		s.writeError(w, op, err)
		return
	}
	if err := e.DeleteBet(r.Context(), bet); err != nil {
		s.writeError(w, op, err)
		return
	}
	s.ok(w, op, http.StatusNoContent, nil)
}

func (s *Server) betIDParam(w http.ResponseWriter, r *http.Request, op string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "betId"), 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(w, op, "invalid bet id")
		return 0, false
	}
	return id, true
}

// buildBet valida o payload e monta a aposta do caller.
// Se o mercado já tem odd para a seleção, a odd vista pelo cliente precisa bater.
func (s *Server) buildBet(w http.ResponseWriter, r *http.Request, op string, e *bettable.Entity, req dto.PlaceBetRequest) (*wager.Wager, bool) {
	caller, ok := bettable.CallerFrom(r.Context())
	if !ok {
		s.writeError(w, op, &bettable.GuardError{Op: op, Guard: bettable.GuardOwnsBet, Err: bettable.ErrNoCaller})
		return nil, false
	}
	sel, err := bettable.ParseOutcome(req.Selection)
	if err != nil || !bettable.IsConcreteOutcome(sel) {
		s.badRequest(w, op, "selection must be home, draw or away")
		return nil, false
	}
	if req.StakeCents <= 0 || !req.OddValue.IsPositive() {
		s.badRequest(w, op, "stake_cents and odd_value must be positive")
		return nil, false
	}
	if !repo.FitsOddsColumn(req.OddValue) {
		s.badRequest(w, op, "odd_value must have at most 4 decimal places")
		return nil, false
	}

	if cur := e.Odds(sel); !cur.IsZero() && !cur.Equal(req.OddValue) {
		metrics.Operations.WithLabelValues(op, "rejected").Inc()
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "odd_changed", Message: "odd changed; current=" + cur.String()})
		return nil, false
	}

	return s.markets.Wagers().New(e.ID(), req.BetID, caller, sel, req.StakeCents, req.OddValue), true
}

// reserve bloqueia o stake no wallet; falha vira 409 como no bet-service
func (s *Server) reserve(w http.ResponseWriter, r *http.Request, op string, bet *wager.Wager) bool {
	if err := bet.Reserve(r.Context()); err != nil {
		metrics.Operations.WithLabelValues(op, "rejected").Inc()
		s.log.Warn("wallet reserve failed", zap.String("op", op), zap.Int64("bet_id", bet.ID()), zap.Error(err))
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "wallet_reserve_failed", Message: "wallet reserve failed"})
		return false
	}
	return true
}

func betResponse(marketID int64, b bettable.Bet) dto.BetResponse {
	resp := dto.BetResponse{
		MarketID:  marketID,
		BetID:     b.ID(),
		UserID:    b.Owner(),
		Selection: string(b.Outcome()),
	}
	if v, ok := b.(repo.BetView); ok {
		resp.StakeCents = v.Stake()
		resp.OddValue = v.Odd()
	}
	return resp
}
