package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/bettable-market/internal/bettable"
	"github.com/radieske/bettable-market/internal/market-service/dto"
	"github.com/radieske/bettable-market/internal/market-service/registry"
	"github.com/radieske/bettable-market/internal/market-service/wager"
	"github.com/radieske/bettable-market/internal/shared/metrics"
)

// HeaderUserID carrega a identidade do caller, já autenticada pelo gateway
const HeaderUserID = "X-User-Id"

// Markets define o que o handler HTTP usa do registry
type Markets interface {
	Create(ctx context.Context, id int64, info string) (*bettable.Entity, error)
	Get(ctx context.Context, id int64) (*bettable.Entity, error)
	Wagers() *wager.Factory
}

// Server expõe o mercado apostável via REST
type Server struct {
	log     *zap.Logger
	markets Markets
	stream  http.HandlerFunc
	origins []string
}

func NewServer(log *zap.Logger, m Markets) *Server {
	return &Server{log: log, markets: m}
}

// WithStream habilita o endpoint WebSocket de atualizações em /v1/ws
func (s *Server) WithStream(h http.HandlerFunc) *Server {
	s.stream = h
	return s
}

// WithCORS libera as origens do front; sem origens o middleware não é montado
func (s *Server) WithCORS(origins []string) *Server {
	s.origins = origins
	return s
}

// Router retorna o roteador HTTP com as rotas do market-service
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", HeaderUserID},
			MaxAge:         300,
		}))
	}
	r.Use(withCaller)

	if s.stream != nil {
		r.Get("/v1/ws", s.stream)
	}
	r.Post("/v1/markets", s.createMarket)
	r.Route("/v1/markets/{id}", func(r chi.Router) {
		r.Get("/", s.getMarket)
		r.Put("/info", s.setInfo)
		r.Get("/odds/{outcome}", s.getOdds)
		r.Put("/odds/{outcome}", s.setOdds)
		r.Get("/deadlines/{outcome}", s.getDeadline)
		r.Put("/deadlines/{outcome}", s.setDeadline)
		r.Get("/outcome", s.getOutcome)
		r.Put("/outcome", s.setOutcome)
		r.Post("/bets", s.placeBet)
		r.Get("/bets/{betId}", s.getBet)
		r.Put("/bets/{betId}", s.updateBet)
		r.Delete("/bets/{betId}", s.deleteBet)
	})
	return r
}

// withCaller copia o header de identidade para o contexto do mercado
func withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(HeaderUserID); id != "" {
			r = r.WithContext(bettable.WithCaller(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// market resolve o {id} da rota; escreve o erro e retorna false se falhar
func (s *Server) market(w http.ResponseWriter, r *http.Request, op string) (*bettable.Entity, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.badRequest(w, op, "invalid market id")
		return nil, false
	}
	e, err := s.markets.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, op, err)
		return nil, false
	}
	return e, true
}

func (s *Server) outcomeParam(w http.ResponseWriter, r *http.Request, op string) (bettable.Outcome, bool) {
	o, err := bettable.ParseOutcome(chi.URLParam(r, "outcome"))
	if err != nil {
		s.badRequest(w, op, err.Error())
		return "", false
	}
	return o, true
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) ok(w http.ResponseWriter, op string, status int, v any) {
	metrics.Operations.WithLabelValues(op, "ok").Inc()
	if v == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) badRequest(w http.ResponseWriter, op, msg string) {
	metrics.Operations.WithLabelValues(op, "rejected").Inc()
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad_request", Message: msg})
}

// writeError traduz os erros do mercado para status HTTP
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)

	resp := dto.ErrorResponse{Error: code, Message: err.Error()}
	var ge *bettable.GuardError
	if errors.As(err, &ge) {
		resp.Guard = string(ge.Guard)
		metrics.GuardRejections.WithLabelValues(string(ge.Guard)).Inc()
	}

	if status >= http.StatusInternalServerError {
		metrics.Operations.WithLabelValues(op, "error").Inc()
		s.log.Error("market operation failed", zap.String("op", op), zap.Error(err))
		resp.Message = "internal error"
	} else {
		metrics.Operations.WithLabelValues(op, "rejected").Inc()
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, bettable.ErrNoCaller):
		return http.StatusUnauthorized, "missing_caller"
	case errors.Is(err, bettable.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, bettable.ErrNotOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, bettable.ErrBetNotFound):
		return http.StatusNotFound, "bet_not_found"
	case errors.Is(err, bettable.ErrStateConflict):
		return http.StatusConflict, "state_conflict"
	case errors.Is(err, bettable.ErrBettingWindow):
		return http.StatusConflict, "betting_window"
	case errors.Is(err, bettable.ErrNotFinal):
		return http.StatusConflict, "not_final"
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, "market_not_found"
	case errors.Is(err, registry.ErrAlreadyExists):
		return http.StatusConflict, "market_exists"
	}
	return http.StatusInternalServerError, "internal"
}
