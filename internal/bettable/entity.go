package bettable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Entity é o mercado apostável: odds, deadlines, apostas, outcome final e info.
// Toda operação pública roda atomicamente sob o mutex da instância.
type Entity struct {
	mu sync.Mutex

	id        int64
	odds      map[Outcome]decimal.Decimal
	deadlines map[Outcome]time.Time
	bets      map[int64]Bet
	betsCount int
	outcome   Outcome
	info      string

	gate     AuthorizationGate
	clock    Clock
	window   WindowPolicy
	observer Observer
	log      *zap.Logger
}

// Option configura um Entity na criação
type Option func(*Entity)

func WithClock(c Clock) Option { return func(e *Entity) { e.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(e *Entity) { e.log = l } }

func WithWindowPolicy(p WindowPolicy) Option { return func(e *Entity) { e.window = p } }

func WithObserver(o Observer) Option { return func(e *Entity) { e.observer = o } }

// New cria um mercado vazio com outcome NotAvailable.
// Um gate nil nega todas as operações de edição.
func New(id int64, gate AuthorizationGate, opts ...Option) *Entity {
	e := &Entity{
		id:        id,
		odds:      make(map[Outcome]decimal.Decimal),
		deadlines: make(map[Outcome]time.Time),
		bets:      make(map[int64]Bet),
		outcome:   NotAvailable,
		gate:      gate,
		clock:     systemClock{},
		window:    WindowLiteral,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(zap.Int64("market_id", id))
	return e
}

func (e *Entity) ID() int64 { return e.id }

// SetDeadline define o horário de fechamento das apostas para o outcome
func (e *Entity) SetDeadline(ctx context.Context, o Outcome, deadline time.Time) error {
	const op = "set_deadline"
	now := e.clock.Now()
	if err := e.requireEditor(ctx, op); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireWindow(op, o, now); err != nil {
		return err
	}
	if !IsConcreteOutcome(o) {
		return e.reject(&GuardError{Op: op, Guard: GuardOutcomeFinal, Outcome: o, Err: ErrNotFinal})
	}

	prev, had := e.deadlines[o]
	e.deadlines[o] = deadline
	if err := e.commit(ctx, op, Change{Kind: ChangeDeadline, Outcome: o, Deadline: deadline}); err != nil {
		if had {
			e.deadlines[o] = prev
		} else {
			delete(e.deadlines, o)
		}
		return err
	}
	return nil
}

// Deadline lê o deadline do outcome. A leitura passa pelos mesmos guards da escrita.
func (e *Entity) Deadline(ctx context.Context, o Outcome) (time.Time, error) {
	const op = "get_deadline"
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireWindow(op, o, now); err != nil {
		return time.Time{}, err
	}
	if !IsConcreteOutcome(o) {
		return time.Time{}, e.reject(&GuardError{Op: op, Guard: GuardOutcomeFinal, Outcome: o, Err: ErrNotFinal})
	}
	return e.deadlines[o], nil
}

// SetOdds grava a odd do outcome. Qualquer aposta registrada congela todas as odds.
func (e *Entity) SetOdds(ctx context.Context, o Outcome, value decimal.Decimal) error {
	const op = "set_odds"
	now := e.clock.Now()
	if err := e.requireEditor(ctx, op); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireWindow(op, o, now); err != nil {
		return err
	}
	if e.betsCount != 0 {
		return e.reject(&GuardError{Op: op, Guard: GuardNoBetsPlaced, Outcome: o, Err: ErrBetsPlaced})
	}

	prev, had := e.odds[o]
	e.odds[o] = value
	if err := e.commit(ctx, op, Change{Kind: ChangeOdds, Outcome: o, Odds: value}); err != nil {
		if had {
			e.odds[o] = prev
		} else {
			delete(e.odds, o)
		}
		return err
	}
	return nil
}

// Odds retorna a odd do outcome, zero quando não definida
func (e *Entity) Odds(o Outcome) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.odds[o]; ok {
		return v
	}
	return decimal.Zero
}

// SetOutcome grava o resultado final. Não exige que o outcome anterior seja NotAvailable.
func (e *Entity) SetOutcome(ctx context.Context, o Outcome) error {
	const op = "set_outcome"
	if err := e.requireEditor(ctx, op); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !IsConcreteOutcome(o) {
		return e.reject(&GuardError{Op: op, Guard: GuardOutcomeFinal, Outcome: o, Err: ErrNotFinal})
	}

	prev := e.outcome
	e.outcome = o
	if err := e.commit(ctx, op, Change{Kind: ChangeOutcome, Outcome: o}); err != nil {
		e.outcome = prev
		return err
	}
	return nil
}

// Outcome retorna o resultado final; falha enquanto o mercado não foi resolvido
func (e *Entity) Outcome(ctx context.Context) (Outcome, error) {
	const op = "get_outcome"
	e.mu.Lock()
	defer e.mu.Unlock()

	if !IsConcreteOutcome(e.outcome) {
		return NotAvailable, e.reject(&GuardError{Op: op, Guard: GuardOutcomeFinal, Outcome: e.outcome, Err: ErrNotFinal})
	}
	return e.outcome, nil
}

// AddBet registra uma nova aposta do caller
func (e *Entity) AddBet(ctx context.Context, b Bet) error {
	const op = "add_bet"
	now := e.clock.Now()
	caller, hasCaller := CallerFrom(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	id := b.ID()
	if _, exists := e.bets[id]; exists {
		return e.reject(&GuardError{Op: op, Guard: GuardBetNotExists, BetID: id, Err: ErrBetExists})
	}
	if err := e.requireWindow(op, b.Outcome(), now); err != nil {
		return err
	}
	if err := e.requireOwner(op, caller, hasCaller, b); err != nil {
		return err
	}

	e.bets[id] = b
	e.betsCount++
	if err := e.commit(ctx, op, Change{Kind: ChangeBetAdded, Outcome: b.Outcome(), Bet: b}); err != nil {
		delete(e.bets, id)
		e.betsCount--
		return err
	}
	return nil
}

// Bet retorna a aposta armazenada, apenas para o dono
func (e *Entity) Bet(ctx context.Context, id int64) (Bet, error) {
	const op = "get_bet"
	caller, hasCaller := CallerFrom(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	stored, err := e.requireBet(op, id)
	if err != nil {
		return nil, err
	}
	if err := e.requireOwner(op, caller, hasCaller, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// UpdateBet substitui a aposta armazenada sob o mesmo id (betsCount não muda).
// O caller precisa ser dono da aposta armazenada e da nova.
func (e *Entity) UpdateBet(ctx context.Context, b Bet) error {
	_, err := e.ReplaceBet(ctx, b)
	return err
}

// ReplaceBet é o UpdateBet que devolve a aposta substituída.
// Withdraw não é chamado nela: quem substitui decide o que fazer com a anterior.
func (e *Entity) ReplaceBet(ctx context.Context, b Bet) (Bet, error) {
	const op = "update_bet"
	now := e.clock.Now()
	caller, hasCaller := CallerFrom(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	id := b.ID()
	stored, err := e.requireBet(op, id)
	if err != nil {
		return nil, err
	}
	if err := e.requireOwner(op, caller, hasCaller, stored); err != nil {
		return nil, err
	}
	if err := e.requireOwner(op, caller, hasCaller, b); err != nil {
		return nil, err
	}
	if err := e.requireWindow(op, b.Outcome(), now); err != nil {
		return nil, err
	}

	e.bets[id] = b
	if err := e.commit(ctx, op, Change{Kind: ChangeBetUpdated, Outcome: b.Outcome(), Bet: b}); err != nil {
		e.bets[id] = stored
		return nil, err
	}
	return stored, nil
}

// DeleteBet remove a aposta e chama Withdraw nela.
// Withdraw roda só depois da remoção e com o lock liberado, então uma
// chamada reentrante já enxerga a aposta como removida.
func (e *Entity) DeleteBet(ctx context.Context, b Bet) error {
	removed, err := e.removeBet(ctx, b.ID())
	if err != nil {
		return err
	}
	removed.Withdraw(ctx)
	return nil
}

func (e *Entity) removeBet(ctx context.Context, id int64) (Bet, error) {
	const op = "delete_bet"
	now := e.clock.Now()
	caller, hasCaller := CallerFrom(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	stored, err := e.requireBet(op, id)
	if err != nil {
		return nil, err
	}
	if err := e.requireOwner(op, caller, hasCaller, stored); err != nil {
		return nil, err
	}
	if err := e.requireWindow(op, stored.Outcome(), now); err != nil {
		return nil, err
	}

	delete(e.bets, id)
	e.betsCount--
	if err := e.commit(ctx, op, Change{Kind: ChangeBetDeleted, Outcome: stored.Outcome(), Bet: stored}); err != nil {
		e.bets[id] = stored
		e.betsCount++
		return nil, err
	}
	return stored, nil
}

// SetInfo sobrescreve o texto descritivo do mercado
func (e *Entity) SetInfo(ctx context.Context, info string) error {
	const op = "set_info"
	if err := e.requireEditor(ctx, op); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.info
	e.info = info
	if err := e.commit(ctx, op, Change{Kind: ChangeInfo, Info: info}); err != nil {
		e.info = prev
		return err
	}
	return nil
}

func (e *Entity) Info() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// BetsCount retorna quantas apostas estão registradas
func (e *Entity) BetsCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.betsCount
}

// commit notifica o observer; se ele falhar a mutação é desfeita pelo chamador
func (e *Entity) commit(ctx context.Context, op string, c Change) error {
	c.MarketID = e.id
	if e.observer != nil {
		if err := e.observer.Observe(ctx, c); err != nil {
			e.log.Warn("observer rejected change", zap.String("op", op), zap.Error(err))
			return fmt.Errorf("%s: observe: %w", op, err)
		}
	}
	e.log.Info("market changed", zap.String("op", op), zap.String("kind", string(c.Kind)), zap.String("outcome", string(c.Outcome)))
	return nil
}
