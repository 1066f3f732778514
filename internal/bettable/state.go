package bettable

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// State é a fotografia persistível de um mercado (sem as apostas).
type State struct {
	ID        int64
	Odds      map[Outcome]decimal.Decimal
	Deadlines map[Outcome]time.Time
	Outcome   Outcome
	Info      string
}

// Snapshot copia o estado atual e as apostas ordenadas por id
func (e *Entity) Snapshot() (State, []Bet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		ID:        e.id,
		Odds:      make(map[Outcome]decimal.Decimal, len(e.odds)),
		Deadlines: make(map[Outcome]time.Time, len(e.deadlines)),
		Outcome:   e.outcome,
		Info:      e.info,
	}
	for k, v := range e.odds {
		st.Odds[k] = v
	}
	for k, v := range e.deadlines {
		st.Deadlines[k] = v
	}
	bets := make([]Bet, 0, len(e.bets))
	for _, b := range e.bets {
		bets = append(bets, b)
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].ID() < bets[j].ID() })
	return st, bets
}

// Rehydrate reconstrói um mercado a partir do estado persistido.
// Não passa pelos guards: é carga de estado, não uma operação.
func Rehydrate(st State, bets []Bet, gate AuthorizationGate, opts ...Option) (*Entity, error) {
	if st.Outcome == "" {
		st.Outcome = NotAvailable
	}
	if st.Outcome != NotAvailable && !IsConcreteOutcome(st.Outcome) {
		return nil, fmt.Errorf("rehydrate market %d: invalid outcome %q", st.ID, st.Outcome)
	}

	e := New(st.ID, gate, opts...)
	for o, v := range st.Odds {
		if !IsConcreteOutcome(o) {
			return nil, fmt.Errorf("rehydrate market %d: odds for invalid outcome %q", st.ID, o)
		}
		e.odds[o] = v
	}
	for o, t := range st.Deadlines {
		if !IsConcreteOutcome(o) {
			return nil, fmt.Errorf("rehydrate market %d: deadline for invalid outcome %q", st.ID, o)
		}
		if !t.IsZero() {
			e.deadlines[o] = t
		}
	}
	for _, b := range bets {
		if _, dup := e.bets[b.ID()]; dup {
			return nil, fmt.Errorf("rehydrate market %d: duplicate bet %d", st.ID, b.ID())
		}
		e.bets[b.ID()] = b
	}
	e.betsCount = len(e.bets)
	e.outcome = st.Outcome
	e.info = st.Info
	return e, nil
}
