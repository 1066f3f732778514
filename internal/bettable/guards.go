package bettable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// WindowPolicy define a condição da janela de apostas de um outcome.
type WindowPolicy int

const (
	// WindowLiteral passa só com deadline definido e já vencido (default).
	WindowLiteral WindowPolicy = iota
	// WindowOpen passa enquanto o deadline não foi definido ou ainda não venceu.
	WindowOpen
)

// ParseWindowPolicy aceita "literal" ou "open"
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "literal":
		return WindowLiteral, nil
	case "open":
		return WindowOpen, nil
	}
	return WindowLiteral, fmt.Errorf("unknown betting window policy %q", s)
}

func (p WindowPolicy) String() string {
	if p == WindowOpen {
		return "open"
	}
	return "literal"
}

// allows avalia a janela para um deadline (zero = não definido)
func (p WindowPolicy) allows(deadline, now time.Time) bool {
	if p == WindowOpen {
		return deadline.IsZero() || !now.After(deadline)
	}
	return !deadline.IsZero() && now.After(deadline)
}

// requireEditor consulta o gate antes de qualquer lock; erro do gate nega a chamada
func (e *Entity) requireEditor(ctx context.Context, op string) error {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return e.reject(&GuardError{Op: op, Guard: GuardAuthorization, Err: ErrNoCaller})
	}
	if e.gate == nil {
		return e.reject(&GuardError{Op: op, Guard: GuardAuthorization, Err: ErrUnauthorized})
	}
	allowed, err := e.gate.CheckPermission(ctx, caller, CapabilityEditBettable)
	if err != nil {
		return e.reject(&GuardError{Op: op, Guard: GuardAuthorization, Err: fmt.Errorf("%w: %w", ErrUnauthorized, err)})
	}
	if !allowed {
		return e.reject(&GuardError{Op: op, Guard: GuardAuthorization, Err: ErrUnauthorized})
	}
	return nil
}

func (e *Entity) requireWindow(op string, o Outcome, now time.Time) error {
	if !e.window.allows(e.deadlines[o], now) {
		return e.reject(&GuardError{Op: op, Guard: GuardBettingWindow, Outcome: o, Err: ErrBettingWindow})
	}
	return nil
}

func (e *Entity) requireBet(op string, id int64) (Bet, error) {
	b, ok := e.bets[id]
	if !ok {
		return nil, e.reject(&GuardError{Op: op, Guard: GuardBetExists, BetID: id, Err: ErrBetNotFound})
	}
	return b, nil
}

func (e *Entity) requireOwner(op, caller string, hasCaller bool, b Bet) error {
	if !hasCaller {
		return e.reject(&GuardError{Op: op, Guard: GuardOwnsBet, BetID: b.ID(), Err: ErrNoCaller})
	}
	if b.Owner() != caller {
		return e.reject(&GuardError{Op: op, Guard: GuardOwnsBet, BetID: b.ID(), Err: ErrNotOwner})
	}
	return nil
}

func (e *Entity) reject(ge *GuardError) error {
	e.log.Debug("guard rejected call",
		zap.String("op", ge.Op),
		zap.String("guard", string(ge.Guard)),
		zap.String("outcome", string(ge.Outcome)),
		zap.Int64("bet_id", ge.BetID),
		zap.Error(ge.Err),
	)
	return ge
}
