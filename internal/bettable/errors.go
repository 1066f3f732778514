package bettable

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBettingWindow = errors.New("betting window guard failed")
	ErrStateConflict = errors.New("state conflict")
	ErrNotOwner      = errors.New("caller does not own bet")
	ErrNotFinal      = errors.New("outcome is not final")

	ErrBetExists   = conflict("bet already exists")
	ErrBetNotFound = conflict("bet not found")
	ErrBetsPlaced  = conflict("bets already placed")

	ErrNoCaller = &kindError{msg: "missing caller identity", kind: ErrUnauthorized}
)

// kindError é um sentinel que também casa com a categoria (errors.Is).
type kindError struct {
	msg  string
	kind error
}

func conflict(msg string) error { return &kindError{msg: msg, kind: ErrStateConflict} }

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

// Guard identifica qual verificação rejeitou a chamada
type Guard string

const (
	GuardAuthorization Guard = "authorization"
	GuardBettingWindow Guard = "betting_window"
	GuardNoBetsPlaced  Guard = "no_bets_placed"
	GuardBetExists     Guard = "bet_exists"
	GuardBetNotExists  Guard = "bet_not_exists"
	GuardOwnsBet       Guard = "owns_bet"
	GuardOutcomeFinal  Guard = "outcome_final"
)

// GuardError descreve a rejeição de uma operação.
// Unwrap devolve um dos sentinels acima.
type GuardError struct {
	Op      string
	Guard   Guard
	Outcome Outcome
	BetID   int64
	Err     error
}

func (e *GuardError) Error() string {
	msg := fmt.Sprintf("%s: %s guard", e.Op, e.Guard)
	if e.Outcome != "" {
		msg += fmt.Sprintf(" (outcome=%s)", e.Outcome)
	}
	if e.BetID != 0 {
		msg += fmt.Sprintf(" (bet=%d)", e.BetID)
	}
	return msg + ": " + e.Err.Error()
}

func (e *GuardError) Unwrap() error { return e.Err }
