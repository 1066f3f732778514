package bettable

import (
	"context"
	"time"
)

// CapabilityEditBettable é a única capability exigida pelas operações de edição.
const CapabilityEditBettable = "bettable.edit"

// Bet é a aposta externa referenciada pelo mercado.
// O mercado só lê id, dono e outcome e chama Withdraw ao remover a aposta.
type Bet interface {
	ID() int64
	Owner() string
	Outcome() Outcome
	// Withdraw libera/cancela a aposta. Pode reentrar no Entity.
	Withdraw(ctx context.Context)
}

// AuthorizationGate decide se o caller possui uma capability.
type AuthorizationGate interface {
	CheckPermission(ctx context.Context, caller, capability string) (bool, error)
}

// AuthorizationFunc adapta uma função simples para AuthorizationGate
type AuthorizationFunc func(ctx context.Context, caller, capability string) (bool, error)

func (f AuthorizationFunc) CheckPermission(ctx context.Context, caller, capability string) (bool, error) {
	return f(ctx, caller, capability)
}

// Clock abstrai o horário atual para testes determinísticos.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type callerKey struct{}

// WithCaller anexa a identidade do caller ao contexto da chamada
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom retorna a identidade do caller, se houver
func CallerFrom(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(callerKey{}).(string)
	if !ok || c == "" {
		return "", false
	}
	return c, true
}
