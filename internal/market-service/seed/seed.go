// Package seed grava o estado inicial de um mercado direto no repositório.
//
// Com a janela de apostas padrão, odds e apostas só passam depois que o
// deadline da seleção venceu, e o deadline só pode ser definido enquanto a
// janela está aberta. Um mercado criado pela API fica travado; o seed grava
// deadlines e odds sem passar pelos guards, que é o mesmo caminho da carga
// do registry.
package seed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bettable-market/internal/bettable"
	"github.com/radieske/bettable-market/internal/market-service/repo"
)

// Store é o que o seed usa do repositório
type Store interface {
	CreateMarket(ctx context.Context, id int64, info string) error
	Apply(ctx context.Context, c bettable.Change) error
}

// Market é o estado inicial a ser gravado
type Market struct {
	ID        int64
	Info      string
	Odds      map[bettable.Outcome]decimal.Decimal
	Deadlines map[bettable.Outcome]time.Time
}

var ErrInvalid = errors.New("invalid seed")

// Run valida o mercado e grava: primeiro o mercado, depois deadlines e odds.
// O id precisa ser novo; repo.ErrAlreadyExists volta sem nada gravado.
func Run(ctx context.Context, s Store, m Market) error {
	if err := validate(m); err != nil {
		return err
	}
	if err := s.CreateMarket(ctx, m.ID, m.Info); err != nil {
		return fmt.Errorf("create market %d: %w", m.ID, err)
	}

	for _, o := range sortedOutcomes(m.Deadlines) {
		c := bettable.Change{MarketID: m.ID, Kind: bettable.ChangeDeadline, Outcome: o, Deadline: m.Deadlines[o].UTC()}
		if err := s.Apply(ctx, c); err != nil {
			return fmt.Errorf("seed market %d: %w", m.ID, err)
		}
	}
	for _, o := range sortedOutcomes(m.Odds) {
		c := bettable.Change{MarketID: m.ID, Kind: bettable.ChangeOdds, Outcome: o, Odds: m.Odds[o]}
		if err := s.Apply(ctx, c); err != nil {
			return fmt.Errorf("seed market %d: %w", m.ID, err)
		}
	}
	return nil
}

func validate(m Market) error {
	if m.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalid)
	}
	for o, v := range m.Odds {
		if v.IsNegative() || !repo.FitsOddsColumn(v) {
			return fmt.Errorf("%w: odds %s for %s", ErrInvalid, v, o)
		}
	}
	for o, t := range m.Deadlines {
		if t.IsZero() {
			return fmt.Errorf("%w: empty deadline for %s", ErrInvalid, o)
		}
	}
	// mesmas regras da carga do registry: só home, draw e away
	st := bettable.State{ID: m.ID, Odds: m.Odds, Deadlines: m.Deadlines, Info: m.Info}
	if _, err := bettable.Rehydrate(st, nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func sortedOutcomes[V any](m map[bettable.Outcome]V) []bettable.Outcome {
	out := make([]bettable.Outcome, 0, len(m))
	for o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseOdds lê pares outcome=valor, ex: home=1.85
func ParseOdds(pairs []string) (map[bettable.Outcome]decimal.Decimal, error) {
	out := make(map[bettable.Outcome]decimal.Decimal, len(pairs))
	for _, p := range pairs {
		o, raw, err := splitPair(p)
		if err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: odds %q: %v", ErrInvalid, p, err)
		}
		out[o] = v
	}
	return out, nil
}

// ParseDeadlines lê pares outcome=RFC3339, ex: draw=2025-01-01T18:00:00Z
func ParseDeadlines(pairs []string) (map[bettable.Outcome]time.Time, error) {
	out := make(map[bettable.Outcome]time.Time, len(pairs))
	for _, p := range pairs {
		o, raw, err := splitPair(p)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: deadline %q: %v", ErrInvalid, p, err)
		}
		out[o] = t
	}
	return out, nil
}

func splitPair(p string) (bettable.Outcome, string, error) {
	k, v, ok := strings.Cut(p, "=")
	if !ok || v == "" {
		return "", "", fmt.Errorf("%w: expected outcome=value, got %q", ErrInvalid, p)
	}
	o, err := bettable.ParseOutcome(k)
	if err != nil || !bettable.IsConcreteOutcome(o) {
		return "", "", fmt.Errorf("%w: outcome %q", ErrInvalid, k)
	}
	return o, v, nil
}
