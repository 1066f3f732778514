package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/radieske/bettable-market/internal/bettable"
	"github.com/radieske/bettable-market/internal/market-service/repo"
	"github.com/radieske/bettable-market/internal/market-service/wager"
	"github.com/radieske/bettable-market/pkg/contracts/events"
)

var (
	ErrNotFound      = errors.New("market not found")
	ErrAlreadyExists = errors.New("market already exists")
)

// Store é a persistência usada pelo registry (repo.Postgres em produção)
type Store interface {
	CreateMarket(ctx context.Context, id int64, info string) error
	Load(ctx context.Context, id int64) (bettable.State, []repo.BetRow, error)
	Apply(ctx context.Context, c bettable.Change) error
}

type Publisher interface {
	PublishMarketEvent(ctx context.Context, e events.MarketEvent) error
}

// OddsMirror replica as odds para leitura rápida (Redis)
type OddsMirror interface {
	SetOdds(ctx context.Context, marketID int64, o bettable.Outcome, v decimal.Decimal) error
}

// Registry mantém os mercados vivos em memória, carregando do banco sob demanda.
// Toda mutação aceita é persistida antes de ser confirmada e depois publicada.
type Registry struct {
	mu      sync.RWMutex
	markets map[int64]*bettable.Entity
	loads   singleflight.Group

	store  Store
	gate   bettable.AuthorizationGate
	wagers *wager.Factory
	publ   Publisher  // opcional
	odds   OddsMirror // opcional
	opts   []bettable.Option
	log    *zap.Logger
}

func New(store Store, gate bettable.AuthorizationGate, wagers *wager.Factory, publ Publisher, odds OddsMirror, log *zap.Logger, opts ...bettable.Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		markets: make(map[int64]*bettable.Entity),
		store:   store,
		gate:    gate,
		wagers:  wagers,
		publ:    publ,
		odds:    odds,
		opts:    opts,
		log:     log,
	}
}

// Wagers devolve a factory usada para montar apostas deste registry
func (r *Registry) Wagers() *wager.Factory { return r.wagers }

// Create cria um mercado novo. Exige a mesma capability de edição do mercado.
func (r *Registry) Create(ctx context.Context, id int64, info string) (*bettable.Entity, error) {
	const op = "create_market"
	caller, ok := bettable.CallerFrom(ctx)
	if !ok {
		return nil, &bettable.GuardError{Op: op, Guard: bettable.GuardAuthorization, Err: bettable.ErrNoCaller}
	}
	if r.gate == nil {
		return nil, &bettable.GuardError{Op: op, Guard: bettable.GuardAuthorization, Err: bettable.ErrUnauthorized}
	}
	allowed, err := r.gate.CheckPermission(ctx, caller, bettable.CapabilityEditBettable)
	if err != nil {
		return nil, &bettable.GuardError{Op: op, Guard: bettable.GuardAuthorization, Err: fmt.Errorf("%w: %w", bettable.ErrUnauthorized, err)}
	}
	if !allowed {
		return nil, &bettable.GuardError{Op: op, Guard: bettable.GuardAuthorization, Err: bettable.ErrUnauthorized}
	}

	if err := r.store.CreateMarket(ctx, id, info); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create market %d: %w", id, err)
	}

	e, err := bettable.Rehydrate(bettable.State{ID: id, Info: info}, nil, r.gate, r.entityOpts()...)
	if err != nil {
		return nil, err
	}

	// um Get concorrente pode ter carregado o mercado logo após o insert: vale o que já está no mapa
	r.mu.Lock()
	if cur, ok := r.markets[id]; ok {
		e = cur
	} else {
		r.markets[id] = e
	}
	r.mu.Unlock()

	r.log.Info("market created", zap.Int64("market_id", id), zap.String("user_id", caller))
	return e, nil
}

// Get devolve o mercado vivo, carregando do banco na primeira vez
func (r *Registry) Get(ctx context.Context, id int64) (*bettable.Entity, error) {
	r.mu.RLock()
	e, ok := r.markets[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	// cargas concorrentes do mesmo mercado viram uma só
	v, err, _ := r.loads.Do(strconv.FormatInt(id, 10), func() (any, error) {
		r.mu.RLock()
		e, ok := r.markets[id]
		r.mu.RUnlock()
		if ok {
			return e, nil
		}

		e, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.markets[id]; ok {
			return cur, nil
		}
		r.markets[id] = e
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bettable.Entity), nil
}

func (r *Registry) load(ctx context.Context, id int64) (*bettable.Entity, error) {
	st, rows, err := r.store.Load(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load market %d: %w", id, err)
	}

	bets := make([]bettable.Bet, 0, len(rows))
	for _, row := range rows {
		w, err := r.wagers.FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("load market %d: %w", id, err)
		}
		bets = append(bets, w)
	}

	e, err := bettable.Rehydrate(st, bets, r.gate, r.entityOpts()...)
	if err != nil {
		return nil, err
	}
	r.log.Debug("market loaded", zap.Int64("market_id", id), zap.Int("bets", len(bets)))
	return e, nil
}

func (r *Registry) entityOpts() []bettable.Option {
	return append([]bettable.Option{
		bettable.WithLogger(r.log),
		bettable.WithObserver(bettable.ObserverFunc(r.observe)),
	}, r.opts...)
}

// observe persiste a mudança (erro desfaz a mutação) e depois notifica cache e Kafka
func (r *Registry) observe(ctx context.Context, c bettable.Change) error {
	if err := r.store.Apply(ctx, c); err != nil {
		return err
	}

	if c.Kind == bettable.ChangeOdds && r.odds != nil {
		if err := r.odds.SetOdds(ctx, c.MarketID, c.Outcome, c.Odds); err != nil {
			r.log.Warn("odds cache update failed", zap.Int64("market_id", c.MarketID), zap.Error(err))
		}
	}

	if r.publ != nil {
		if err := r.publ.PublishMarketEvent(ctx, toEvent(c)); err != nil {
			r.log.Warn("market event publish failed",
				zap.Int64("market_id", c.MarketID),
				zap.String("type", string(c.Kind)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func toEvent(c bettable.Change) events.MarketEvent {
	e := events.MarketEvent{
		MarketID: c.MarketID,
		Type:     string(c.Kind),
		Outcome:  string(c.Outcome),
	}
	switch c.Kind {
	case bettable.ChangeOdds:
		e.Value = c.Odds.String()
	case bettable.ChangeDeadline:
		e.Deadline = c.Deadline.UTC().Format(time.RFC3339)
	case bettable.ChangeInfo:
		e.Info = c.Info
	case bettable.ChangeBetAdded, bettable.ChangeBetUpdated, bettable.ChangeBetDeleted:
		e.BetID = c.Bet.ID()
		e.UserID = c.Bet.Owner()
		if v, ok := c.Bet.(repo.BetView); ok {
			e.StakeCents = v.Stake()
			e.Value = v.Odd().String()
			e.ExternalRef = v.ExternalRef()
		}
	}
	return e
}
