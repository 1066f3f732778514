package authz

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// GrantStore lista as capabilities concedidas a um usuário
type GrantStore interface {
	Capabilities(ctx context.Context, userID string) ([]string, error)
}

// CapabilityCache guarda as capabilities com TTL
type CapabilityCache interface {
	Get(ctx context.Context, userID string) (caps []string, hit bool, err error)
	Set(ctx context.Context, userID string, caps []string, ttl time.Duration) error
}

// Gate responde CheckPermission consultando primeiro o cache e depois o banco.
// Falha de lookup nega a chamada (deny by default).
type Gate struct {
	store GrantStore
	cache CapabilityCache // opcional
	ttl   time.Duration
	log   *zap.Logger
}

func NewGate(store GrantStore, cache CapabilityCache, ttl time.Duration, log *zap.Logger) *Gate {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{store: store, cache: cache, ttl: ttl, log: log}
}

func (g *Gate) CheckPermission(ctx context.Context, caller, capability string) (bool, error) {
	caps, hit, err := g.load(ctx, caller)
	if err != nil {
		g.log.Error("capability lookup failed, deny by default",
			zap.String("user_id", caller),
			zap.String("capability", capability),
			zap.Error(err),
		)
		return false, err
	}

	allowed := slices.Contains(caps, capability)
	if !allowed {
		g.log.Warn("permission denied",
			zap.String("user_id", caller),
			zap.String("capability", capability),
			zap.Bool("cache_hit", hit),
		)
	}
	return allowed, nil
}

func (g *Gate) load(ctx context.Context, userID string) ([]string, bool, error) {
	if g.cache != nil {
		caps, hit, err := g.cache.Get(ctx, userID)
		if err != nil {
			// cache fora do ar não impede a consulta ao banco
			g.log.Warn("capability cache get failed", zap.String("user_id", userID), zap.Error(err))
		} else if hit {
			return caps, true, nil
		}
	}

	caps, err := g.store.Capabilities(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("load capabilities: %w", err)
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, userID, caps, g.ttl); err != nil {
			g.log.Warn("capability cache set failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return caps, false, nil
}

// StaticGate concede capabilities fixas por usuário (dev/local)
type StaticGate map[string][]string

func (s StaticGate) CheckPermission(_ context.Context, caller, capability string) (bool, error) {
	return slices.Contains(s[caller], capability), nil
}
