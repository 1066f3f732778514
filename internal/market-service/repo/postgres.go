package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/bettable-market/internal/bettable"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Odds são gravadas em NUMERIC(12,4)
const (
	OddsScale     = 4
	oddsIntDigits = 12 - OddsScale
)

var oddsLimit = decimal.New(1, oddsIntDigits)

// FitsOddsColumn diz se a odd volta do banco exatamente igual (sem arredondar nem estourar)
func FitsOddsColumn(v decimal.Decimal) bool {
	return v.Equal(v.Round(OddsScale)) && v.Abs().LessThan(oddsLimit)
}

// BetView expõe os dados persistíveis de uma aposta.
// Implementado por wager.Wager.
type BetView interface {
	bettable.Bet
	Stake() int64
	Odd() decimal.Decimal
	ExternalRef() string
}

// Postgres implementa a persistência dos mercados em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de mercados
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas do market-service se não existirem
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS markets (
			id         BIGINT PRIMARY KEY,
			info       TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL DEFAULT 'not_available',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS market_odds (
			market_id BIGINT NOT NULL REFERENCES markets(id),
			outcome   TEXT NOT NULL,
			value     NUMERIC(12,4) NOT NULL,
			PRIMARY KEY (market_id, outcome)
		);
		CREATE TABLE IF NOT EXISTS market_deadlines (
			market_id BIGINT NOT NULL REFERENCES markets(id),
			outcome   TEXT NOT NULL,
			deadline  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (market_id, outcome)
		);
		CREATE TABLE IF NOT EXISTS market_bets (
			market_id   BIGINT NOT NULL REFERENCES markets(id),
			bet_id      BIGINT NOT NULL,
			user_id     TEXT NOT NULL,
			selection   TEXT NOT NULL,
			stake_cents BIGINT NOT NULL,
			odd_value   NUMERIC(12,4) NOT NULL,
			external_ref TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (market_id, bet_id)
		)`)
	return err
}

// CreateMarket insere um mercado novo; ErrAlreadyExists se o id já existe
func (p *Postgres) CreateMarket(ctx context.Context, id int64, info string) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO markets (id, info) VALUES ($1,$2)`, id, info)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// Load lê o mercado completo: estado e apostas
func (p *Postgres) Load(ctx context.Context, id int64) (bettable.State, []BetRow, error) {
	st := bettable.State{
		ID:        id,
		Odds:      map[bettable.Outcome]decimal.Decimal{},
		Deadlines: map[bettable.Outcome]time.Time{},
	}

	var outcome string
	err := p.db.QueryRowContext(ctx, `SELECT info, outcome FROM markets WHERE id=$1`, id).Scan(&st.Info, &outcome)
	if err == sql.ErrNoRows {
		return st, nil, ErrNotFound
	}
	if err != nil {
		return st, nil, fmt.Errorf("load market: %w", err)
	}
	st.Outcome = bettable.Outcome(outcome)

	if err := p.scanPairs(ctx, `SELECT outcome, value FROM market_odds WHERE market_id=$1`, id, func(rows *sql.Rows) error {
		var o string
		var v decimal.Decimal
		if err := rows.Scan(&o, &v); err != nil {
			return err
		}
		st.Odds[bettable.Outcome(o)] = v
		return nil
	}); err != nil {
		return st, nil, fmt.Errorf("load odds: %w", err)
	}

	if err := p.scanPairs(ctx, `SELECT outcome, deadline FROM market_deadlines WHERE market_id=$1`, id, func(rows *sql.Rows) error {
		var o string
		var d time.Time
		if err := rows.Scan(&o, &d); err != nil {
			return err
		}
		st.Deadlines[bettable.Outcome(o)] = d.UTC()
		return nil
	}); err != nil {
		return st, nil, fmt.Errorf("load deadlines: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT bet_id, user_id, selection, stake_cents, odd_value, external_ref
		FROM market_bets WHERE market_id=$1 ORDER BY bet_id`, id)
	if err != nil {
		return st, nil, fmt.Errorf("load bets: %w", err)
	}
	defer rows.Close()

	var bets []BetRow
	for rows.Next() {
		b := BetRow{MarketID: id}
		if err := rows.Scan(&b.BetID, &b.UserID, &b.Selection, &b.StakeCents, &b.OddValue, &b.ExternalRef); err != nil {
			return st, nil, fmt.Errorf("scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	return st, bets, rows.Err()
}

func (p *Postgres) scanPairs(ctx context.Context, query string, id int64, scan func(*sql.Rows) error) error {
	rows, err := p.db.QueryContext(ctx, query, id)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Apply persiste uma mutação aceita pelo mercado.
// Roda sob o lock do mercado; erro aqui desfaz a mutação em memória.
func (p *Postgres) Apply(ctx context.Context, c bettable.Change) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch c.Kind {
	case bettable.ChangeOdds:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO market_odds (market_id, outcome, value) VALUES ($1,$2,$3)
			ON CONFLICT (market_id, outcome) DO UPDATE SET value = EXCLUDED.value`,
			c.MarketID, string(c.Outcome), c.Odds)
	case bettable.ChangeDeadline:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO market_deadlines (market_id, outcome, deadline) VALUES ($1,$2,$3)
			ON CONFLICT (market_id, outcome) DO UPDATE SET deadline = EXCLUDED.deadline`,
			c.MarketID, string(c.Outcome), c.Deadline)
	case bettable.ChangeOutcome:
		_, err = tx.ExecContext(ctx, `UPDATE markets SET outcome=$1 WHERE id=$2`, string(c.Outcome), c.MarketID)
	case bettable.ChangeInfo:
		_, err = tx.ExecContext(ctx, `UPDATE markets SET info=$1 WHERE id=$2`, c.Info, c.MarketID)
	case bettable.ChangeBetAdded, bettable.ChangeBetUpdated:
		b, ok := c.Bet.(BetView)
		if !ok {
			return fmt.Errorf("apply %s: bet %d is not persistable", c.Kind, c.Bet.ID())
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO market_bets (market_id, bet_id, user_id, selection, stake_cents, odd_value, external_ref)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (market_id, bet_id) DO UPDATE SET
				selection = EXCLUDED.selection,
				stake_cents = EXCLUDED.stake_cents,
				odd_value = EXCLUDED.odd_value,
				external_ref = EXCLUDED.external_ref,
				updated_at = now()`,
			c.MarketID, b.ID(), b.Owner(), string(b.Outcome()), b.Stake(), b.Odd(), b.ExternalRef())
	case bettable.ChangeBetDeleted:
		_, err = tx.ExecContext(ctx, `DELETE FROM market_bets WHERE market_id=$1 AND bet_id=$2`, c.MarketID, c.Bet.ID())
	default:
		return fmt.Errorf("apply: unknown change %q", c.Kind)
	}
	if err != nil {
		return fmt.Errorf("apply %s: %w", c.Kind, err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE markets SET updated_at=now() WHERE id=$1`, c.MarketID); err != nil {
		return err
	}
	return tx.Commit()
}
