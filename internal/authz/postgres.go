package authz

import (
	"context"
	"database/sql"
)

// Postgres lê as concessões da tabela capability_grants
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Capabilities(ctx context.Context, userID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT capability FROM capability_grants WHERE user_id=$1 ORDER BY capability`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	caps := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

// Grant concede uma capability (idempotente)
func (p *Postgres) Grant(ctx context.Context, userID, capability string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO capability_grants (user_id, capability) VALUES ($1,$2)
		ON CONFLICT (user_id, capability) DO NOTHING`, userID, capability)
	return err
}

// EnsureSchema cria a tabela de concessões se não existir
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS capability_grants (
			user_id    TEXT NOT NULL,
			capability TEXT NOT NULL,
			granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, capability)
		)`)
	return err
}
