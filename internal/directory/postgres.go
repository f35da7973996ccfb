package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mochifi/pkg/sentinel"
)

// Postgres backs the shared account directory. The unique constraint on
// username is the actual uniqueness guarantee; Create's prior existence check
// in callers is best-effort only.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Schema for the accounts table. Applied by deployment tooling; kept here so
// integration tests can create it.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    username       TEXT PRIMARY KEY,
    id_address     TEXT NOT NULL,
    wallet_address TEXT NOT NULL UNIQUE
)`

func (p *Postgres) Create(ctx context.Context, rec Record) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO accounts (username, id_address, wallet_address) VALUES ($1, $2, $3)`,
		rec.Username, rec.IDAddress, rec.WalletAddress)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (p *Postgres) Lookup(ctx context.Context, username string) (Record, error) {
	var rec Record
	err := p.pool.QueryRow(ctx,
		`SELECT username, id_address, wallet_address FROM accounts WHERE username = $1`,
		username).Scan(&rec.Username, &rec.IDAddress, &rec.WalletAddress)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup account: %w", err)
	}
	return rec, nil
}

func (p *Postgres) ReverseLookup(ctx context.Context, idAddress string) (string, error) {
	var username string
	err := p.pool.QueryRow(ctx,
		`SELECT username FROM accounts WHERE id_address = $1`,
		idAddress).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return UnknownUsername, nil
	}
	if err != nil {
		return "", fmt.Errorf("reverse lookup: %w", err)
	}
	return username, nil
}

func (p *Postgres) UpdateAddress(ctx context.Context, username, idAddress string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE accounts SET id_address = $2 WHERE username = $1`,
		username, idAddress)
	if err != nil {
		return fmt.Errorf("update account address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
