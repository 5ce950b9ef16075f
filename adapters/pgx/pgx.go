package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lborres/bantay/core"
)

const DefaultProfile = "default"

// Adapter stores bearer tokens in PostgreSQL, one row per profile
type Adapter struct {
	pool    *pgxpool.Pool
	profile string
}

var _ core.TokenStorage = (*Adapter)(nil)

func New(pool *pgxpool.Pool, profile string) *Adapter {
	if profile == "" {
		profile = DefaultProfile
	}
	return &Adapter{
		pool:    pool,
		profile: profile,
	}
}

// Connect opens a pool for dsn and verifies the connection
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const schema = `CREATE TABLE IF NOT EXISTS public.client_tokens (
	profile    TEXT NOT NULL,
	token_key  TEXT NOT NULL,
	token      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (profile, token_key)
)`

// EnsureSchema creates the token table when missing
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create client_tokens: %w", err)
	}
	return nil
}

func (a *Adapter) LoadToken(ctx context.Context) (string, error) {
	query := `SELECT token FROM public.client_tokens WHERE profile = $1 AND token_key = $2`

	var token string
	err := a.pool.QueryRow(ctx, query, a.profile, core.TokenStorageKey).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", core.ErrTokenNotFound
		}
		return "", err
	}
	return token, nil
}

func (a *Adapter) SaveToken(ctx context.Context, token string) error {
	query := `INSERT INTO public.client_tokens (profile, token_key, token)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (profile, token_key) DO UPDATE SET token = EXCLUDED.token, updated_at = now()`

	_, err := a.pool.Exec(ctx, query, a.profile, core.TokenStorageKey, token)
	return err
}

func (a *Adapter) ClearToken(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM public.client_tokens WHERE profile = $1 AND token_key = $2`, a.profile, core.TokenStorageKey)
	return err
}
