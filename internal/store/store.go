package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-service/internal/gcal"
	"booking-service/internal/scheduling"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeInvalidText        = "22P02"
)

// Postgres implements scheduling.Store and gcal.CredentialStore on pgx.
type Postgres struct {
	DB *pgxpool.Pool
}

var (
	_ scheduling.Store     = (*Postgres)(nil)
	_ gcal.CredentialStore = (*Postgres)(nil)
)

func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{DB: pool}
}

// Migrate applies the schema. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// mapError translates driver errors into the scheduling taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduling.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation, codeUniqueViolation:
			return fmt.Errorf("%w: %s", scheduling.ErrConflict, pgErr.ConstraintName)
		case codeInvalidText:
			return scheduling.ErrNotFound
		}
	}
	return err
}
