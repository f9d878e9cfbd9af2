package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/bookshare/internal/repository"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Every store
// holds one, so the same store code runs either directly on the pool or
// inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Repos() repository.Repos {
	return reposFor(s.pool, false)
}

// WithinTx runs fn inside a READ COMMITTED transaction. Row locks taken by
// the GetForUpdate methods are what serialize competing transitions on the
// same book or request.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(reposFor(tx, true))
	})
}

func reposFor(db DBTX, inTx bool) repository.Repos {
	return repository.Repos{
		Users:    NewUserStore(db),
		Books:    &BookStore{db: db, inTx: inTx},
		Requests: &BorrowRequestStore{db: db, inTx: inTx},
		Messages: NewMessageStore(db),
		Invites:  &InviteStore{db: db, inTx: inTx},
		Contacts: NewContactStore(db),
		Reviews:  NewReviewStore(db),
	}
}

// lockClause is appended to single-row reads that should lock. FOR UPDATE
// outside a transaction would be released immediately, so it is skipped.
func lockClause(inTx bool) string {
	if inTx {
		return " FOR UPDATE"
	}
	return ""
}

const uniqueViolation = "23505"

// wrapWrite tags unique violations with repository.ErrDuplicate so services
// can turn a lost race into a Conflict.
func wrapWrite(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, repository.ErrDuplicate, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}
