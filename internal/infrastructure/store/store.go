// Package store wraps the persistent (Postgres) connection pool: bounded
// acquisition, statement timeouts, isolation-level transactions, and a
// classification of driver errors into the taxonomy the retry helper and
// the HTTP boundary both need (internal/errs).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/circuitbreaker"
)

// Pool defaults per SPEC_FULL.md §4.2.
const (
	DefaultMinConns        = 5
	DefaultMaxConns        = 20
	DefaultIdleTimeout     = 10 * time.Minute
	DefaultConnMaxLifetime = time.Hour
	DefaultStatementTimeout = 30 * time.Second
	PaymentStatementTimeout = 10 * time.Second
)

// IsolationLevel names the PostgreSQL transaction isolation levels the
// module uses. Payments run SERIALIZABLE; audit writes run READ_COMMITTED;
// multi-row consistency reads run REPEATABLE_READ.
type IsolationLevel string

const (
	Serializable   IsolationLevel = "SERIALIZABLE"
	RepeatableRead IsolationLevel = "REPEATABLE READ"
	ReadCommitted  IsolationLevel = "READ COMMITTED"
)

// Config configures the pool. URL is a standard libpq DSN.
type Config struct {
	URL                string
	MinConns           int
	MaxConns           int
	IdleTimeout        time.Duration
	ConnMaxLifetime    time.Duration
	StatementTimeout   time.Duration
}

// Store owns the pooled *sqlx.DB and the timeout/isolation defaults applied
// to every transaction it opens.
type Store struct {
	DB      *sqlx.DB
	cfg     Config
	breaker *circuitbreaker.CircuitBreaker
}

// SetBreaker arms a circuit breaker around Transact. Once it trips, calls
// fail fast with KindCircuitOpen instead of queuing on an already-unhealthy
// pool.
func (s *Store) SetBreaker(cb *circuitbreaker.CircuitBreaker) { s.breaker = cb }

// Open connects to Postgres and configures the pool per cfg, applying the
// SPEC_FULL.md §4.2 defaults for any zero-valued field.
func Open(cfg Config) (*Store, error) {
	if cfg.MinConns == 0 {
		cfg.MinConns = DefaultMinConns
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if cfg.StatementTimeout == 0 {
		cfg.StatementTimeout = DefaultStatementTimeout
	}

	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnection, "open postgres pool", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxIdleTime(cfg.IdleTimeout)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Store{DB: db, cfg: cfg}, nil
}

// Ping verifies connectivity, used by the health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Tx wraps a *sqlx.Tx plus the savepoint counter used by Savepoint.
type Tx struct {
	*sqlx.Tx
	spCounter int
}

// Transact opens a transaction at the given isolation level with a
// statement timeout, invokes fn, and commits on success or rolls back on
// any error (including a panic, which it re-raises after rollback).
// readonly additionally marks the transaction SET TRANSACTION READ ONLY.
func (s *Store) Transact(ctx context.Context, isolation IsolationLevel, timeout time.Duration, readonly bool, fn func(ctx context.Context, tx *Tx) error) (err error) {
	if s.breaker != nil {
		err = s.breaker.Execute(ctx, func() error {
			return s.transact(ctx, isolation, timeout, readonly, fn)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return errs.Wrap(errs.KindCircuitOpen, "postgres circuit open", err)
		}
		return err
	}
	return s.transact(ctx, isolation, timeout, readonly, fn)
}

func (s *Store) transact(ctx context.Context, isolation IsolationLevel, timeout time.Duration, readonly bool, fn func(ctx context.Context, tx *Tx) error) (err error) {
	if timeout == 0 {
		timeout = s.cfg.StatementTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sqlxTx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return classifyErr(err)
	}
	tx := &Tx{Tx: sqlxTx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if _, execErr := tx.ExecContext(ctx, fmt.Sprintf("SET TRANSACTION ISOLATION LEVEL %s", isolation)); execErr != nil {
		_ = tx.Rollback()
		return classifyErr(execErr)
	}
	if readonly {
		if _, execErr := tx.ExecContext(ctx, "SET TRANSACTION READ ONLY"); execErr != nil {
			_ = tx.Rollback()
			return classifyErr(execErr)
		}
	}
	if _, execErr := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", timeout.Milliseconds())); execErr != nil {
		_ = tx.Rollback()
		return classifyErr(execErr)
	}

	if err = fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return classifyErr(err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return classifyErr(err)
	}
	return nil
}

// Savepoint runs fn within a named SAVEPOINT, releasing it on success and
// rolling back to it (without aborting the outer transaction) on failure.
func (tx *Tx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.spCounter++
	name := fmt.Sprintf("sp_%d", tx.spCounter)

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return classifyErr(err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errs.Wrap(errs.KindInternal, "rollback to savepoint failed", rbErr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return classifyErr(err)
	}
	return nil
}

// pq SQLSTATE codes used to classify errors (see lib/pq/error.go).
const (
	sqlstateQueryCanceled       = "57014"
	sqlstateSerializationFailure = "40001"
)

// classifyErr maps a driver error into the module's error taxonomy:
// QueryTimeout, SerializationFailure (retriable), Connection, or Other.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case sqlstateQueryCanceled:
			return errs.Wrap(errs.KindQueryTimeout, "statement timeout exceeded", err)
		case sqlstateSerializationFailure:
			return errs.Wrap(errs.KindSerializationFailure, "serialization conflict", err)
		}
		return errs.Wrap(errs.KindInternal, "database error", err)
	}
	return errs.Wrap(errs.KindConnection, "database connection error", err)
}
