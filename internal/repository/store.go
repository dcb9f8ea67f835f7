package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"

	// referenceConstraint guards reference numbers; a clash means another
	// transaction committed the same ordinal first, so re-running recounts.
	referenceConstraint = "transactions_reference_number_key"
)

// SQLStore is the sqlx-backed Store
type SQLStore struct {
	db         *sqlx.DB
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
	log        *logrus.Logger
}

type StoreOption func(*SQLStore)

// WithRetries sets how many times a unit of work is attempted in total
func WithRetries(n int) StoreOption {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithTxTimeout bounds each attempt; a timed-out attempt is rolled back
func WithTxTimeout(d time.Duration) StoreOption {
	return func(s *SQLStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(log *logrus.Logger) StoreOption {
	return func(s *SQLStore) {
		s.log = log
	}
}

func NewStore(db *sqlx.DB, opts ...StoreOption) *SQLStore {
	s := &SQLStore{
		db:         db,
		maxRetries: 3,
		timeout:    10 * time.Second,
		backoff:    25 * time.Millisecond,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) Repositories() Repositories {
	return newRepositories(s.db)
}

func (s *SQLStore) WithTx(ctx context.Context, fn TxFunc) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) || attempt == s.maxRetries {
			return err
		}

		s.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("retrying transaction after transient conflict")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return err
}

func (s *SQLStore) runTx(ctx context.Context, fn TxFunc) error {
	txCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(txCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(txCtx, newRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func newRepositories(db sqlx.ExtContext) Repositories {
	return Repositories{
		Assignments:  NewAssignmentRepository(db),
		Transactions: NewTransactionRepository(db),
	}
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case pqSerializationFailure, pqDeadlockDetected:
		return true
	case pqUniqueViolation:
		return pqErr.Constraint == referenceConstraint
	}
	return false
}

// lockClause returns the row-lock suffix for drivers that support it.
// SQLite serializes writers on its own.
func lockClause(db sqlx.ExtContext) string {
	switch db.DriverName() {
	case "postgres", "pgx":
		return " FOR UPDATE"
	}
	return ""
}
