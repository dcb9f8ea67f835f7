// Package directory looks up students and applicants owned by the wider platform.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/fee-ledger/internal/domain"
)

// Resolver reports whether an owner exists and how to reach them.
// A missing owner is not an error: Party.Exists is false.
type Resolver interface {
	Resolve(ctx context.Context, owner domain.Owner) (*domain.Party, error)
}

// SQLDirectory reads the students and applications tables
type SQLDirectory struct {
	db *sqlx.DB
}

func NewSQLDirectory(db *sqlx.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

type partyRow struct {
	Name  string         `db:"name"`
	Email sql.NullString `db:"email"`
	Phone sql.NullString `db:"phone"`
}

func (d *SQLDirectory) Resolve(ctx context.Context, owner domain.Owner) (*domain.Party, error) {
	var query string
	switch owner.Kind {
	case domain.OwnerStudent:
		query = `SELECT full_name AS name, email, phone FROM students WHERE id = ? AND active = ?`
	case domain.OwnerApplication:
		query = `SELECT applicant_name AS name, email, phone FROM applications WHERE id = ?`
	default:
		return nil, fmt.Errorf("unknown owner kind %q", owner.Kind)
	}

	args := []interface{}{owner.ID}
	if owner.Kind == domain.OwnerStudent {
		args = append(args, true)
	}

	var row partyRow
	err := d.db.GetContext(ctx, &row, d.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Party{Owner: owner}, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.Party{
		Owner:       owner,
		Exists:      true,
		DisplayName: row.Name,
		Email:       row.Email.String,
		Phone:       row.Phone.String,
	}, nil
}

// Static is an in-memory directory for development and tests
type Static struct {
	mu      sync.RWMutex
	parties map[domain.Owner]domain.Party
}

func NewStatic(parties ...domain.Party) *Static {
	s := &Static{parties: make(map[domain.Owner]domain.Party, len(parties))}
	for _, p := range parties {
		p.Exists = true
		s.parties[p.Owner] = p
	}
	return s
}

func (s *Static) Resolve(_ context.Context, owner domain.Owner) (*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parties[owner]
	if !ok {
		return &domain.Party{Owner: owner}, nil
	}
	return &p, nil
}

func (s *Static) Add(p domain.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Exists = true
	s.parties[p.Owner] = p
}
