// Package catalog resolves charge references to their amounts and fine/discount policy.
// The ledger never writes to the catalog.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/fee-ledger/internal/domain"
)

var ErrChargeNotFound = errors.New("charge not found in catalog")

// Resolver looks up a catalog entry by reference
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*domain.Charge, error)
}

// SQLCatalog reads the platform's charge_catalog table
type SQLCatalog struct {
	db *sqlx.DB
}

func NewSQLCatalog(db *sqlx.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

func (c *SQLCatalog) Resolve(ctx context.Context, ref string) (*domain.Charge, error) {
	query := `
		SELECT ref, name, base_amount, frequency, fine_policy, fine_amount, fine_percentage, discount_eligible
		FROM charge_catalog
		WHERE ref = ?
	`

	var charge domain.Charge
	err := c.db.GetContext(ctx, &charge, c.db.Rebind(query), ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrChargeNotFound, ref)
	}
	if err != nil {
		return nil, err
	}

	return &charge, nil
}

// Static is an in-memory catalog for development and tests
type Static struct {
	mu      sync.RWMutex
	charges map[string]domain.Charge
}

func NewStatic(charges ...domain.Charge) *Static {
	s := &Static{charges: make(map[string]domain.Charge, len(charges))}
	for _, c := range charges {
		s.charges[c.Ref] = c
	}
	return s
}

func (s *Static) Resolve(_ context.Context, ref string) (*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.charges[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChargeNotFound, ref)
	}
	return &c, nil
}

// Put adds or replaces an entry
func (s *Static) Put(c domain.Charge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges[c.Ref] = c
}
