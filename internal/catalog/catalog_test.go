package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/fee-ledger/internal/catalog"
	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/repository/repotest"
	"github.com/segyhp/fee-ledger/pkg/logger"
)

var tuition = domain.Charge{
	Ref:              "TUITION",
	Name:             "Tuition",
	BaseAmount:       decimal.NewFromInt(5000),
	Frequency:        domain.FrequencyMonthly,
	FinePolicy:       domain.FinePolicyFixed,
	FineAmount:       decimal.NewFromInt(100),
	FinePercentage:   decimal.Zero,
	DiscountEligible: true,
}

// countingResolver records how often the wrapped catalog is hit
type countingResolver struct {
	next  catalog.Resolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, ref string) (*domain.Charge, error) {
	c.calls++
	return c.next.Resolve(ctx, ref)
}

func TestStatic_Resolve(t *testing.T) {
	s := catalog.NewStatic(tuition)

	got, err := s.Resolve(context.Background(), "TUITION")
	require.NoError(t, err)
	assert.Equal(t, "Tuition", got.Name)

	_, err = s.Resolve(context.Background(), "BUS")
	assert.True(t, errors.Is(err, catalog.ErrChargeNotFound))

	s.Put(domain.Charge{Ref: "BUS", BaseAmount: decimal.NewFromInt(300)})
	got, err = s.Resolve(context.Background(), "BUS")
	require.NoError(t, err)
	assert.True(t, got.BaseAmount.Equal(decimal.NewFromInt(300)))
}

func TestSQLCatalog_Resolve(t *testing.T) {
	db := repotest.NewDB(t)
	_, err := db.Exec(`INSERT INTO charge_catalog (ref, name, base_amount, frequency, fine_policy, fine_amount, fine_percentage, discount_eligible)
		VALUES ('LAB', 'Lab fee', '750.50', 'quarterly', 'percentage', '0', '5', 0)`)
	require.NoError(t, err)

	c := catalog.NewSQLCatalog(db)

	got, err := c.Resolve(context.Background(), "LAB")
	require.NoError(t, err)
	assert.True(t, got.BaseAmount.Equal(decimal.RequireFromString("750.50")))
	assert.Equal(t, domain.FrequencyQuarterly, got.Frequency)
	assert.Equal(t, domain.FinePolicyPercentage, got.FinePolicy)
	assert.True(t, got.FinePercentage.Equal(decimal.NewFromInt(5)))
	assert.False(t, got.DiscountEligible)

	_, err = c.Resolve(context.Background(), "MISSING")
	assert.True(t, errors.Is(err, catalog.ErrChargeNotFound))
}

func TestCached_ReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	source := &countingResolver{next: catalog.NewStatic(tuition)}
	cached := catalog.NewCached(source, client, time.Minute, logger.Discard())
	ctx := context.Background()

	first, err := cached.Resolve(ctx, "TUITION")
	require.NoError(t, err)
	second, err := cached.Resolve(ctx, "TUITION")
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.True(t, first.FineAmount.Equal(second.FineAmount))
	assert.True(t, mr.Exists("catalog:charge:TUITION"))

	require.NoError(t, cached.Invalidate(ctx, "TUITION"))
	_, err = cached.Resolve(ctx, "TUITION")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCached_MissesAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cached := catalog.NewCached(catalog.NewStatic(), client, time.Minute, logger.Discard())

	_, err := cached.Resolve(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, catalog.ErrChargeNotFound))
	assert.False(t, mr.Exists("catalog:charge:NOPE"))
}

func TestCached_FallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	source := &countingResolver{next: catalog.NewStatic(tuition)}
	cached := catalog.NewCached(source, client, time.Minute, logger.Discard())

	got, err := cached.Resolve(context.Background(), "TUITION")
	require.NoError(t, err)
	assert.Equal(t, "TUITION", got.Ref)
	assert.Equal(t, 1, source.calls)
}
