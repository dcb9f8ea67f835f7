package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/fee-ledger/internal/catalog"
	"github.com/segyhp/fee-ledger/internal/config"
	"github.com/segyhp/fee-ledger/internal/directory"
	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/repository"
	"github.com/segyhp/fee-ledger/internal/repository/repotest"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
	"github.com/segyhp/fee-ledger/pkg/logger"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu       sync.Mutex
	receipts []domain.Receipt
	notices  []domain.OverdueNotice
}

func (n *recordingNotifier) PaymentReceived(receipt domain.Receipt) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, receipt)
}

func (n *recordingNotifier) OverdueReminder(notice domain.OverdueNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{
			DuplicateWindow: 10 * time.Second,
			TxTimeout:       10 * time.Second,
			TxMaxRetries:    3,
			NotifyTimeout:   time.Second,
			JobTTL:          time.Hour,
		},
	}
}

func testCharges() []domain.Charge {
	return []domain.Charge{
		{
			Ref:              "TUITION",
			Name:             "Tuition",
			BaseAmount:       decimal.NewFromInt(5000),
			Frequency:        domain.FrequencyMonthly,
			FinePolicy:       domain.FinePolicyFixed,
			FineAmount:       decimal.NewFromInt(100),
			DiscountEligible: true,
		},
		{
			Ref:            "LAB",
			Name:           "Lab fee",
			BaseAmount:     decimal.NewFromInt(1000),
			Frequency:      domain.FrequencyOnce,
			FinePolicy:     domain.FinePolicyPercentage,
			FinePercentage: decimal.NewFromInt(10),
		},
		{
			Ref:        "EXAM",
			Name:       "Exam fee",
			BaseAmount: decimal.NewFromInt(400),
			Frequency:  domain.FrequencyQuarterly,
			FinePolicy: domain.FinePolicyNone,
		},
	}
}

type fixture struct {
	svc      *BillingService
	store    *repository.SQLStore
	clock    *testClock
	notifier *recordingNotifier
	catalog  *catalog.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    repotest.NewStore(t),
		clock:    &testClock{now: testNow},
		notifier: &recordingNotifier{},
		catalog:  catalog.NewStatic(testCharges()...),
	}
	f.svc = NewBillingService(f.store, f.catalog, nil, f.notifier, nil, testConfig(), logger.Discard(), WithClock(f.clock.Now))
	return f
}

func (f *fixture) assignment(t *testing.T, owner domain.Owner, chargeRef string, base int64, due time.Time, partial bool) *domain.Assignment {
	t.Helper()

	a, err := f.svc.CreateAssignment(context.Background(), &domain.CreateAssignmentRequest{
		Owner:          owner,
		ChargeRef:      chargeRef,
		Period:         domain.Period{Month: int(due.Month()), Year: due.Year()},
		BaseAmount:     decimal.NewFromInt(base),
		DueDate:        due,
		PartialAllowed: partial,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *domain.Assignment {
	t.Helper()
	a, err := f.store.Repositories().Assignments.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

// assertConserved checks paid_amount against the sum of active transactions
func (f *fixture) assertConserved(t *testing.T, id uuid.UUID) {
	t.Helper()
	report, err := f.svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, report.Balanced, "paid %s, journal %s", report.PaidAmount, report.TransactionTotal)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, customError.Code(err), err.Error())
}

var nextMonth = testNow.AddDate(0, 1, 0)

func TestCreateAssignment_Validation(t *testing.T) {
	f := newFixture(t)
	owner := domain.StudentOwner(uuid.New())

	tests := []struct {
		name    string
		request domain.CreateAssignmentRequest
	}{
		{"missing owner", domain.CreateAssignmentRequest{ChargeRef: "TUITION", Period: domain.Period{Month: 1, Year: 2024}, BaseAmount: decimal.NewFromInt(1), DueDate: testNow}},
		{"bad month", domain.CreateAssignmentRequest{Owner: owner, ChargeRef: "TUITION", Period: domain.Period{Month: 13, Year: 2024}, BaseAmount: decimal.NewFromInt(1), DueDate: testNow}},
		{"zero base", domain.CreateAssignmentRequest{Owner: owner, ChargeRef: "TUITION", Period: domain.Period{Month: 1, Year: 2024}, DueDate: testNow}},
		{"discount above base", domain.CreateAssignmentRequest{Owner: owner, ChargeRef: "TUITION", Period: domain.Period{Month: 1, Year: 2024}, BaseAmount: decimal.NewFromInt(1), Discount: decimal.NewFromInt(2), DueDate: testNow}},
		{"no due date", domain.CreateAssignmentRequest{Owner: owner, ChargeRef: "TUITION", Period: domain.Period{Month: 1, Year: 2024}, BaseAmount: decimal.NewFromInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAssignment(context.Background(), &tt.request)
			assertCode(t, err, customError.ErrCodeValidationFailed)
		})
	}
}

func TestCreateAssignment_ApplicationOwnedIsProvisional(t *testing.T) {
	f := newFixture(t)

	a := f.assignment(t, domain.ApplicationOwner(uuid.New()), "LAB", 1000, nextMonth, true)

	assert.True(t, a.Provisional)
	assert.Equal(t, domain.AssignmentStatusPending, a.Status)
}

func TestAssignFees_ExpandsFrequencies(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()
	oneOffDue := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)

	result, err := f.svc.AssignFees(context.Background(), studentID, &domain.PackageSpec{
		Year:   2024,
		DueDay: 31,
		Items: []domain.PlanItem{
			{ChargeRef: "TUITION", Months: []int{1, 2, 3}, Discount: decimal.NewFromInt(500), PartialAllowed: true},
			{ChargeRef: "EXAM"},
			{ChargeRef: "LAB", DueDate: &oneOffDue},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Assignments, 8)
	assert.NotEmpty(t, result.PackageID)
	// 3 x (5000-500) + 4 x 400 + 1000
	assert.True(t, result.Total.Equal(decimal.NewFromInt(16100)), result.Total.String())

	byRef := map[string][]*domain.Assignment{}
	for _, a := range result.Assignments {
		byRef[a.ChargeRef] = append(byRef[a.ChargeRef], a)
		require.NotNil(t, a.PackageID)
		assert.Equal(t, result.PackageID, *a.PackageID)
		assert.False(t, a.Provisional)
	}

	require.Len(t, byRef["TUITION"], 3)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), byRef["TUITION"][1].DueDate)
	assert.True(t, byRef["TUITION"][0].DiscountAmount.Equal(decimal.NewFromInt(500)))

	months := []int{}
	for _, a := range byRef["EXAM"] {
		months = append(months, a.PeriodMonth)
	}
	assert.Equal(t, []int{1, 4, 7, 10}, months)

	require.Len(t, byRef["LAB"], 1)
	assert.Equal(t, 0, byRef["LAB"][0].PeriodMonth)
	assert.Equal(t, oneOffDue, byRef["LAB"][0].DueDate)

	pending, err := f.svc.ListPending(context.Background(), domain.StudentOwner(studentID), testNow)
	require.NoError(t, err)
	assert.Equal(t, 8, pending.PendingCount)
}

func TestAssignFees_RejectsUnknownChargeAndIneligibleDiscount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AssignFees(context.Background(), uuid.New(), &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "SWIMMING"}},
	})
	assertCode(t, err, customError.ErrCodeValidationFailed)

	_, err = f.svc.AssignFees(context.Background(), uuid.New(), &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "LAB", Discount: decimal.NewFromInt(10)}},
	})
	assertCode(t, err, customError.ErrCodeValidationFailed)

	_, err = f.svc.AssignFees(context.Background(), uuid.New(), &domain.PackageSpec{Year: 2024})
	assertCode(t, err, customError.ErrCodeValidationFailed)
}

func TestGetSummary(t *testing.T) {
	f := newFixture(t)
	due := testNow.AddDate(0, 0, -10)
	a := f.assignment(t, domain.StudentOwner(uuid.New()), "LAB", 1000, due, true)

	summary, err := f.svc.GetSummary(context.Background(), a.ID, testNow)
	require.NoError(t, err)

	assert.True(t, summary.IsOverdue)
	assert.Equal(t, 10, summary.DaysOverdue)
	assert.True(t, summary.EvaluatedFine.Equal(decimal.NewFromInt(100)))
	assert.True(t, summary.BalanceDue.Equal(decimal.NewFromInt(1100)))
	assert.Equal(t, domain.AssignmentStatusPending, summary.Status)
	assert.Empty(t, summary.History)

	_, err = f.svc.GetSummary(context.Background(), uuid.New(), testNow)
	assertCode(t, err, customError.ErrCodeNotFound)
}

func TestGetSummary_MissingCatalogEntryMeansNoFine(t *testing.T) {
	f := newFixture(t)
	a := f.assignment(t, domain.StudentOwner(uuid.New()), "RETIRED", 800, testNow.AddDate(0, 0, -30), true)

	summary, err := f.svc.GetSummary(context.Background(), a.ID, testNow)
	require.NoError(t, err)
	assert.True(t, summary.IsOverdue)
	assert.True(t, summary.EvaluatedFine.IsZero())
	assert.True(t, summary.BalanceDue.Equal(decimal.NewFromInt(800)))
}

func TestListPending_Totals(t *testing.T) {
	f := newFixture(t)
	owner := domain.StudentOwner(uuid.New())

	overdue := f.assignment(t, owner, "LAB", 1000, testNow.AddDate(0, 0, -5), true)
	f.assignment(t, owner, "EXAM", 400, nextMonth, true)
	settled := f.assignment(t, owner, "EXAM", 400, nextMonth.AddDate(0, 1, 0), true)

	_, err := f.svc.ProcessPayment(context.Background(), payment(settled.ID, "400"))
	require.NoError(t, err)

	pending, err := f.svc.ListPending(context.Background(), owner, testNow)
	require.NoError(t, err)

	assert.Equal(t, 2, pending.PendingCount)
	assert.Equal(t, 1, pending.OverdueCount)
	assert.True(t, pending.TotalPending.Equal(decimal.NewFromInt(1500)), pending.TotalPending.String())
	assert.True(t, pending.TotalOverdue.Equal(decimal.NewFromInt(1100)))
	assert.Equal(t, overdue.ID, pending.Fees[0].Assignment.ID)

	_, err = f.svc.ListPending(context.Background(), domain.Owner{}, testNow)
	assertCode(t, err, customError.ErrCodeValidationFailed)
}

func TestGetHistory_IncludesReversed(t *testing.T) {
	f := newFixture(t)
	owner := domain.StudentOwner(uuid.New())
	a := f.assignment(t, owner, "TUITION", 5000, nextMonth, true)

	first, err := f.svc.ProcessPayment(context.Background(), payment(a.ID, "1000"))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.ProcessPayment(context.Background(), payment(a.ID, "500"))
	require.NoError(t, err)

	_, err = f.svc.RevertPayment(context.Background(), first.TransactionID, &domain.RevertRequest{Actor: "auditor", Reason: "bounced"})
	require.NoError(t, err)

	history, err := f.svc.GetHistory(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 2)
	assert.False(t, history.Transactions[0].Reversed)
	assert.True(t, history.Transactions[1].Reversed)
	assert.True(t, history.TotalPaid.Equal(decimal.NewFromInt(500)))
}

func TestReplacePackage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studentID := uuid.New()

	old, err := f.svc.AssignFees(ctx, studentID, &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "EXAM", PartialAllowed: true}},
	})
	require.NoError(t, err)

	// a reverted payment on one row keeps that row around as soft-deleted
	paid, err := f.svc.ProcessPayment(ctx, payment(old.Assignments[0].ID, "100"))
	require.NoError(t, err)
	_, err = f.svc.RevertPayment(ctx, paid.TransactionID, &domain.RevertRequest{Actor: "auditor", Reason: "wrong student"})
	require.NoError(t, err)

	result, err := f.svc.ReplacePackage(ctx, studentID, old.PackageID, &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "TUITION", Months: []int{9}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Removed)
	require.Len(t, result.Created, 1)
	assert.NotEqual(t, old.PackageID, result.NewPackageID)

	locked, err := f.store.Repositories().Assignments.GetForUpdate(ctx, old.Assignments[0].ID)
	require.NoError(t, err)
	assert.True(t, locked.IsDeleted())

	_, err = f.store.Repositories().Assignments.GetForUpdate(ctx, old.Assignments[1].ID)
	assert.Error(t, err)

	pending, err := f.svc.ListPending(ctx, domain.StudentOwner(studentID), testNow)
	require.NoError(t, err)
	require.Equal(t, 1, pending.PendingCount)
	assert.Equal(t, "TUITION", pending.Fees[0].Assignment.ChargeRef)

	history, err := f.svc.GetHistory(ctx, domain.StudentOwner(studentID))
	require.NoError(t, err)
	assert.Len(t, history.Transactions, 1)
}

func TestReplacePackage_ConflictWhenPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studentID := uuid.New()

	old, err := f.svc.AssignFees(ctx, studentID, &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "EXAM", PartialAllowed: true}},
	})
	require.NoError(t, err)
	_, err = f.svc.ProcessPayment(ctx, payment(old.Assignments[2].ID, "50"))
	require.NoError(t, err)

	_, err = f.svc.ReplacePackage(ctx, studentID, old.PackageID, &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "LAB"}},
	})
	assertCode(t, err, customError.ErrCodeConflict)

	pending, err := f.svc.ListPending(ctx, domain.StudentOwner(studentID), testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, pending.PendingCount)

	_, err = f.svc.ReplacePackage(ctx, studentID, "no-such-package", &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "LAB"}},
	})
	assertCode(t, err, customError.ErrCodeNotFound)
}

func TestReplacePackage_UnknownStudent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	known := uuid.New()
	dir := directory.NewStatic(domain.Party{Owner: domain.StudentOwner(known), DisplayName: "Known"})
	svc := NewBillingService(f.store, f.catalog, dir, f.notifier, nil, testConfig(), logger.Discard(), WithClock(f.clock.Now))

	old, err := svc.AssignFees(ctx, known, &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "LAB"}},
	})
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = svc.ReplacePackage(ctx, stranger, old.PackageID, &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "EXAM"}},
	})
	assertCode(t, err, customError.ErrCodeNotFound)
	assert.Contains(t, err.Error(), "Student with ID "+stranger.String())

	result, err := svc.ReplacePackage(ctx, known, old.PackageID, &domain.PackageSpec{
		Year:  2024,
		Items: []domain.PlanItem{{ChargeRef: "EXAM"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
}

func TestDeleteOwnerFees_CascadesToTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := domain.StudentOwner(uuid.New())
	a := f.assignment(t, owner, "TUITION", 5000, nextMonth, true)
	f.assignment(t, owner, "LAB", 1000, nextMonth, true)

	_, err := f.svc.ProcessPayment(ctx, payment(a.ID, "1000"))
	require.NoError(t, err)

	result, err := f.svc.DeleteOwnerFees(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AssignmentsRemoved)
	assert.Equal(t, 1, result.TransactionsRemoved)

	pending, err := f.svc.ListPending(ctx, owner, testNow)
	require.NoError(t, err)
	assert.Zero(t, pending.PendingCount)

	history, err := f.svc.GetHistory(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, history.Transactions)

	_, err = f.svc.GetSummary(ctx, a.ID, testNow)
	assertCode(t, err, customError.ErrCodeNotFound)
}
