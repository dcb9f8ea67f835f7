package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/handler"
	"github.com/segyhp/fee-ledger/internal/service/mocks"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
	"github.com/segyhp/fee-ledger/pkg/logger"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newRouter(svc *mocks.MockBillingService) http.Handler {
	log := logger.Discard()
	return handler.NewRouter(handler.NewBillingHandler(svc, log), nil, log)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestBillingHandler_ProcessPayment(t *testing.T) {
	assignmentID := uuid.New()
	valid := domain.PaymentRequest{
		AssignmentID: assignmentID,
		Amount:       decimal.NewFromInt(1000),
		Method:       domain.PaymentMethodCash,
		CollectedBy:  "desk-1",
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*mocks.MockBillingService)
		expectedStatus int
		expectedCode   string
		expectedBody   string
	}{
		{
			name:        "payment recorded",
			requestBody: valid,
			setupMock: func(m *mocks.MockBillingService) {
				m.On("ProcessPayment", mock.Anything, mock.MatchedBy(func(req *domain.PaymentRequest) bool {
					return req.AssignmentID == assignmentID && req.Amount.Equal(decimal.NewFromInt(1000))
				})).Return(&domain.PaymentResult{
					TransactionID:   uuid.New(),
					ReferenceNumber: assignmentID.String() + "/1",
					AssignmentID:    assignmentID,
					Amount:          decimal.NewFromInt(1000),
					Status:          domain.AssignmentStatusPartial,
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   assignmentID.String() + "/1",
		},
		{
			name:           "invalid JSON payload",
			requestBody:    "invalid json",
			setupMock:      func(*mocks.MockBillingService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid JSON payload",
		},
		{
			name: "validation error - zero amount",
			requestBody: domain.PaymentRequest{
				AssignmentID: assignmentID,
				Amount:       decimal.Zero,
				Method:       domain.PaymentMethodCash,
				CollectedBy:  "desk-1",
			},
			setupMock:      func(*mocks.MockBillingService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Validation failed",
		},
		{
			name: "validation error - negative discount",
			requestBody: domain.PaymentRequest{
				AssignmentID:    assignmentID,
				Amount:          decimal.NewFromInt(10),
				DiscountApplied: decimal.NewFromInt(-1),
				Method:          domain.PaymentMethodCash,
				CollectedBy:     "desk-1",
			},
			setupMock:      func(*mocks.MockBillingService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Validation failed",
		},
		{
			name: "validation error - missing collector",
			requestBody: domain.PaymentRequest{
				AssignmentID: assignmentID,
				Amount:       decimal.NewFromInt(10),
				Method:       domain.PaymentMethodCash,
			},
			setupMock:      func(*mocks.MockBillingService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Validation failed",
		},
		{
			name:        "overpayment rejected",
			requestBody: valid,
			setupMock: func(m *mocks.MockBillingService) {
				m.On("ProcessPayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapExceedsBalance("1000.00", "600.00")).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   customError.ErrCodeExceedsBalance,
		},
		{
			name:        "duplicate suspected",
			requestBody: valid,
			setupMock: func(m *mocks.MockBillingService) {
				m.On("ProcessPayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapDuplicateSuspected(assignmentID.String(), "1000.00")).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeDuplicateSuspected,
		},
		{
			name:        "infrastructure failure hides the cause",
			requestBody: valid,
			setupMock: func(m *mocks.MockBillingService) {
				m.On("ProcessPayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapProcessingFailed(errors.New("pq: connection refused"))).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   customError.ErrCodeProcessingFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockBillingService()
			tt.setupMock(svc)

			w, env := do(t, newRouter(svc), http.MethodPost, "/api/v1/payments", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.False(t, env.Success)
				assert.Equal(t, tt.expectedCode, env.Error)
			}
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
			assert.NotContains(t, w.Body.String(), "connection refused")
			svc.AssertExpectations(t)
		})
	}
}

func TestBillingHandler_BatchFailedKeepsItemErrors(t *testing.T) {
	svc := mocks.NewMockBillingService()
	studentID := uuid.New()
	itemID := uuid.New()

	svc.On("ProcessMultiplePayments", mock.Anything, studentID, mock.Anything).Return(&domain.BatchResult{
		Success: false,
		Errors: []domain.ItemError{
			{Index: 0, AssignmentID: itemID, Code: customError.ErrCodeAlreadySettled, Message: "settled"},
		},
	}, customError.WrapBatchFailed(1)).Once()

	w, env := do(t, newRouter(svc), http.MethodPost, "/api/v1/students/"+studentID.String()+"/payments/batch",
		domain.BatchPaymentRequest{
			Items:       []domain.BatchPaymentItem{{AssignmentID: itemID, Amount: decimal.NewFromInt(10)}},
			Method:      domain.PaymentMethodCash,
			CollectedBy: "desk-1",
		})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, customError.ErrCodeBatchFailed, env.Error)

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, customError.ErrCodeAlreadySettled, result.Errors[0].Code)
}

func TestBillingHandler_ListPending(t *testing.T) {
	studentID := uuid.New()
	owner := domain.StudentOwner(studentID)

	t.Run("explicit as_of", func(t *testing.T) {
		svc := mocks.NewMockBillingService()
		asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		svc.On("ListPending", mock.Anything, owner, asOf).Return(&domain.PendingFees{
			Owner:        owner,
			Fees:         []*domain.FeeSummary{},
			TotalPending: decimal.NewFromInt(1500),
			PendingCount: 2,
		}, nil).Once()

		w, env := do(t, newRouter(svc), http.MethodGet, "/api/v1/owners/student/"+studentID.String()+"/pending?as_of=2024-03-10", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Success)
		var pending domain.PendingFees
		require.NoError(t, json.Unmarshal(env.Data, &pending))
		assert.Equal(t, 2, pending.PendingCount)
		assert.True(t, pending.TotalPending.Equal(decimal.NewFromInt(1500)))
		svc.AssertExpectations(t)
	})

	t.Run("bad as_of", func(t *testing.T) {
		svc := mocks.NewMockBillingService()
		w, _ := do(t, newRouter(svc), http.MethodGet, "/api/v1/owners/student/"+studentID.String()+"/pending?as_of=10-03-2024", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown owner kind", func(t *testing.T) {
		svc := mocks.NewMockBillingService()
		w, env := do(t, newRouter(svc), http.MethodGet, "/api/v1/owners/staff/"+studentID.String()+"/pending", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid owner kind", env.Message)
	})

	t.Run("bad id", func(t *testing.T) {
		svc := mocks.NewMockBillingService()
		w, _ := do(t, newRouter(svc), http.MethodGet, "/api/v1/owners/application/not-a-uuid/pending", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBillingHandler_RevertPayment(t *testing.T) {
	transactionID := uuid.New()

	t.Run("reason required", func(t *testing.T) {
		svc := mocks.NewMockBillingService()
		w, _ := do(t, newRouter(svc), http.MethodPost, "/api/v1/payments/"+transactionID.String()+"/revert",
			domain.RevertRequest{Actor: "auditor"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RevertPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already reverted", func(t *testing.T) {
		svc := mocks.NewMockBillingService()
		svc.On("RevertPayment", mock.Anything, transactionID, mock.Anything).
			Return(nil, customError.WrapNotFound("Transaction", transactionID.String())).Once()

		w, env := do(t, newRouter(svc), http.MethodPost, "/api/v1/payments/"+transactionID.String()+"/revert",
			domain.RevertRequest{Actor: "auditor", Reason: "bounced"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, customError.ErrCodeNotFound, env.Error)
	})
}

func TestBillingHandler_ReplacePackageConflict(t *testing.T) {
	svc := mocks.NewMockBillingService()
	studentID := uuid.New()

	svc.On("ReplacePackage", mock.Anything, studentID, domain.PackageID("pkg-1"), mock.Anything).
		Return(nil, customError.WrapConflict("package pkg-1 has payments")).Once()

	w, env := do(t, newRouter(svc), http.MethodPut, "/api/v1/students/"+studentID.String()+"/packages/pkg-1",
		domain.PackageSpec{Year: 2024, Items: []domain.PlanItem{{ChargeRef: "EXAM"}}})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, customError.ErrCodeConflict, env.Error)
	assert.Equal(t, "package pkg-1 has payments", env.Message)
}

func TestBillingHandler_PackageValidation(t *testing.T) {
	svc := mocks.NewMockBillingService()
	studentID := uuid.New()

	w, _ := do(t, newRouter(svc), http.MethodPost, "/api/v1/students/"+studentID.String()+"/packages",
		domain.PackageSpec{Year: 2024})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, newRouter(svc), http.MethodPost, "/api/v1/students/"+studentID.String()+"/packages",
		domain.PackageSpec{Year: 2024, Items: []domain.PlanItem{{ChargeRef: "TUITION", Months: []int{13}}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNotCalled(t, "AssignFees", mock.Anything, mock.Anything, mock.Anything)
}

func TestBillingHandler_Jobs(t *testing.T) {
	svc := mocks.NewMockBillingService()
	job := &domain.Job{ID: "job-1", Kind: domain.JobKindBulkAssign, Status: domain.JobStatusQueued, Total: 1}

	svc.On("StartBulkAssign", mock.Anything, mock.Anything).Return(job, nil).Once()
	svc.On("GetJob", mock.Anything, "job-1").Return(job, nil).Once()
	svc.On("GetJob", mock.Anything, "nope").Return(nil, customError.WrapNotFound("Job", "nope")).Once()

	router := newRouter(svc)

	w, _ := do(t, router, http.MethodPost, "/api/v1/jobs/bulk-assign", domain.BulkAssignRequest{
		StudentIDs: []uuid.UUID{uuid.New()},
		Package:    domain.PackageSpec{Year: 2024, Items: []domain.PlanItem{{ChargeRef: "EXAM"}}},
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w, env := do(t, router, http.MethodGet, "/api/v1/jobs/job-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got domain.Job
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "job-1", got.ID)

	w, _ = do(t, router, http.MethodGet, "/api/v1/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.AssertExpectations(t)
}
