package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/domain"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
	"github.com/segyhp/fee-ledger/pkg/response"
)

const asOfLayout = "2006-01-02"

// Ledger is the part of the billing service the HTTP layer drives
type Ledger interface {
	CreateAssignment(ctx context.Context, request *domain.CreateAssignmentRequest) (*domain.Assignment, error)
	AssignFees(ctx context.Context, studentID uuid.UUID, spec *domain.PackageSpec) (*domain.AssignFeesResult, error)
	AssignProvisionalFees(ctx context.Context, applicationID uuid.UUID, spec *domain.PackageSpec) (*domain.AssignFeesResult, error)
	GetSummary(ctx context.Context, assignmentID uuid.UUID, asOf time.Time) (*domain.FeeSummary, error)
	ListPending(ctx context.Context, owner domain.Owner, asOf time.Time) (*domain.PendingFees, error)
	GetHistory(ctx context.Context, owner domain.Owner) (*domain.FeeHistory, error)
	Reconcile(ctx context.Context, assignmentID uuid.UUID) (*domain.ReconcileReport, error)
	ReplacePackage(ctx context.Context, studentID uuid.UUID, oldPackageID domain.PackageID, spec *domain.PackageSpec) (*domain.ReplacePackageResult, error)
	DeleteOwnerFees(ctx context.Context, owner domain.Owner) (*domain.DeleteFeesResult, error)
	ProcessPayment(ctx context.Context, request *domain.PaymentRequest) (*domain.PaymentResult, error)
	ProcessMultiplePayments(ctx context.Context, studentID uuid.UUID, request *domain.BatchPaymentRequest) (*domain.BatchResult, error)
	RevertPayment(ctx context.Context, transactionID uuid.UUID, request *domain.RevertRequest) (*domain.RevertResult, error)
	MigrateProvisionalFees(ctx context.Context, applicationID uuid.UUID, request *domain.MigrateRequest) (*domain.MigrationResult, error)
	WithdrawApplication(ctx context.Context, applicationID uuid.UUID) (*domain.WithdrawResult, error)
	StartBulkAssign(ctx context.Context, request *domain.BulkAssignRequest) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
}

type BillingHandler struct {
	service   Ledger
	validator *validator.Validate
	log       *logrus.Logger
	now       func() time.Time
}

func NewBillingHandler(service Ledger, log *logrus.Logger) *BillingHandler {
	return &BillingHandler{
		service:   service,
		validator: newValidator(),
		log:       log,
		now:       time.Now,
	}
}

// newValidator teaches the validator to read decimals as their string form
var decimalRules = map[string]validator.Func{
	"decimal_gt0": func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	},
	"decimal_gte0": func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	},
}

// newValidator panics if a decimal rule fails to register
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	if err := registerRules(v, decimalRules); err != nil {
		panic(err)
	}
	return v
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q validation: %w", tag, err)
		}
	}
	return nil
}

func (h *BillingHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateAssignmentRequest
	if !h.decode(w, r, &request) {
		return
	}

	assignment, err := h.service.CreateAssignment(r.Context(), &request)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Created(w, assignment)
}

func (h *BillingHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetSummary(r.Context(), id, asOf)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, summary)
}

func (h *BillingHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, report)
}

func (h *BillingHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathOwner(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	pending, err := h.service.ListPending(r.Context(), owner, asOf)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, pending)
}

func (h *BillingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathOwner(w, r)
	if !ok {
		return
	}

	history, err := h.service.GetHistory(r.Context(), owner)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, history)
}

func (h *BillingHandler) DeleteOwnerFees(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathOwner(w, r)
	if !ok {
		return
	}

	result, err := h.service.DeleteOwnerFees(r.Context(), owner)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, result)
}

func (h *BillingHandler) AssignFees(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var spec domain.PackageSpec
	if !h.decode(w, r, &spec) {
		return
	}

	result, err := h.service.AssignFees(r.Context(), studentID, &spec)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Created(w, result)
}

func (h *BillingHandler) ReplacePackage(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	packageID := domain.PackageID(mux.Vars(r)["packageId"])

	var spec domain.PackageSpec
	if !h.decode(w, r, &spec) {
		return
	}

	result, err := h.service.ReplacePackage(r.Context(), studentID, packageID, &spec)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, result)
}

func (h *BillingHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var request domain.PaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.ProcessPayment(r.Context(), &request)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Created(w, result)
}

func (h *BillingHandler) ProcessMultiplePayments(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var request domain.BatchPaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.ProcessMultiplePayments(r.Context(), studentID, &request)
	if err != nil {
		// A failed batch still reports why each item was rejected
		h.fail(w, err, result)
		return
	}

	response.Created(w, result)
}

func (h *BillingHandler) RevertPayment(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var request domain.RevertRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.RevertPayment(r.Context(), transactionID, &request)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, result)
}

func (h *BillingHandler) AssignProvisionalFees(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var spec domain.PackageSpec
	if !h.decode(w, r, &spec) {
		return
	}

	result, err := h.service.AssignProvisionalFees(r.Context(), applicationID, &spec)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Created(w, result)
}

func (h *BillingHandler) MigrateProvisionalFees(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var request domain.MigrateRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.MigrateProvisionalFees(r.Context(), applicationID, &request)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, result)
}

func (h *BillingHandler) WithdrawApplication(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.service.WithdrawApplication(r.Context(), applicationID)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, result)
}

func (h *BillingHandler) StartBulkAssign(w http.ResponseWriter, r *http.Request) {
	var request domain.BulkAssignRequest
	if !h.decode(w, r, &request) {
		return
	}

	job, err := h.service.StartBulkAssign(r.Context(), &request)
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Accepted(w, job)
}

func (h *BillingHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, nil)
		return
	}

	response.Success(w, job)
}

// decode reads and validates a JSON body, answering 400 itself when either step fails
func (h *BillingHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid JSON payload", err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return false
	}
	return true
}

// fail renders a service error. Infrastructure causes are logged, never returned.
func (h *BillingHandler) fail(w http.ResponseWriter, err error, data interface{}) {
	status := customError.HTTPStatus(err)
	code := customError.Code(err)

	message := "processing failed"
	if be, ok := customError.AsBusiness(err); ok {
		message = be.Message
	}
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("code", code).Error("request failed")
	}

	if isNilData(data) {
		data = nil
	}
	response.Fail(w, status, code, message, data)
}

func (h *BillingHandler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return h.now().UTC(), true
	}

	asOf, err := time.Parse(asOfLayout, raw)
	if err != nil {
		response.BadRequest(w, "as_of must be a date in YYYY-MM-DD form", err)
		return time.Time{}, false
	}
	return asOf, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func pathOwner(w http.ResponseWriter, r *http.Request) (domain.Owner, bool) {
	kind, err := domain.ParseOwnerKind(mux.Vars(r)["kind"])
	if err != nil {
		response.BadRequest(w, "Invalid owner kind", err)
		return domain.Owner{}, false
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return domain.Owner{}, false
	}
	return domain.Owner{Kind: kind, ID: id}, true
}

func isNilData(data interface{}) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
