package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/pkg/response"
)

// NewRouter mounts the health checks and the v1 API
func NewRouter(billing *BillingHandler, health *HealthHandler, log *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(log))
	router.Use(response.CORSMiddleware)

	if health != nil {
		router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
		router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(response.JSONMiddleware)

	api.HandleFunc("/assignments", billing.CreateAssignment).Methods(http.MethodPost)
	api.HandleFunc("/assignments/{id}/summary", billing.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/assignments/{id}/reconcile", billing.Reconcile).Methods(http.MethodGet)

	api.HandleFunc("/owners/{kind}/{id}/pending", billing.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/owners/{kind}/{id}/history", billing.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/owners/{kind}/{id}/fees", billing.DeleteOwnerFees).Methods(http.MethodDelete)

	api.HandleFunc("/students/{id}/packages", billing.AssignFees).Methods(http.MethodPost)
	api.HandleFunc("/students/{id}/packages/{packageId}", billing.ReplacePackage).Methods(http.MethodPut)
	api.HandleFunc("/students/{id}/payments/batch", billing.ProcessMultiplePayments).Methods(http.MethodPost)

	api.HandleFunc("/payments", billing.ProcessPayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/revert", billing.RevertPayment).Methods(http.MethodPost)

	api.HandleFunc("/applications/{id}/fees", billing.AssignProvisionalFees).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/migrate", billing.MigrateProvisionalFees).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/withdraw", billing.WithdrawApplication).Methods(http.MethodPost)

	api.HandleFunc("/jobs/bulk-assign", billing.StartBulkAssign).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", billing.GetJob).Methods(http.MethodGet)

	return router
}
