// Package handlers exposes the service over HTTP. Handlers stay thin:
// decode, delegate, map domain errors to status codes. All money state
// changes live in the services.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/discount"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/gateway"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/invoice"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/subscription"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/webhook"
)

// PaymentService is the slice of the payment ledger the HTTP layer uses.
type PaymentService interface {
	Create(ctx context.Context, params payment.CreateParams) (*payment.Payment, error)
	Process(ctx context.Context, paymentID uuid.UUID, gatewayType string) (*payment.Payment, error)
	Fail(ctx context.Context, paymentID uuid.UUID) error
	Get(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, error)
	ListByStudent(ctx context.Context, studentID string, status payment.Status, limit int) ([]payment.Payment, error)
	Transactions(ctx context.Context, paymentID uuid.UUID) ([]payment.Transaction, error)
	Refund(ctx context.Context, paymentID uuid.UUID, amount *decimal.Decimal, reason string) (*payment.Payment, error)
	Statistics(ctx context.Context, from, to time.Time) (*payment.Statistics, error)
}

// SubscriptionService is the slice of the subscription manager the HTTP
// layer uses.
type SubscriptionService interface {
	Create(ctx context.Context, studentID, subType, paymentMethod, paymentID string, trialDays int) (*subscription.Subscription, error)
	Get(ctx context.Context, subscriptionID uuid.UUID) (*subscription.Subscription, error)
	GetByStudent(ctx context.Context, studentID string) (*subscription.Subscription, error)
	Cancel(ctx context.Context, subscriptionID uuid.UUID, immediate bool) (*subscription.Subscription, error)
}

// DiscountService is the slice of the discount ledger the HTTP layer uses.
type DiscountService interface {
	Create(ctx context.Context, params discount.CreateParams) (*discount.Discount, error)
	Validate(ctx context.Context, code, userID string) (*discount.Discount, error)
	Apply(ctx context.Context, code, userID string) (*discount.Discount, error)
	ListActive(ctx context.Context) ([]discount.Discount, error)
}

// InvoiceService is the slice of the invoice manager the HTTP layer uses.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, params invoice.CreateParams) (*invoice.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]invoice.Invoice, error)
}

// Reconciler applies verified webhook events.
type Reconciler interface {
	Handle(ctx context.Context, ev *webhook.NormalizedEvent) error
}

// Server wires the HTTP routes to the services.
type Server struct {
	payments      PaymentService
	subscriptions SubscriptionService
	discounts     DiscountService
	invoices      InvoiceService
	reconciler    Reconciler
	cardHook      webhook.Processor
	walletHook    webhook.Processor
	log           *zap.Logger
}

func NewServer(
	payments PaymentService,
	subscriptions SubscriptionService,
	discounts DiscountService,
	invoices InvoiceService,
	reconciler Reconciler,
	cardHook, walletHook webhook.Processor,
	log *zap.Logger,
) *Server {
	return &Server{
		payments:      payments,
		subscriptions: subscriptions,
		discounts:     discounts,
		invoices:      invoices,
		reconciler:    reconciler,
		cardHook:      cardHook,
		walletHook:    walletHook,
		log:           log,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/payments", s.handlePurchase).Methods(http.MethodPost)
	api.HandleFunc("/payments/statistics", s.handleStatistics).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}", s.handleGetPayment).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/refund", s.handleRefund).Methods(http.MethodPost)
	api.HandleFunc("/students/{studentId}/payments", s.handleListPayments).Methods(http.MethodGet)

	api.HandleFunc("/subscriptions", s.handleCreateSubscription).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions/{id}", s.handleGetSubscription).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/{id}/cancel", s.handleCancelSubscription).Methods(http.MethodPost)
	api.HandleFunc("/students/{studentId}/subscription", s.handleStudentSubscription).Methods(http.MethodGet)

	api.HandleFunc("/discounts", s.handleCreateDiscount).Methods(http.MethodPost)
	api.HandleFunc("/discounts", s.handleListDiscounts).Methods(http.MethodGet)
	api.HandleFunc("/discounts/validate", s.handleValidateDiscount).Methods(http.MethodPost)

	api.HandleFunc("/invoices", s.handleCreateInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoices/number/{number}", s.handleGetInvoiceByNumber).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}", s.handleGetInvoice).Methods(http.MethodGet)
	api.HandleFunc("/students/{studentId}/invoices", s.handleListInvoices).Methods(http.MethodGet)

	r.HandleFunc("/webhooks/card", s.handleWebhook(s.cardHook, "Stripe-Signature")).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/wallet", s.handleWebhook(s.walletHook, "X-Wallet-Signature")).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		// Internal details stay in the logs.
		s.respondJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, payment.ErrNotFound),
		errors.Is(err, subscription.ErrNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, invoice.ErrNotFound),
		errors.Is(err, gateway.ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrInvalidInput),
		errors.Is(err, invoice.ErrInvalidInput),
		errors.Is(err, discount.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrInvalidState),
		errors.Is(err, payment.ErrRefundExceedsAmount),
		errors.Is(err, subscription.ErrDuplicateSubscription),
		errors.Is(err, discount.ErrCodeExists):
		return http.StatusConflict
	case errors.Is(err, subscription.ErrUnknownPlan),
		errors.Is(err, gateway.ErrUnsupportedGateway),
		errors.Is(err, discount.ErrInactive),
		errors.Is(err, discount.ErrNotYetActive),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrExhausted),
		errors.Is(err, discount.ErrUserLimitReached):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}
