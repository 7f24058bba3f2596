package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/money"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
)

type purchaseRequest struct {
	StudentID      string            `json:"studentId"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Method         string            `json:"method"`
	CourseID       string            `json:"courseId"`
	SubscriptionID string            `json:"subscriptionId"`
	InvoiceID      string            `json:"invoiceId"`
	Description    string            `json:"description"`
	DiscountCode   string            `json:"discountCode"`
	Metadata       map[string]string `json:"metadata"`
}

// handlePurchase is the inbound purchase request: create the payment, then
// immediately submit it to the gateway. A discount code is validated
// read-only before the amount is frozen and consumed only after the
// payment exists, so a rejected create never burns a use.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !s.decode(w, r, &req) {
		return
	}

	amount := req.Amount
	if req.DiscountCode != "" {
		d, err := s.discounts.Validate(r.Context(), req.DiscountCode, req.StudentID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		amount = money.ApplyDiscount(amount, d.Type, d.Value)
	}

	metadata := req.Metadata
	if req.InvoiceID != "" {
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata["invoice_id"] = req.InvoiceID
	}

	p, err := s.payments.Create(r.Context(), payment.CreateParams{
		StudentID:      req.StudentID,
		Amount:         amount,
		Currency:       req.Currency,
		Method:         req.Method,
		CourseID:       req.CourseID,
		SubscriptionID: req.SubscriptionID,
		Description:    req.Description,
		Metadata:       metadata,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if req.DiscountCode != "" {
		// The discounted amount is already frozen; if the code was
		// exhausted between Validate and here, the payment cannot go
		// through at that price.
		if _, err := s.discounts.Apply(r.Context(), req.DiscountCode, req.StudentID); err != nil {
			if failErr := s.payments.Fail(r.Context(), p.ID); failErr != nil {
				s.log.Error("could not fail payment after discount loss",
					zap.String("payment_id", p.ID.String()),
					zap.Error(failErr))
			}
			s.respondError(w, r, err)
			return
		}
	}

	processed, err := s.payments.Process(r.Context(), p.ID, req.Method)
	if err != nil {
		// The payment is recorded (now FAILED); surface both facts.
		s.log.Warn("purchase created but processing failed",
			zap.String("payment_id", p.ID.String()),
			zap.Error(err))
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, processed)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payment id"})
		return
	}
	p, err := s.payments.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]
	status := payment.Status(r.URL.Query().Get("status"))
	payments, err := s.payments.ListByStudent(r.Context(), studentID, status, 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payment id"})
		return
	}
	txns, err := s.payments.Transactions(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"transactions": txns})
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payment id"})
		return
	}
	var req refundRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.payments.Refund(r.Context(), id, req.Amount, req.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed from timestamp"})
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed to timestamp"})
			return
		}
		to = t
	}

	stats, err := s.payments.Statistics(r.Context(), from, to)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}
