package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/invoice"
)

type createInvoiceRequest struct {
	StudentID      string              `json:"studentId"`
	Items          []invoiceItemInput  `json:"items"`
	TaxCountry     string              `json:"taxCountry"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	DueDays        int                 `json:"dueDays"`
	Currency       string              `json:"currency"`
	PaymentID      string              `json:"paymentId"`
	SubscriptionID string              `json:"subscriptionId"`
	Notes          string              `json:"notes"`
}

type invoiceItemInput struct {
	Description string          `json:"description"`
	CourseID    string          `json:"courseId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if !s.decode(w, r, &req) {
		return
	}
	items := make([]invoice.ItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, invoice.ItemParams{
			Description: it.Description,
			CourseID:    it.CourseID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	inv, err := s.invoices.CreateInvoice(r.Context(), invoice.CreateParams{
		StudentID:      req.StudentID,
		Items:          items,
		TaxCountry:     req.TaxCountry,
		DiscountAmount: req.DiscountAmount,
		DueDays:        req.DueDays,
		Currency:       req.Currency,
		PaymentID:      req.PaymentID,
		SubscriptionID: req.SubscriptionID,
		Notes:          req.Notes,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed invoice id"})
		return
	}
	inv, err := s.invoices.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, inv)
}

func (s *Server) handleGetInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.GetByNumber(r.Context(), mux.Vars(r)["number"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, inv)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.invoices.ListByStudent(r.Context(), mux.Vars(r)["studentId"], 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"invoices": invoices})
}
