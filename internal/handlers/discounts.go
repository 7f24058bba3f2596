package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/discount"
)

type createDiscountRequest struct {
	Code           string          `json:"code"`
	Type           string          `json:"type"`
	Value          decimal.Decimal `json:"value"`
	Description    string          `json:"description"`
	ValidFrom      time.Time       `json:"validFrom"`
	ValidUntil     time.Time       `json:"validUntil"`
	MaxUses        *int            `json:"maxUses"`
	MaxUsesPerUser int             `json:"maxUsesPerUser"`
}

func (s *Server) handleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req createDiscountRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.discounts.Create(r.Context(), discount.CreateParams{
		Code:           req.Code,
		Type:           req.Type,
		Value:          req.Value,
		Description:    req.Description,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		MaxUses:        req.MaxUses,
		MaxUsesPerUser: req.MaxUsesPerUser,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := s.discounts.ListActive(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"discounts": discounts})
}

type validateDiscountRequest struct {
	Code      string `json:"code"`
	StudentID string `json:"studentId"`
}

// handleValidateDiscount is read-only: it reports whether the code is
// currently redeemable without consuming a use.
func (s *Server) handleValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req validateDiscountRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.discounts.Validate(r.Context(), req.Code, req.StudentID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "discount": d})
}
