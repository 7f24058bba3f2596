package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

type createSubscriptionRequest struct {
	StudentID     string `json:"studentId"`
	Type          string `json:"type"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentID     string `json:"paymentId"`
	TrialDays     int    `json:"trialDays"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sub, err := s.subscriptions.Create(r.Context(), req.StudentID, req.Type, req.PaymentMethod, req.PaymentID, req.TrialDays)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed subscription id"})
		return
	}
	sub, err := s.subscriptions.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleStudentSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.GetByStudent(r.Context(), mux.Vars(r)["studentId"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}

type cancelSubscriptionRequest struct {
	Immediate bool `json:"immediate"`
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed subscription id"})
		return
	}
	var req cancelSubscriptionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sub, err := s.subscriptions.Cancel(r.Context(), id, req.Immediate)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}
