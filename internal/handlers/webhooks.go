package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/webhook"
)

// Providers retry on non-2xx, so the response code is part of the
// contract: 400 only for authenticity failures (retrying cannot help),
// 500 only for recoverable internal errors (retrying will help), 200 for
// everything else including already-handled duplicates.
const maxWebhookBody = 1 << 20

func (s *Server) handleWebhook(processor webhook.Processor, signatureHeader string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable payload"})
			return
		}

		ev, err := processor.VerifyAndParse(payload, r.Header.Get(signatureHeader))
		if err != nil {
			if errors.Is(err, webhook.ErrSignatureInvalid) {
				// Potential security event; log it loudly and reject.
				s.log.Warn("webhook signature verification failed",
					zap.String("provider", processor.Name()),
					zap.String("remote_addr", r.RemoteAddr))
				s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
				return
			}
			s.log.Error("webhook payload could not be parsed",
				zap.String("provider", processor.Name()),
				zap.Error(err))
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
			return
		}

		if err := s.reconciler.Handle(r.Context(), ev); err != nil {
			s.log.Error("webhook reconciliation failed",
				zap.String("provider", processor.Name()),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
