package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/silencedor/commerce-api/internal/domain/payment"
)

const webhookSignatureHeader = "Webhook-Signature"

// Payload size cap for webhook bodies. Provider events are small; anything
// larger is rejected before signature verification.
const maxWebhookBody = 1 << 20

// PaymentWebhook receives provider payment events. Authentication is the
// payload signature; delivery is at-least-once, so duplicates are absorbed
// downstream and acknowledged with 200.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	err = h.payments.HandleWebhook(r.Context(), payload, r.Header.Get(webhookSignatureHeader))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "received"})
	case errors.Is(err, payment.ErrInvalidSignature):
		respondError(w, http.StatusUnauthorized, "invalid signature")
	default:
		// Non-2xx makes the provider retry the delivery later.
		zctx.From(r.Context()).Error("webhook processing failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
