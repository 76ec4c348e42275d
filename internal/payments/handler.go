package payments

import (
	"encoding/json"
	"io"
	"net/http"

	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Handler exposes the inbound payment webhook.
type Handler struct {
	reconciler *Reconciler
	secret     string
	log        *logger.Logger
}

// NewHandler creates the payment webhook handler.
func NewHandler(reconciler *Reconciler, secret string, log *logger.Logger) *Handler {
	return &Handler{reconciler: reconciler, secret: secret, log: log}
}

// Webhook receives a signed payment-outcome event.
// POST /api/v1/webhooks/payment
//
// The response is a generic acknowledgment regardless of what the event
// did internally; only retryable failures surface as a 5xx so the
// processor redelivers. Unverifiable payloads are rejected outright.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable body", nil)
		return
	}

	if !VerifySignature(h.secret, body, c.GetHeader(SignatureHeader)) {
		h.log.Warn("payment webhook signature verification failed", "client_ip", c.ClientIP())
		httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		h.log.Warn("payment webhook payload unparseable", "error", err)
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	if err := h.reconciler.Process(c.Request.Context(), event); err != nil {
		if IsRetryable(err) {
			h.log.Error("payment event processing failed, requesting redelivery",
				"event_type", string(event.EventType), "purpose", string(event.Purpose), "error", err)
			httpkit.Error(c, http.StatusInternalServerError, "processing failed", nil)
			return
		}
		// Fatal: redelivery cannot fix it, acknowledge and move on.
		h.log.PaymentEvent(string(event.EventType), string(event.Purpose), false, err.Error())
	}

	httpkit.OK(c, gin.H{"received": true})
}
