package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	billingapp "github.com/tenantcore/backend/internal/application/billing"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/shared"
	infrabilling "github.com/tenantcore/backend/internal/infrastructure/billing"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const defaultMaxWebhookPayload = 64 << 10

// BillingIngester records and applies one billing event
type BillingIngester interface {
	IngestBillingEvent(ctx context.Context, input billingapp.IngestInput) (*billingapp.IngestResult, error)
}

// SignatureVerifier authenticates a webhook body
type SignatureVerifier interface {
	Verify(body []byte, header string) error
}

// BillingWebhookHandler receives billing provider deliveries.
// The route is unauthenticated; the body signature is the only credential.
type BillingWebhookHandler struct {
	BaseHandler
	ingester   BillingIngester
	verifier   SignatureVerifier
	maxPayload int64
}

// NewBillingWebhookHandler creates a new BillingWebhookHandler
func NewBillingWebhookHandler(ingester BillingIngester, verifier SignatureVerifier, maxPayload int64) *BillingWebhookHandler {
	if maxPayload <= 0 {
		maxPayload = defaultMaxWebhookPayload
	}
	return &BillingWebhookHandler{
		ingester:   ingester,
		verifier:   verifier,
		maxPayload: maxPayload,
	}
}

// WebhookResponse acknowledges a delivery
type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Message   string `json:"message,omitempty"`
}

// envelope holds the fields read before the ledger sees the body
type envelope struct {
	ID        string            `json:"id"`
	Type      billing.EventType `json:"type"`
	TenantRef string            `json:"tenant_ref"`
}

// Handle ingests one delivery.
//
// accepted, already_seen and rejected are answered 200 so the provider stops
// redelivering; rejected events wait for an operator. A retryable failure is
// answered 500 so the provider redelivers.
func (h *BillingWebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayload+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if int64(len(payload)) > h.maxPayload {
		h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Payload too large")
		return
	}

	log := logger.L(c.Request.Context())

	if err := h.verifier.Verify(payload, c.GetHeader(infrabilling.SignatureHeader)); err != nil {
		log.Warn("Billing webhook signature rejected", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeSignatureInvalid, "Webhook signature verification failed")
		return
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.ID == "" {
		h.BadRequest(c, "Billing event must be a JSON object with an id")
		return
	}

	result, err := h.ingester.IngestBillingEvent(c.Request.Context(), billingapp.IngestInput{
		EventID:   env.ID,
		TenantRef: env.TenantRef,
		Type:      env.Type,
		Payload:   payload,
	})
	if err != nil {
		if isMalformedDelivery(err) {
			h.HandleError(c, err)
			return
		}
		log.Error("Billing event ingestion failed, awaiting redelivery",
			zap.String("event_id", env.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, WebhookResponse{
			Received: false,
			EventID:  env.ID,
			Message:  "Temporary failure, retry later",
		})
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Outcome:   string(result.Outcome),
		Message:   result.Message,
	})
}

// isMalformedDelivery reports errors raised before the ledger saw the event;
// redelivering the same body cannot fix them
func isMalformedDelivery(err error) bool {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	switch domainErr.Code {
	case "INVALID_EVENT_ID", "INVALID_EVENT_TYPE":
		return true
	}
	return false
}
