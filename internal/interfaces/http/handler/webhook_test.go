package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	billingapp "github.com/tenantcore/backend/internal/application/billing"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/shared"
	infrabilling "github.com/tenantcore/backend/internal/infrastructure/billing"
	"github.com/tenantcore/backend/internal/interfaces/http/dto"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) IngestBillingEvent(ctx context.Context, input billingapp.IngestInput) (*billingapp.IngestResult, error) {
	args := m.Called(ctx, input)
	if r := args.Get(0); r != nil {
		return r.(*billingapp.IngestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

const (
	webhookSecret = "whsec_handler_test"
	activatedBody = `{"id":"evt_100","type":"subscription.activated","tenant_ref":"5f0c8a52-8a4e-4c57-9d3e-0c9a7f1e2b11","occurred_at":"2026-03-01T12:00:00Z","data":{"plan_code":"pro"}}`
)

type webhookFixture struct {
	ingester *MockIngester
	verifier *infrabilling.SignatureVerifier
	router   *gin.Engine
}

func newWebhookFixture(t *testing.T, maxPayload int64) *webhookFixture {
	t.Helper()
	verifier, err := infrabilling.NewSignatureVerifier(webhookSecret, time.Minute)
	require.NoError(t, err)

	f := &webhookFixture{ingester: new(MockIngester), verifier: verifier}
	h := NewBillingWebhookHandler(f.ingester, verifier, maxPayload)
	f.router = gin.New()
	f.router.POST("/api/v1/webhooks/billing", h.Handle)
	return f
}

func (f *webhookFixture) deliver(body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(infrabilling.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *webhookFixture) signed(body string) string {
	return f.verifier.Sign([]byte(body), time.Now())
}

func TestBillingWebhookHandler_Outcomes(t *testing.T) {
	for _, outcome := range []billingapp.Outcome{
		billingapp.OutcomeAccepted,
		billingapp.OutcomeAlreadySeen,
		billingapp.OutcomeRejected,
	} {
		t.Run(string(outcome), func(t *testing.T) {
			f := newWebhookFixture(t, 0)
			f.ingester.On("IngestBillingEvent", mock.Anything, mock.MatchedBy(func(in billingapp.IngestInput) bool {
				return in.EventID == "evt_100" &&
					in.Type == billing.EventType("subscription.activated") &&
					in.TenantRef == "5f0c8a52-8a4e-4c57-9d3e-0c9a7f1e2b11" &&
					string(in.Payload) == activatedBody
			})).Return(&billingapp.IngestResult{
				EventID:   "evt_100",
				EventType: "subscription.activated",
				Outcome:   outcome,
			}, nil).Once()

			w := f.deliver(activatedBody, f.signed(activatedBody))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"outcome":"`+string(outcome)+`"`)
			f.ingester.AssertExpectations(t)
		})
	}
}

func TestBillingWebhookHandler_RetryableFailure(t *testing.T) {
	f := newWebhookFixture(t, 0)
	f.ingester.On("IngestBillingEvent", mock.Anything, mock.Anything).
		Return(nil, errors.New("failed to record billing event: connection refused")).Once()

	w := f.deliver(activatedBody, f.signed(activatedBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"received":false`)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestBillingWebhookHandler_MalformedEvent(t *testing.T) {
	f := newWebhookFixture(t, 0)
	body := `{"id":"evt_101","tenant_ref":"x"}`
	f.ingester.On("IngestBillingEvent", mock.Anything, mock.Anything).
		Return(nil, shared.NewDomainError("INVALID_EVENT_TYPE", "Billing event type cannot be empty")).Once()

	w := f.deliver(body, f.signed(body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
}

func TestBillingWebhookHandler_RejectsBeforeIngest(t *testing.T) {
	stale := func(f *webhookFixture) string {
		return f.verifier.Sign([]byte(activatedBody), time.Now().Add(-time.Hour))
	}

	tests := []struct {
		name       string
		maxPayload int64
		body       string
		signature  func(f *webhookFixture, body string) string
		status     int
		code       string
	}{
		{
			name:      "missing signature",
			body:      activatedBody,
			signature: func(*webhookFixture, string) string { return "" },
			status:    http.StatusUnauthorized,
			code:      dto.ErrCodeSignatureInvalid,
		},
		{
			name:      "signature over another body",
			body:      activatedBody,
			signature: func(f *webhookFixture, _ string) string { return f.signed(`{"id":"evt_other"}`) },
			status:    http.StatusUnauthorized,
			code:      dto.ErrCodeSignatureInvalid,
		},
		{
			name:      "stale signature",
			body:      activatedBody,
			signature: func(f *webhookFixture, _ string) string { return stale(f) },
			status:    http.StatusUnauthorized,
			code:      dto.ErrCodeSignatureInvalid,
		},
		{
			name:       "payload too large",
			maxPayload: 32,
			body:       activatedBody,
			signature:  func(f *webhookFixture, body string) string { return f.signed(body) },
			status:     http.StatusRequestEntityTooLarge,
			code:       dto.ErrCodeRequestTooLarge,
		},
		{
			name:      "not json",
			body:      "event=1",
			signature: func(f *webhookFixture, body string) string { return f.signed(body) },
			status:    http.StatusBadRequest,
			code:      dto.ErrCodeBadRequest,
		},
		{
			name:      "no event id",
			body:      `{"type":"subscription.activated"}`,
			signature: func(f *webhookFixture, body string) string { return f.signed(body) },
			status:    http.StatusBadRequest,
			code:      dto.ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(t, tt.maxPayload)

			w := f.deliver(tt.body, tt.signature(f, tt.body))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeResponse(t, w).Error.Code)
			f.ingester.AssertNotCalled(t, "IngestBillingEvent", mock.Anything, mock.Anything)
		})
	}
}
