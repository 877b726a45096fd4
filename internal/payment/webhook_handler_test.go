package payment_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/metrocheck/crb-service/internal"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
	"github.com/metrocheck/crb-service/internal/payment"
)

// stubCallbackService records what reaches the reconciler behind the
// webhook handler.
type stubCallbackService struct {
	callbackErr   error
	callbackCalls int
	lastPayload   *payment.CallbackPayload
}

func (s *stubCallbackService) Initiate(context.Context, payment.InitiateRequest) (*payment.InitiateResponse, error) {
	return nil, nil
}

func (s *stubCallbackService) CheckStatus(context.Context, payment.StatusCheckRequest) (*payment.StatusCheckResponse, error) {
	return &payment.StatusCheckResponse{Success: true, Status: datamodel.StatusPending}, nil
}

func (s *stubCallbackService) ListPayments(context.Context, int) (*payment.ListResponse, error) {
	return &payment.ListResponse{Success: true}, nil
}

func (s *stubCallbackService) HandleCallback(_ context.Context, payload *payment.CallbackPayload) error {
	s.callbackCalls++
	s.lastPayload = payload
	return s.callbackErr
}

var _ = Describe("WebhookHandler", func() {
	const secret = "webhook-secret"
	validBody := []byte(`{"event":"transaction.updated","data":{"transactionId":"TX1","status":"success","mpesaReceiptNumber":"QA1"}}`)

	var stub *stubCallbackService

	BeforeEach(func() {
		stub = &stubCallbackService{}
	})

	post := func(handler *payment.WebhookHandler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(body))
		for name, value := range headers {
			req.Header.Set(name, value)
		}
		rec := httptest.NewRecorder()
		handler.HandleCallback(rec, req)
		return rec
	}

	newHandler := func(cfg apperrors.WebhookConfig) *payment.WebhookHandler {
		return payment.NewWebhookHandler(stub, payment.NewSignatureVerifier(cfg))
	}

	Context("with a configured secret", func() {
		var handler *payment.WebhookHandler

		BeforeEach(func() {
			handler = newHandler(apperrors.WebhookConfig{Secret: secret})
		})

		It("processes a correctly signed callback", func() {
			rec := post(handler, validBody, map[string]string{
				"X-Lipana-Signature": sign(secret, validBody),
			})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.callbackCalls).To(Equal(1))
			Expect(stub.lastPayload.Data.TransactionID).To(Equal("TX1"))
		})

		It("rejects a callback without a signature", func() {
			rec := post(handler, validBody, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(stub.callbackCalls).To(Equal(0))
		})

		It("rejects a callback with a wrong signature", func() {
			rec := post(handler, validBody, map[string]string{
				"X-Lipana-Signature": sign("other-secret", validBody),
			})
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(stub.callbackCalls).To(Equal(0))
		})

		It("rejects a signed body that was altered in flight", func() {
			tampered := bytes.Replace(validBody, []byte("TX1"), []byte("TX2"), 1)
			rec := post(handler, tampered, map[string]string{
				"X-Lipana-Signature": sign(secret, validBody),
			})
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a signed but unparseable payload", func() {
			body := []byte(`{"foo":"bar"}`)
			rec := post(handler, body, map[string]string{
				"X-Lipana-Signature": sign(secret, body),
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(stub.callbackCalls).To(Equal(0))
		})

		It("acknowledges a callback that matches no payment", func() {
			stub.callbackErr = apperrors.ErrPaymentNotFound
			rec := post(handler, validBody, map[string]string{
				"X-Lipana-Signature": sign(secret, validBody),
			})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("no matching payment"))
		})
	})

	Context("without a secret", func() {
		It("rejects callbacks unless unverified delivery is explicitly allowed", func() {
			handler := newHandler(apperrors.WebhookConfig{})
			rec := post(handler, validBody, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(stub.callbackCalls).To(Equal(0))
		})

		It("accepts unsigned callbacks after the explicit opt-in", func() {
			handler := newHandler(apperrors.WebhookConfig{AllowUnverified: true})
			rec := post(handler, validBody, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.callbackCalls).To(Equal(1))
		})
	})
})
