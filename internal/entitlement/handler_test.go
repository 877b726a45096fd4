package entitlement_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	paymentmodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
	"github.com/metrocheck/crb-service/internal/entitlement"
	"github.com/metrocheck/crb-service/internal/payment"
)

func completedTestPayment(id int64, phoneNumber string, amount int64, bundle string) *paymentmodel.PaymentRequest {
	return &paymentmodel.PaymentRequest{
		ID:          id,
		PhoneNumber: phoneNumber,
		Amount:      decimal.NewFromInt(amount),
		BundleName:  bundle,
		Status:      paymentmodel.StatusCompleted,
	}
}

// stubPaymentService records the initiate request it is handed.
type stubPaymentService struct {
	lastInitiate *payment.InitiateRequest
}

func (s *stubPaymentService) Initiate(_ context.Context, req payment.InitiateRequest) (*payment.InitiateResponse, error) {
	copied := req
	s.lastInitiate = &copied
	return &payment.InitiateResponse{
		Success:   true,
		PaymentID: 1,
		Status:    "processing",
		Message:   "STK push sent",
	}, nil
}

func (s *stubPaymentService) CheckStatus(context.Context, payment.StatusCheckRequest) (*payment.StatusCheckResponse, error) {
	return nil, nil
}

func (s *stubPaymentService) ListPayments(context.Context, int) (*payment.ListResponse, error) {
	return nil, nil
}

func (s *stubPaymentService) HandleCallback(context.Context, *payment.CallbackPayload) error {
	return nil
}

var _ = Describe("Entitlement Handler", func() {
	var (
		repo     *mockGrantRepository
		service  *entitlement.Service
		payments *stubPaymentService
		handler  *entitlement.Handler
		ctx      context.Context
	)

	BeforeEach(func() {
		repo = newMockGrantRepository()
		service = entitlement.NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
		payments = &stubPaymentService{}
		handler = entitlement.NewHandler(service, payments)
		ctx = context.Background()
	})

	postJSON := func(path, body string, fn http.HandlerFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec
	}

	Describe("UserAccess", func() {
		It("reports access for a phone sent in the request body", func() {
			p := completedTestPayment(1, "254712345678", 299, "Premium Package")
			_, err := service.GrantForPayment(ctx, p)
			Expect(err).ToNot(HaveOccurred())

			rec := postJSON("/api/v1/user/access", `{"phone":"0712345678"}`, handler.UserAccess)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body struct {
				Success bool `json:"success"`
				Access  struct {
					HasAccess   bool   `json:"has_access"`
					PackageTier string `json:"package_tier"`
				} `json:"access"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Success).To(BeTrue())
			Expect(body.Access.HasAccess).To(BeTrue())
			Expect(body.Access.PackageTier).To(Equal("premium"))
		})

		It("rejects a body without a phone", func() {
			rec := postJSON("/api/v1/user/access", `{}`, handler.UserAccess)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("InitiateUpgrade", func() {
		It("charges the price difference when upgrading from premium to golden", func() {
			p := completedTestPayment(1, "254712345678", 299, "Premium Package")
			_, err := service.GrantForPayment(ctx, p)
			Expect(err).ToNot(HaveOccurred())

			rec := postJSON("/api/v1/upgrade/initiate",
				`{"phone":"0712345678","target_tier":"golden"}`, handler.InitiateUpgrade)
			Expect(rec.Code).To(Equal(http.StatusOK))

			Expect(payments.lastInitiate).ToNot(BeNil())
			Expect(payments.lastInitiate.Amount.Equal(decimal.NewFromInt(200))).To(BeTrue())
			Expect(payments.lastInitiate.BundleName).To(Equal("Golden Premium Package"))
		})

		It("charges the full price on a first purchase", func() {
			rec := postJSON("/api/v1/upgrade/initiate",
				`{"phone":"0712345678","target_tier":"premium"}`, handler.InitiateUpgrade)
			Expect(rec.Code).To(Equal(http.StatusOK))

			Expect(payments.lastInitiate).ToNot(BeNil())
			Expect(payments.lastInitiate.Amount.Equal(decimal.NewFromInt(299))).To(BeTrue())
		})

		It("rejects a downgrade without touching the payment service", func() {
			p := completedTestPayment(1, "254712345678", 499, "Golden Premium Package")
			_, err := service.GrantForPayment(ctx, p)
			Expect(err).ToNot(HaveOccurred())

			rec := postJSON("/api/v1/upgrade/initiate",
				`{"phone":"0712345678","target_tier":"premium"}`, handler.InitiateUpgrade)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(payments.lastInitiate).To(BeNil())
		})
	})
})
