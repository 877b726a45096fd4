package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/metrocheck/crb-service/internal"
	entitlementmodel "github.com/metrocheck/crb-service/internal/core/datamodel/entitlement"
	gatewaytypes "github.com/metrocheck/crb-service/internal/core/datamodel/gateway"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
	"github.com/metrocheck/crb-service/internal/entitlement"
	"github.com/metrocheck/crb-service/internal/payment"
	"github.com/metrocheck/crb-service/internal/payment/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRepository models the storage guarantees the real repository
// provides, including the guarded status transition.
type mockRepository struct {
	payments map[int64]*datamodel.PaymentRequest
	nextID   int64

	createError     error
	transitionError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		payments: make(map[int64]*datamodel.PaymentRequest),
		nextID:   1,
	}
}

func (m *mockRepository) Create(_ context.Context, p *datamodel.PaymentRequest) error {
	if m.createError != nil {
		return m.createError
	}
	p.ID = m.nextID
	m.nextID++
	if p.Status == "" {
		p.Status = datamodel.StatusPending
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	copied := *p
	m.payments[p.ID] = &copied
	return nil
}

func (m *mockRepository) AttachCorrelation(_ context.Context, paymentID int64, checkoutRequestID, transactionID string) error {
	p, ok := m.payments[paymentID]
	if !ok {
		return postgres.ErrNotFound
	}
	if checkoutRequestID != "" && p.CheckoutRequestID == nil {
		p.CheckoutRequestID = &checkoutRequestID
	}
	if transactionID != "" && p.TransactionID == nil {
		p.TransactionID = &transactionID
	}
	if p.Status == datamodel.StatusPending {
		p.Status = datamodel.StatusProcessing
	}
	return nil
}

func (m *mockRepository) TransitionStatus(_ context.Context, paymentID int64, newStatus string, outcome *datamodel.Outcome) (bool, error) {
	if m.transitionError != nil {
		return false, m.transitionError
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return false, nil
	}
	if !datamodel.IsForwardTransition(p.Status, newStatus) {
		return false, nil
	}
	p.Status = newStatus
	if outcome != nil {
		if outcome.ResultCode != nil {
			code := *outcome.ResultCode
			p.ResultCode = &code
		}
		if outcome.ResultDescription != nil {
			desc := *outcome.ResultDescription
			p.ResultDescription = &desc
		}
		if outcome.ReceiptNumber != nil {
			receipt := *outcome.ReceiptNumber
			p.ReceiptNumber = &receipt
		}
	}
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *mockRepository) FindByID(_ context.Context, id int64) (*datamodel.PaymentRequest, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepository) FindByCheckoutID(_ context.Context, checkoutRequestID string) (*datamodel.PaymentRequest, error) {
	for _, p := range m.newestFirst() {
		if p.CheckoutRequestID != nil && *p.CheckoutRequestID == checkoutRequestID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *mockRepository) FindByTransactionID(_ context.Context, transactionID string) (*datamodel.PaymentRequest, error) {
	for _, p := range m.newestFirst() {
		if p.TransactionID != nil && *p.TransactionID == transactionID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *mockRepository) FindByPhoneMostRecent(_ context.Context, phoneNumber string) (*datamodel.PaymentRequest, error) {
	for _, p := range m.newestFirst() {
		if p.PhoneNumber == phoneNumber {
			copied := *p
			return &copied, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *mockRepository) MostRecentNonFailed(_ context.Context) (*datamodel.PaymentRequest, error) {
	for _, p := range m.newestFirst() {
		if p.Status != datamodel.StatusFailed {
			copied := *p
			return &copied, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *mockRepository) List(_ context.Context, limit int) ([]datamodel.PaymentRequest, error) {
	out := make([]datamodel.PaymentRequest, 0, len(m.payments))
	for _, p := range m.newestFirst() {
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockRepository) newestFirst() []*datamodel.PaymentRequest {
	out := make([]*datamodel.PaymentRequest, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type mockGateway struct {
	pushResult *gatewaytypes.STKPushResult
	pushError  error

	retrieveResult *gatewaytypes.TransactionStatus
	retrieveError  error

	listResult []gatewaytypes.TransactionStatus
	listError  error

	pushCalls     int
	retrieveCalls int
	listCalls     int
}

func (m *mockGateway) InitiateSTKPush(_ context.Context, _ string, _ int64) (*gatewaytypes.STKPushResult, error) {
	m.pushCalls++
	return m.pushResult, m.pushError
}

func (m *mockGateway) Retrieve(_ context.Context, _ string) (*gatewaytypes.TransactionStatus, error) {
	m.retrieveCalls++
	return m.retrieveResult, m.retrieveError
}

func (m *mockGateway) ListTransactions(_ context.Context) ([]gatewaytypes.TransactionStatus, error) {
	m.listCalls++
	return m.listResult, m.listError
}

// mockGranter applies the real tier rules but keeps grants in memory
// with the same once-per-payment guarantee as the database.
type mockGranter struct {
	grants     map[int64]*entitlementmodel.AccessGrant
	grantCalls int
}

func newMockGranter() *mockGranter {
	return &mockGranter{grants: make(map[int64]*entitlementmodel.AccessGrant)}
}

func (m *mockGranter) GrantForPayment(_ context.Context, p *datamodel.PaymentRequest) (*entitlementmodel.AccessGrant, error) {
	m.grantCalls++
	if existing, ok := m.grants[p.ID]; ok {
		return existing, nil
	}
	grant := &entitlementmodel.AccessGrant{
		ID:          int64(len(m.grants) + 1),
		PhoneNumber: p.PhoneNumber,
		PackageTier: string(entitlement.TierForPayment(p.BundleName, p.Amount)),
		PaymentID:   p.ID,
		IsActive:    true,
	}
	m.grants[p.ID] = grant
	return grant, nil
}

func (m *mockGranter) GrantByPaymentID(_ context.Context, paymentID int64) (*entitlementmodel.AccessGrant, error) {
	if grant, ok := m.grants[paymentID]; ok {
		return grant, nil
	}
	return nil, apperrors.ErrPaymentNotFound
}

var _ = Describe("Payment Service", func() {
	var (
		repo    *mockRepository
		gw      *mockGateway
		granter *mockGranter
		service *payment.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		repo = newMockRepository()
		gw = &mockGateway{}
		granter = newMockGranter()
		service = payment.NewService(repo, gw, granter, nil, testLogger())
		ctx = context.Background()
	})

	seedPayment := func(phoneNumber, status string, checkoutID, transactionID string, amount int64, bundle string) *datamodel.PaymentRequest {
		p := &datamodel.PaymentRequest{
			PhoneNumber: phoneNumber,
			Amount:      decimal.NewFromInt(amount),
			BundleName:  bundle,
			Status:      status,
		}
		Expect(repo.Create(ctx, p)).To(Succeed())
		stored := repo.payments[p.ID]
		stored.Status = status
		if checkoutID != "" {
			stored.CheckoutRequestID = &checkoutID
		}
		if transactionID != "" {
			stored.TransactionID = &transactionID
		}
		return stored
	}

	Describe("Initiate", func() {
		It("records the payment and attaches gateway identifiers", func() {
			gw.pushResult = &gatewaytypes.STKPushResult{
				CheckoutRequestID: "ws_CO_100",
				TransactionID:     "TX100",
			}

			resp, err := service.Initiate(ctx, payment.InitiateRequest{
				Phone:      "0712345678",
				Amount:     decimal.NewFromInt(299),
				BundleName: "Premium Package",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Status).To(Equal(datamodel.StatusProcessing))
			Expect(resp.CheckoutRequestID).To(Equal("ws_CO_100"))

			stored := repo.payments[resp.PaymentID]
			Expect(stored.PhoneNumber).To(Equal("254712345678"))
			Expect(stored.Status).To(Equal(datamodel.StatusProcessing))
			Expect(*stored.CheckoutRequestID).To(Equal("ws_CO_100"))
			Expect(*stored.TransactionID).To(Equal("TX100"))
		})

		It("marks the payment failed when the gateway rejects, keeping the provider message", func() {
			gw.pushError = errors.New("provider rejected stk push (status 400): insufficient float")

			_, err := service.Initiate(ctx, payment.InitiateRequest{
				Phone:  "0712345678",
				Amount: decimal.NewFromInt(99),
			})
			Expect(err).To(HaveOccurred())

			stored := repo.payments[1]
			Expect(stored.Status).To(Equal(datamodel.StatusFailed))
			Expect(*stored.ResultDescription).To(ContainSubstring("insufficient float"))
		})

		It("rejects invalid input before touching storage", func() {
			_, err := service.Initiate(ctx, payment.InitiateRequest{
				Phone:  "0712345678",
				Amount: decimal.NewFromInt(5),
			})
			Expect(err).To(HaveOccurred())
			Expect(repo.payments).To(BeEmpty())
			Expect(gw.pushCalls).To(Equal(0))
		})
	})

	Describe("Resolve", func() {
		It("prefers payment id over all other identifiers", func() {
			first := seedPayment("254712345678", datamodel.StatusCompleted, "ws_CO_1", "TX1", 99, "Standard Package")
			seedPayment("254712345678", datamodel.StatusPending, "ws_CO_2", "TX2", 299, "Premium Package")

			id := first.ID
			got, err := service.Resolve(ctx, payment.StatusCheckRequest{
				PaymentID:         &id,
				CheckoutRequestID: "ws_CO_2",
				TransactionID:     "TX2",
				Phone:             "254712345678",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(got.ID).To(Equal(first.ID))
		})

		It("prefers checkout request id over transaction id", func() {
			byCheckout := seedPayment("254712345678", datamodel.StatusPending, "ws_CO_1", "", 99, "")
			seedPayment("254700000001", datamodel.StatusPending, "", "TX2", 99, "")

			got, err := service.Resolve(ctx, payment.StatusCheckRequest{
				CheckoutRequestID: "ws_CO_1",
				TransactionID:     "TX2",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(got.ID).To(Equal(byCheckout.ID))
		})

		It("falls through a stale checkout id to a matching transaction id", func() {
			byTransaction := seedPayment("254712345678", datamodel.StatusProcessing, "", "TX1", 99, "")

			got, err := service.Resolve(ctx, payment.StatusCheckRequest{
				CheckoutRequestID: "ws_CO_stale",
				TransactionID:     "TX1",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(got.ID).To(Equal(byTransaction.ID))
		})

		It("falls through an unknown payment id to the phone lookup", func() {
			newest := seedPayment("254712345678", datamodel.StatusPending, "", "", 299, "")

			missing := int64(9999)
			got, err := service.Resolve(ctx, payment.StatusCheckRequest{
				PaymentID: &missing,
				Phone:     "0712345678",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(got.ID).To(Equal(newest.ID))
		})

		It("falls back to the newest payment for a phone number", func() {
			seedPayment("254712345678", datamodel.StatusFailed, "", "", 99, "")
			newest := seedPayment("254712345678", datamodel.StatusPending, "", "", 299, "")

			got, err := service.Resolve(ctx, payment.StatusCheckRequest{Phone: "0712345678"})
			Expect(err).ToNot(HaveOccurred())
			Expect(got.ID).To(Equal(newest.ID))
		})

		It("uses the newest non-failed payment when no identifier is given", func() {
			wanted := seedPayment("254712345678", datamodel.StatusProcessing, "", "", 99, "")
			seedPayment("254700000001", datamodel.StatusFailed, "", "", 99, "")

			got, err := service.Resolve(ctx, payment.StatusCheckRequest{
				CheckoutRequestID: "null",
				TransactionID:     "undefined",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(got.ID).To(Equal(wanted.ID))
		})

		It("returns not found when nothing matches", func() {
			_, err := service.Resolve(ctx, payment.StatusCheckRequest{TransactionID: "TX404"})
			Expect(errors.Is(err, apperrors.ErrPaymentNotFound)).To(BeTrue())
		})
	})

	Describe("CheckStatus", func() {
		It("answers terminal payments from the ledger without polling", func() {
			p := seedPayment("254712345678", datamodel.StatusCompleted, "ws_CO_1", "TX1", 299, "Premium Package")
			granter.GrantForPayment(ctx, p)

			resp, err := service.CheckStatus(ctx, payment.StatusCheckRequest{TransactionID: "TX1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(datamodel.StatusCompleted))
			Expect(resp.AccessGranted).To(BeTrue())
			Expect(resp.PackageTier).To(Equal("premium"))
			Expect(gw.retrieveCalls).To(Equal(0))
			Expect(gw.listCalls).To(Equal(0))
		})

		It("returns the current state when no transaction id is correlated yet", func() {
			seedPayment("254712345678", datamodel.StatusPending, "ws_CO_1", "", 99, "")

			resp, err := service.CheckStatus(ctx, payment.StatusCheckRequest{CheckoutRequestID: "ws_CO_1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(datamodel.StatusPending))
			Expect(gw.retrieveCalls).To(Equal(0))
		})

		It("completes the payment from a direct status lookup and grants access", func() {
			p := seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "TX1", 299, "Premium Package")
			gw.retrieveResult = &gatewaytypes.TransactionStatus{
				TransactionID: "TX1",
				Status:        "success",
				Receipt:       "QA12345",
			}

			resp, err := service.CheckStatus(ctx, payment.StatusCheckRequest{TransactionID: "TX1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(datamodel.StatusCompleted))
			Expect(resp.ReceiptNumber).To(Equal("QA12345"))
			Expect(resp.AccessGranted).To(BeTrue())
			Expect(resp.PackageTier).To(Equal("premium"))
			Expect(granter.grants).To(HaveKey(p.ID))
		})

		It("falls back to the transaction listing when direct lookup fails", func() {
			seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "TX1", 99, "Standard Package")
			gw.retrieveError = errors.New("provider returned status 500 for transaction TX1")
			gw.listResult = []gatewaytypes.TransactionStatus{
				{TransactionID: "TXother", Status: "failed"},
				{TransactionID: "TX1", Status: "completed", Receipt: "QB777"},
			}

			resp, err := service.CheckStatus(ctx, payment.StatusCheckRequest{TransactionID: "TX1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(datamodel.StatusCompleted))
			Expect(resp.ReceiptNumber).To(Equal("QB777"))
			Expect(gw.retrieveCalls).To(Equal(1))
			Expect(gw.listCalls).To(Equal(1))
		})

		It("leaves the payment unchanged when the provider reports a non-terminal status", func() {
			seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "TX1", 99, "")
			gw.retrieveResult = &gatewaytypes.TransactionStatus{TransactionID: "TX1", Status: "processing"}

			resp, err := service.CheckStatus(ctx, payment.StatusCheckRequest{TransactionID: "TX1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(datamodel.StatusProcessing))
		})

		It("leaves the payment unchanged when both poll tiers fail", func() {
			seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "TX1", 99, "")
			gw.retrieveError = errors.New("timeout")
			gw.listError = errors.New("timeout")

			resp, err := service.CheckStatus(ctx, payment.StatusCheckRequest{TransactionID: "TX1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(datamodel.StatusProcessing))
		})
	})

	Describe("HandleCallback", func() {
		It("completes the payment from a successful stkCallback", func() {
			p := seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "", 299, "Premium Package")

			payload, parseErr := payment.ParseCallbackPayload([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"Success","CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"QA55"}]}}}}`))
			Expect(parseErr).To(BeNil())

			Expect(service.HandleCallback(ctx, payload)).To(Succeed())

			stored := repo.payments[p.ID]
			Expect(stored.Status).To(Equal(datamodel.StatusCompleted))
			Expect(*stored.ReceiptNumber).To(Equal("QA55"))
			Expect(granter.grants[p.ID].PackageTier).To(Equal("premium"))
		})

		It("fails the payment on a non-zero stkCallback result code", func() {
			p := seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "", 99, "")

			payload, parseErr := payment.ParseCallbackPayload([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`))
			Expect(parseErr).To(BeNil())

			Expect(service.HandleCallback(ctx, payload)).To(Succeed())

			stored := repo.payments[p.ID]
			Expect(stored.Status).To(Equal(datamodel.StatusFailed))
			Expect(*stored.ResultCode).To(Equal(1032))
			Expect(*stored.ResultDescription).To(Equal("Request cancelled by user"))
			Expect(granter.grants).To(BeEmpty())
		})

		It("ignores a duplicate webhook for an already terminal payment", func() {
			p := seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "TX1", 299, "Premium Package")

			body := []byte(`{"event":"transaction.updated","data":{"checkoutRequestId":"ws_CO_1","transactionId":"TX1","status":"success","mpesaReceiptNumber":"QA1"}}`)
			payload, parseErr := payment.ParseCallbackPayload(body)
			Expect(parseErr).To(BeNil())

			Expect(service.HandleCallback(ctx, payload)).To(Succeed())
			firstGrantCalls := granter.grantCalls

			Expect(service.HandleCallback(ctx, payload)).To(Succeed())

			stored := repo.payments[p.ID]
			Expect(stored.Status).To(Equal(datamodel.StatusCompleted))
			Expect(granter.grantCalls).To(Equal(firstGrantCalls))
			Expect(granter.grants).To(HaveLen(1))
		})

		It("completes a payment from the event name when the data carries no status", func() {
			p := seedPayment("254712345678", datamodel.StatusProcessing, "CHK1", "", 299, "Premium Package")

			payload, parseErr := payment.ParseCallbackPayload([]byte(`{"event":"payment.success","data":{"checkoutRequestId":"CHK1"}}`))
			Expect(parseErr).To(BeNil())

			Expect(service.HandleCallback(ctx, payload)).To(Succeed())
			Expect(repo.payments[p.ID].Status).To(Equal(datamodel.StatusCompleted))
			Expect(granter.grants[p.ID].PackageTier).To(Equal("premium"))
		})

		It("acknowledges payout notifications without touching any payment", func() {
			p := seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "TX1", 99, "")

			payload, parseErr := payment.ParseCallbackPayload([]byte(`{"event":"payout.completed"}`))
			Expect(parseErr).To(BeNil())

			Expect(service.HandleCallback(ctx, payload)).To(Succeed())
			Expect(repo.payments[p.ID].Status).To(Equal(datamodel.StatusProcessing))
		})

		It("returns not found for a callback matching no payment", func() {
			payload, parseErr := payment.ParseCallbackPayload([]byte(`{"event":"transaction.updated","data":{"transactionId":"TX404","status":"success"}}`))
			Expect(parseErr).To(BeNil())

			err := service.HandleCallback(ctx, payload)
			Expect(errors.Is(err, apperrors.ErrPaymentNotFound)).To(BeTrue())
		})

		It("attaches the transaction id from a callback resolved by checkout id", func() {
			p := seedPayment("254712345678", datamodel.StatusProcessing, "ws_CO_1", "", 99, "")

			payload, parseErr := payment.ParseCallbackPayload([]byte(`{"event":"transaction.updated","data":{"checkoutRequestId":"ws_CO_1","transactionId":"TXnew","status":"success"}}`))
			Expect(parseErr).To(BeNil())

			Expect(service.HandleCallback(ctx, payload)).To(Succeed())
			Expect(*repo.payments[p.ID].TransactionID).To(Equal("TXnew"))
		})
	})

	Describe("Initiate then webhook, end to end", func() {
		It("grants premium access for a 299 Premium Package purchase", func() {
			gw.pushResult = &gatewaytypes.STKPushResult{CheckoutRequestID: "ws_CO_9", TransactionID: "TX9"}

			resp, err := service.Initiate(ctx, payment.InitiateRequest{
				Phone:      "0712345678",
				Amount:     decimal.NewFromInt(299),
				BundleName: "Premium Package",
			})
			Expect(err).ToNot(HaveOccurred())

			body := []byte(`{"event":"transaction.updated","data":{"checkoutRequestId":"ws_CO_9","status":"success","mpesaReceiptNumber":"QC1"}}`)
			payload, parseErr := payment.ParseCallbackPayload(body)
			Expect(parseErr).To(BeNil())
			Expect(service.HandleCallback(ctx, payload)).To(Succeed())

			status, err := service.CheckStatus(ctx, payment.StatusCheckRequest{CheckoutRequestID: "ws_CO_9"})
			Expect(err).ToNot(HaveOccurred())
			Expect(status.Status).To(Equal(datamodel.StatusCompleted))
			Expect(status.AccessGranted).To(BeTrue())
			Expect(status.PackageTier).To(Equal("premium"))
			Expect(status.PaymentID).To(Equal(resp.PaymentID))
		})
	})

	Describe("ListPayments", func() {
		It("returns newest payments first with identifiers flattened", func() {
			seedPayment("254712345678", datamodel.StatusCompleted, "ws_CO_1", "TX1", 99, "Standard Package")
			seedPayment("254700000001", datamodel.StatusPending, "ws_CO_2", "", 299, "Premium Package")

			resp, err := service.ListPayments(ctx, 100)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Payments[0].CheckoutRequestID).To(Equal("ws_CO_2"))
			Expect(resp.Payments[1].TransactionID).To(Equal("TX1"))
		})
	})
})
