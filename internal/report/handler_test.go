package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/metrocheck/crb-service/internal/report"
)

// stubReportService records the phone it was asked about.
type stubReportService struct {
	lastPhone string
	view      *report.View
	pdf       []byte
	filename  string
}

func (s *stubReportService) GetReport(_ context.Context, rawPhone string) (*report.View, error) {
	s.lastPhone = rawPhone
	return s.view, nil
}

func (s *stubReportService) DownloadPDF(_ context.Context, rawPhone string) ([]byte, string, error) {
	s.lastPhone = rawPhone
	return s.pdf, s.filename, nil
}

var _ = Describe("Report Handler", func() {
	var (
		service *stubReportService
		handler *report.Handler
	)

	BeforeEach(func() {
		service = &stubReportService{
			view:     &report.View{PhoneNumber: "254712345678", PackageTier: "premium", CreditScore: 700},
			pdf:      []byte("%PDF-1.4 stub"),
			filename: "CRB_Report_254712345678_20260831.pdf",
		}
		handler = report.NewHandler(service)
	})

	postJSON := func(path, body string, fn http.HandlerFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec
	}

	Describe("GetReport", func() {
		It("reads the phone from the request body", func() {
			rec := postJSON("/api/v1/reports", `{"phone":"0712345678"}`, handler.GetReport)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(service.lastPhone).To(Equal("0712345678"))

			var body struct {
				Success bool `json:"success"`
				Report  struct {
					CreditScore int `json:"credit_score"`
				} `json:"report"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Success).To(BeTrue())
			Expect(body.Report.CreditScore).To(Equal(700))
		})

		It("rejects a body without a phone", func() {
			rec := postJSON("/api/v1/reports", `{}`, handler.GetReport)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed body", func() {
			rec := postJSON("/api/v1/reports", `{not json`, handler.GetReport)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Download", func() {
		It("serves the PDF for a phone sent in the request body", func() {
			rec := postJSON("/api/v1/reports/download", `{"phone":"0712345678"}`, handler.Download)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/pdf"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("CRB_Report_254712345678"))
			Expect(rec.Body.String()).To(HavePrefix("%PDF-"))
		})
	})
})
