package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	errors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/core/common/validation"
	"github.com/metrocheck/crb-service/internal/core/datamodel/gateway"
)

// MinimumAmount is the smallest charge the provider accepts, in KES.
var MinimumAmount = decimal.NewFromInt(10)

type InitiateRequest struct {
	Phone      string          `json:"phone"`
	Amount     decimal.Decimal `json:"amount"`
	BundleName string          `json:"bundle_name"`
}

func (r *InitiateRequest) Validate() *errors.AppError {
	validator := validation.NewValidator()

	validator.Field("phone", r.Phone).Required().Phone()
	validator.Field("amount", r.Amount).Required().MinAmount(MinimumAmount, errors.ErrCodeInvalidAmount)
	validator.Field("bundle_name", r.BundleName).MaxLength(120)

	return validator.Validate()
}

type InitiateResponse struct {
	Success           bool   `json:"success"`
	PaymentID         int64  `json:"payment_id"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	TransactionID     string `json:"transaction_id,omitempty"`
	Status            string `json:"status"`
	Message           string `json:"message"`
}

// StatusCheckRequest carries the identifiers a client may supply when
// asking where a payment stands. All fields are optional; the resolver
// applies a fixed precedence.
type StatusCheckRequest struct {
	PaymentID         *int64 `json:"paymentId"`
	CheckoutRequestID string `json:"checkoutRequestID"`
	TransactionID     string `json:"transactionId"`
	Phone             string `json:"phone"`
}

// placeholder strings some clients send instead of omitting a field
var placeholderValues = map[string]struct{}{
	"null":      {},
	"undefined": {},
	"none":      {},
}

// NormalizeIdentifier maps placeholder strings to the empty string so
// downstream code only ever tests for presence one way.
func NormalizeIdentifier(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if _, isPlaceholder := placeholderValues[strings.ToLower(trimmed)]; isPlaceholder {
		return ""
	}
	return trimmed
}

// Normalize scrubs placeholder identifier values in place.
func (r *StatusCheckRequest) Normalize() {
	r.CheckoutRequestID = NormalizeIdentifier(r.CheckoutRequestID)
	r.TransactionID = NormalizeIdentifier(r.TransactionID)
	r.Phone = NormalizeIdentifier(r.Phone)
}

// UnmarshalJSON tolerates the payment id arriving as a number, a numeric
// string, or one of the placeholder strings clients send for absent
// fields.
func (r *StatusCheckRequest) UnmarshalJSON(data []byte) error {
	type alias StatusCheckRequest
	aux := struct {
		PaymentID json.RawMessage `json:"paymentId"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.PaymentID = parsePaymentID(aux.PaymentID)
	return nil
}

// parsePaymentID reads a payment id that may be a JSON number or a
// string. Placeholders, non-numeric strings and non-positive values all
// resolve to absent so the resolver falls through to the next
// identifier instead of failing the request.
func parsePaymentID(raw json.RawMessage) *int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		if asNumber <= 0 {
			return nil
		}
		return &asNumber
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return nil
	}
	cleaned := NormalizeIdentifier(asString)
	if cleaned == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || parsed <= 0 {
		return nil
	}
	return &parsed
}

// HasIdentifier reports whether any lookup key survived normalization.
func (r *StatusCheckRequest) HasIdentifier() bool {
	return r.PaymentID != nil || r.CheckoutRequestID != "" || r.TransactionID != "" || r.Phone != ""
}

type StatusCheckResponse struct {
	Success           bool            `json:"success"`
	PaymentID         int64           `json:"payment_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	BundleName        string          `json:"bundle_name,omitempty"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	TransactionID     string          `json:"transaction_id,omitempty"`
	ReceiptNumber     string          `json:"mpesa_receipt_number,omitempty"`
	ResultDescription string          `json:"result_description,omitempty"`
	AccessGranted     bool            `json:"access_granted"`
	PackageTier       string          `json:"package_tier,omitempty"`
}

// CallbackKind tags the recognized webhook payload shapes.
type CallbackKind int

const (
	// CallbackEvent is the provider's current envelope: an event name
	// plus a data object.
	CallbackEvent CallbackKind = iota
	// CallbackSTK is the legacy Daraja stkCallback body.
	CallbackSTK
)

// EventData is the data object of an event-style callback.
type EventData struct {
	TransactionID     string          `json:"transactionId"`
	CheckoutRequestID string          `json:"checkoutRequestId"`
	Status            string          `json:"status"`
	Receipt           string          `json:"mpesaReceiptNumber"`
	Phone             string          `json:"phone"`
	Amount            decimal.Decimal `json:"amount"`
	FailureReason     string          `json:"failureReason"`
}

// STKCallback is the legacy Daraja result body.
type STKCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// Receipt extracts the MpesaReceiptNumber metadata item, if present.
func (c *STKCallback) Receipt() string {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" && item.Value != nil {
			return fmt.Sprintf("%v", item.Value)
		}
	}
	return ""
}

// CallbackPayload is the parsed webhook, tagged by shape. Exactly one of
// Data and STK is set according to Kind.
type CallbackPayload struct {
	Kind  CallbackKind
	Event string
	Data  *EventData
	STK   *STKCallback
}

// IsPayout reports whether this is a disbursement notification, which
// the service acknowledges without touching payment state.
func (p *CallbackPayload) IsPayout() bool {
	return p.Kind == CallbackEvent && strings.HasPrefix(p.Event, "payout.")
}

type callbackEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Body  struct {
		STKCallback json.RawMessage `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallbackPayload decodes a webhook body into one of the recognized
// shapes. Unrecognized shapes are an error: a notification whose meaning
// is unknown must not be acknowledged as handled.
func ParseCallbackPayload(body []byte) (*CallbackPayload, *errors.AppError) {
	var envelope callbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewValidationError("malformed callback payload", errors.ErrCodeInvalidCallback)
	}

	if len(envelope.Body.STKCallback) > 0 {
		var stk STKCallback
		if err := json.Unmarshal(envelope.Body.STKCallback, &stk); err != nil {
			return nil, errors.NewValidationError("malformed stkCallback body", errors.ErrCodeInvalidCallback)
		}
		if stk.CheckoutRequestID == "" {
			return nil, errors.NewValidationError("stkCallback missing CheckoutRequestID", errors.ErrCodeInvalidCallback)
		}
		return &CallbackPayload{Kind: CallbackSTK, STK: &stk}, nil
	}

	if envelope.Event != "" {
		payload := &CallbackPayload{Kind: CallbackEvent, Event: envelope.Event}
		if len(envelope.Data) > 0 {
			var data EventData
			if err := json.Unmarshal(envelope.Data, &data); err != nil {
				return nil, errors.NewValidationError("malformed callback data", errors.ErrCodeInvalidCallback)
			}
			payload.Data = &data
		}
		if !payload.IsPayout() && payload.Data == nil {
			return nil, errors.NewValidationError("callback missing data object", errors.ErrCodeInvalidCallback)
		}
		return payload, nil
	}

	return nil, errors.NewValidationError("unrecognized callback shape", errors.ErrCodeInvalidCallback)
}

// MapExternalStatus translates a provider status word into the internal
// lifecycle status. Unknown words map to empty: the payment stays put.
func MapExternalStatus(external string) string {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case gateway.ExternalStatusSuccess, gateway.ExternalStatusCompleted:
		return "completed"
	case gateway.ExternalStatusFailed, gateway.ExternalStatusCancelled:
		return "failed"
	default:
		return ""
	}
}

// MapEventStatus derives the outcome from the event name for payloads
// that carry no status field in the data object.
func MapEventStatus(event string) string {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "payment.success", "transaction.success":
		return "completed"
	case "payment.failed", "transaction.failed":
		return "failed"
	default:
		return ""
	}
}

type ListResponse struct {
	Success  bool                  `json:"success"`
	Count    int                   `json:"count"`
	Payments []PaymentSummaryEntry `json:"payments"`
}

type PaymentSummaryEntry struct {
	ID                int64           `json:"id"`
	PhoneNumber       string          `json:"phone_number"`
	Amount            decimal.Decimal `json:"amount"`
	BundleName        string          `json:"bundle_name"`
	Status            string          `json:"status"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	TransactionID     string          `json:"transaction_id,omitempty"`
	ReceiptNumber     string          `json:"mpesa_receipt_number,omitempty"`
	CreatedAt         string          `json:"created_at"`
}
