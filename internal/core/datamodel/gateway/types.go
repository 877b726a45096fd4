package gateway

// External status vocabulary as reported by the provider. Mapping into
// the internal lifecycle happens in the payment package; anything outside
// these values leaves a record unchanged.
const (
	ExternalStatusSuccess   = "success"
	ExternalStatusCompleted = "completed"
	ExternalStatusFailed    = "failed"
	ExternalStatusCancelled = "cancelled"
)

// STKPushResult is the provider's acknowledgement of a push-payment
// prompt. Either identifier may be absent depending on provider version.
type STKPushResult struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	TransactionID     string `json:"transactionId"`
}

// TransactionStatus is one entry from the provider's status query or
// transaction listing.
type TransactionStatus struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Receipt       string `json:"receipt,omitempty"`
}
