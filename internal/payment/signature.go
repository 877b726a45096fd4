package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/metrocheck/crb-service/internal"
)

// VerificationResult is the three-way outcome of webhook signature
// verification. Disabled means no secret is configured, which is a
// distinct state from a signature that failed to match.
type VerificationResult int

const (
	VerificationValid VerificationResult = iota
	VerificationInvalid
	VerificationDisabled
)

func (r VerificationResult) String() string {
	switch r {
	case VerificationValid:
		return "valid"
	case VerificationInvalid:
		return "invalid"
	case VerificationDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// SignatureVerifier checks webhook payloads against an HMAC-SHA256
// signature computed over the raw request body.
type SignatureVerifier struct {
	secret          string
	header          string
	allowUnverified bool
}

func NewSignatureVerifier(cfg internal.WebhookConfig) *SignatureVerifier {
	return &SignatureVerifier{
		secret:          cfg.Secret,
		header:          cfg.Header(),
		allowUnverified: cfg.AllowUnverified,
	}
}

// Header returns the HTTP header the signature is read from.
func (v *SignatureVerifier) Header() string {
	return v.header
}

// AllowsUnverified reports whether unverified callbacks may be accepted
// when verification is disabled. Both conditions must hold: no secret
// AND the explicit opt-in flag.
func (v *SignatureVerifier) AllowsUnverified() bool {
	return v.secret == "" && v.allowUnverified
}

// Verify computes the expected signature over body and compares it in
// constant time. A missing signature while a secret is configured is
// always invalid.
func (v *SignatureVerifier) Verify(body []byte, signature string) VerificationResult {
	if v.secret == "" {
		return VerificationDisabled
	}
	if signature == "" {
		return VerificationInvalid
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if hmac.Equal([]byte(expected), []byte(signature)) {
		return VerificationValid
	}
	return VerificationInvalid
}
