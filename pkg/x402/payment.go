package x402

import (
	"fmt"
	"regexp"

	"github.com/agentmesh/agentpay/pkg/types"
)

// base64Regex rejects header values with characters base64 never produces
// before attempting a real decode.
var base64Regex = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// DecodePayment turns a raw payment header value into a structured proof.
//
// An absent or empty header is ErrNoPayment: the expected first-contact
// state, answered with a 402 challenge. A present header that cannot be
// decoded is ErrMalformedPayment: a client-side encoding bug, answered with
// a 400. The raw decoded bytes are returned for replay-key derivation.
func DecodePayment(header string) (*types.PaymentPayload, []byte, error) {
	if header == "" {
		return nil, nil, ErrNoPayment
	}
	if !base64Regex.MatchString(header) {
		return nil, nil, fmt.Errorf("%w: not valid base64", ErrMalformedPayment)
	}

	payload, raw, err := types.DecodePaymentPayloadFromBase64(header)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}
	return payload, raw, nil
}

// ValidatePayment checks the decoded proof against the requirements in force.
// Validation is a single pass/fail gate evaluated once per request; a proof
// that fails here is terminal for the request.
func ValidatePayment(payload *types.PaymentPayload, requirements *types.PaymentRequirements) error {
	if payload.Scheme != "" && payload.Scheme != requirements.Scheme {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidPayment, payload.Scheme)
	}
	if payload.Signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidPayment)
	}
	return nil
}
