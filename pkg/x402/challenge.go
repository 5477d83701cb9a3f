package x402

import (
	"github.com/agentmesh/agentpay/pkg/types"
)

// Response headers carried on every 402.
const (
	// HeaderPaymentRequired carries the base64 JSON challenge envelope.
	HeaderPaymentRequired = "PAYMENT-REQUIRED"
	// Plain redundant hints for clients that don't parse the envelope.
	HeaderPrice   = "X-Price"
	HeaderAsset   = "X-Asset"
	HeaderNetwork = "X-Network"
)

// Request headers a client may submit the proof on.
const (
	HeaderPayment          = "X-PAYMENT"
	HeaderPaymentSignature = "PAYMENT-SIGNATURE" // legacy alias
)

// maxChallengeBytes bounds the encoded envelope so it stays a legal header
// value. Requirement fields are themselves bounded, so hitting this limit
// indicates misconfiguration.
const maxChallengeBytes = 8192

// EncodeChallenge wraps an ordered list of payment requirements into the
// PAYMENT-REQUIRED header value. First match wins on the decode side.
func EncodeChallenge(requirements []types.PaymentRequirements) (string, error) {
	encoded, err := types.EncodeRequirementsToBase64(requirements)
	if err != nil {
		return "", err
	}
	if len(encoded) > maxChallengeBytes {
		return "", ErrChallengeTooLong
	}
	return encoded, nil
}

// ChallengeHeaders assembles the full 402 header set: the encoded envelope
// plus the plain price/asset/network hints.
func ChallengeHeaders(cfg *Config, price, challenge string) map[string]string {
	return map[string]string{
		HeaderPaymentRequired: challenge,
		HeaderPrice:           price,
		HeaderAsset:           cfg.Asset,
		HeaderNetwork:         cfg.Network,
	}
}
