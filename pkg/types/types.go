package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// PaymentRequirements describes the payment a resource demands for one access.
// Amounts are always expressed as integer strings in the asset's smallest
// unit; no floating point crosses the wire.
type PaymentRequirements struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	MaxAmountRequired string         `json:"maxAmountRequired"`
	Resource          string         `json:"resource"`
	Description       string         `json:"description,omitempty"`
	MimeType          string         `json:"mimeType,omitempty"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds,omitempty"`
	Asset             string         `json:"asset"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// PaymentPayload is the decoded client-submitted payment proof.
// Signature is the opaque proof token; a payload with an empty signature is
// structurally well-formed but never valid. Input carries the service-call
// payload to forward to the resource handler.
type PaymentPayload struct {
	Scheme    string          `json:"scheme,omitempty"`
	Signature string          `json:"signature"`
	TxHash    string          `json:"txHash,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// VerifyResponse is the result of proof verification, either from the local
// stub or a facilitator's /verify endpoint.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// Receipt statuses.
const (
	ReceiptStatusCompleted = "completed"
	ReceiptStatusPending   = "pending"
)

// PaymentReceipt records a settled payment against one resource access.
// Status is "completed" when a transaction hash accompanied the proof and
// "pending" otherwise. Receipts are never mutated after creation.
type PaymentReceipt struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"serviceId"`
	Resource  string    `json:"resource"`
	Amount    string    `json:"amount"` // smallest unit, integer string
	Asset     string    `json:"asset"`
	Payer     string    `json:"payer,omitempty"`
	PayTo     string    `json:"payTo"`
	TxHash    string    `json:"txHash,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PaymentInfo is the payment block returned to the caller alongside the
// resource result. Amount here is the display price in major units.
type PaymentInfo struct {
	Amount json.Number `json:"amount"`
	Asset  string      `json:"asset"`
	TxHash string      `json:"txHash,omitempty"`
	Status string      `json:"status"`
}

// EncodeRequirementsToBase64 serializes an ordered list of payment
// requirements into the PAYMENT-REQUIRED header envelope: base64 of a JSON
// array. The list order is the server's preference order; clients take the
// first requirement they can satisfy.
func EncodeRequirementsToBase64(requirements []PaymentRequirements) (string, error) {
	jsonBytes, err := json.Marshal(requirements)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment requirements: %w", err)
	}
	return base64.StdEncoding.EncodeToString(jsonBytes), nil
}

// DecodeRequirementsFromBase64 reverses EncodeRequirementsToBase64.
func DecodeRequirementsFromBase64(encoded string) ([]PaymentRequirements, error) {
	decodedBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 string: %w", err)
	}

	var requirements []PaymentRequirements
	if err := json.Unmarshal(decodedBytes, &requirements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment requirements: %w", err)
	}
	return requirements, nil
}

// DecodePaymentPayloadFromBase64 decodes a base64 encoded header value into
// a PaymentPayload. It also returns the raw decoded bytes, which callers use
// to derive a replay key for the proof.
func DecodePaymentPayloadFromBase64(encoded string) (*PaymentPayload, []byte, error) {
	decodedBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode base64 string: %w", err)
	}

	var payload PaymentPayload
	if err := json.Unmarshal(decodedBytes, &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal payment payload: %w", err)
	}
	return &payload, decodedBytes, nil
}
