package x402

import "errors"

// Configuration errors, fatal at startup.
var (
	ErrInvalidPrice     = errors.New("x402: price must be a non-negative decimal")
	ErrMissingPayTo     = errors.New("x402: payTo recipient is required")
	ErrInvalidPayTo     = errors.New("x402: payTo is not a well-formed address")
	ErrMissingNetwork   = errors.New("x402: network is required")
	ErrMissingAsset     = errors.New("x402: asset is required")
	ErrInvalidDecimals  = errors.New("x402: asset decimals must be positive")
	ErrChallengeTooLong = errors.New("x402: encoded payment challenge exceeds header capacity")
)

// Per-request protocol errors. The gate maps these onto HTTP statuses; they
// never escape the gate's boundary.
var (
	// ErrNoPayment means the payment header was absent or empty. This is the
	// expected first-contact state, not a fault.
	ErrNoPayment = errors.New("x402: no payment provided")
	// ErrMalformedPayment means the header was present but could not be
	// decoded into a structured proof (client-side encoding bug).
	ErrMalformedPayment = errors.New("x402: malformed payment payload")
	// ErrInvalidPayment means the proof decoded but failed validation; the
	// client can retry with a correct proof.
	ErrInvalidPayment = errors.New("x402: invalid payment")
)
