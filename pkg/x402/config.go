package x402

import (
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMaxTimeoutSeconds is the window within which a payment proof must
// arrive after requirements are issued.
const DefaultMaxTimeoutSeconds = 300

// Config holds the static payment terms shared by every gated resource.
// Validated once at startup; invalid config is fatal, not a per-request error.
type Config struct {
	// Network is the chain identifier payments settle on.
	Network string
	// PayTo is the payee address on Network.
	PayTo string
	// Asset is the currency symbol (e.g. "MOVE").
	Asset string
	// AssetDecimals is the smallest-unit scale; 8 means 1 major unit = 1e8.
	AssetDecimals int
	// MaxTimeoutSeconds bounds proof validity. Zero means the default.
	MaxTimeoutSeconds int
}

// Validate checks the static configuration. The payTo check expects a hex
// account address, which covers the EVM-style networks this demo targets.
func (c *Config) Validate() error {
	if c.Network == "" {
		return ErrMissingNetwork
	}
	if c.Asset == "" {
		return ErrMissingAsset
	}
	if c.AssetDecimals <= 0 {
		return ErrInvalidDecimals
	}
	if c.PayTo == "" {
		return ErrMissingPayTo
	}
	if !common.IsHexAddress(c.PayTo) {
		return ErrInvalidPayTo
	}
	return nil
}

// GetMaxTimeoutSeconds returns the configured timeout, defaulting when unset.
func (c *Config) GetMaxTimeoutSeconds() int {
	if c.MaxTimeoutSeconds <= 0 {
		return DefaultMaxTimeoutSeconds
	}
	return c.MaxTimeoutSeconds
}
