package x402

import (
	"context"
	"time"

	"github.com/agentmesh/agentpay/pkg/facilitatorclient"
	"github.com/agentmesh/agentpay/pkg/types"
)

// ProofVerifier decides whether a structurally valid proof actually
// authorizes the required payment. A production implementation checks the
// signature covers exactly maxAmountRequired of asset on network to payTo
// and is fresh; this demo ships a stub. The contract either way: a single
// pass/fail result per request, never partially trusted.
type ProofVerifier interface {
	Verify(ctx context.Context, payload *types.PaymentPayload, requirements *types.PaymentRequirements) (*types.VerifyResponse, error)
}

// StubVerifier accepts any proof carrying a non-empty signature. It stands in
// for a facilitator so the gate's state machine can be exercised end to end
// without a chain.
type StubVerifier struct{}

func (StubVerifier) Verify(_ context.Context, payload *types.PaymentPayload, _ *types.PaymentRequirements) (*types.VerifyResponse, error) {
	if payload.Signature == "" {
		return &types.VerifyResponse{IsValid: false, InvalidReason: "missing signature"}, nil
	}
	return &types.VerifyResponse{IsValid: true}, nil
}

// FacilitatorVerifier verifies proofs against an external facilitator with a
// bounded timeout. Transport failures and timeouts map to an invalid result
// rather than an error so the gate rejects instead of hanging or 500ing.
type FacilitatorVerifier struct {
	Client *facilitatorclient.Client
}

func (v *FacilitatorVerifier) Verify(ctx context.Context, payload *types.PaymentPayload, requirements *types.PaymentRequirements) (*types.VerifyResponse, error) {
	timeout := time.Duration(requirements.MaxTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultMaxTimeoutSeconds * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := v.Client.Verify(ctx, payload, requirements)
	if err != nil {
		return &types.VerifyResponse{IsValid: false, InvalidReason: "facilitator verification failed: " + err.Error()}, nil
	}
	return resp, nil
}

var (
	_ ProofVerifier = StubVerifier{}
	_ ProofVerifier = (*FacilitatorVerifier)(nil)
)
