package x402

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/agentpay/pkg/catalog"
	"github.com/agentmesh/agentpay/pkg/idempotency"
	"github.com/agentmesh/agentpay/pkg/ledger"
	"github.com/agentmesh/agentpay/pkg/types"
)

// Gate is the per-request decision engine for payment-gated resources. Each
// request independently walks quote -> deny/reject/admit; no state carries
// across requests except the consumed-proof marks and the receipt ledger.
//
// The gate never returns an error: every path, including handler failure,
// terminates in a well-formed Outcome.
type Gate struct {
	Config   *Config
	Catalog  catalog.Catalog
	Executor catalog.Executor
	Verifier ProofVerifier
	Ledger   ledger.Store
	Proofs   idempotency.ProofStore
}

// Outcome is the transport-independent result of one gated request.
type Outcome struct {
	Status  int
	Headers map[string]string
	Body    any
	// Receipt is set on the success path only; handler failure after
	// admission produces no receipt.
	Receipt *types.PaymentReceipt
}

// ServiceInfo is the service block embedded in 402 bodies.
type ServiceInfo struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

// ChallengeBody is the JSON body of a 402 response. Message is human
// readable; automated clients use the PAYMENT-REQUIRED header envelope.
type ChallengeBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Service ServiceInfo `json:"service"`
}

// SuccessBody is the JSON body of a 200 response: the handler's result plus
// the payment receipt block.
type SuccessBody struct {
	Success bool              `json:"success"`
	Result  any               `json:"result"`
	Payment types.PaymentInfo `json:"payment"`
}

// ErrorBody is the JSON body of 4xx/5xx error responses.
type ErrorBody struct {
	Error string `json:"error"`
}

// Handle runs the full gating flow for one request to serviceID at resource.
// paymentHeader is the raw proof header value ("" when absent). requestInput
// is the transport-level input payload (e.g. a POST body's input field); the
// proof's own input takes precedence when both are present.
func (g *Gate) Handle(ctx context.Context, serviceID, resource, paymentHeader string, requestInput json.RawMessage) *Outcome {
	svc, err := g.Catalog.GetService(ctx, serviceID)
	if err != nil {
		return &Outcome{
			Status: http.StatusNotFound,
			Body:   ErrorBody{Error: "Service not found"},
		}
	}

	requirements, err := BuildRequirements(g.Config, svc, resource)
	if err != nil {
		// Startup validation should make this unreachable; a bad catalog
		// price is an operator fault, not a client one.
		log.Printf("x402: failed to build payment requirements for %s: %v", serviceID, err)
		return &Outcome{
			Status: http.StatusInternalServerError,
			Body:   ErrorBody{Error: "Service misconfigured"},
		}
	}

	payload, rawProof, err := DecodePayment(paymentHeader)
	switch {
	case errors.Is(err, ErrNoPayment):
		return g.deny(svc, requirements)
	case errors.Is(err, ErrMalformedPayment):
		return &Outcome{
			Status: http.StatusBadRequest,
			Body:   ErrorBody{Error: "Payment processing failed"},
		}
	case err != nil:
		return &Outcome{
			Status: http.StatusBadRequest,
			Body:   ErrorBody{Error: "Payment processing failed"},
		}
	}

	if err := ValidatePayment(payload, requirements); err != nil {
		return g.reject(svc, requirements, "Invalid payment signature")
	}

	verification, err := g.Verifier.Verify(ctx, payload, requirements)
	if err != nil || !verification.IsValid {
		reason := "Invalid payment signature"
		if verification != nil && verification.InvalidReason != "" {
			reason = verification.InvalidReason
		}
		return g.reject(svc, requirements, reason)
	}

	// Admission is keyed on the proof itself: exactly one request per proof
	// passes this point.
	proofKey := idempotency.ProofKey(rawProof)
	if !g.Proofs.CheckAndMark(proofKey) {
		return g.reject(svc, requirements, "Payment proof already used")
	}

	input := payload.Input
	if len(input) == 0 {
		input = requestInput
	}

	// Payment is admitted; a caller disconnect must not cancel the handler
	// mid-flight, or we charge without delivering.
	execCtx := context.WithoutCancel(ctx)
	result, err := g.Executor.Execute(execCtx, svc.ID, input)
	if err != nil {
		// No receipt for a failed execution; the proof mark is released so
		// the client may retry with the same proof.
		g.Proofs.Release(proofKey)
		log.Printf("x402: service execution failed for %s: %v", serviceID, err)
		return &Outcome{
			Status: http.StatusInternalServerError,
			Body:   ErrorBody{Error: "Service execution failed"},
		}
	}

	receipt := g.settle(execCtx, svc, requirements, payload, verification)

	return &Outcome{
		Status: http.StatusOK,
		Body: SuccessBody{
			Success: true,
			Result:  result,
			Payment: types.PaymentInfo{
				Amount: json.Number(svc.Price),
				Asset:  g.Config.Asset,
				TxHash: payload.TxHash,
				Status: receipt.Status,
			},
		},
		Receipt: receipt,
	}
}

// deny is the no-proof 402: the challenge envelope plus plain hints, and a
// body simple clients can show to a human. The resource handler has not run.
func (g *Gate) deny(svc *catalog.ServiceDescriptor, requirements *types.PaymentRequirements) *Outcome {
	challenge, err := EncodeChallenge([]types.PaymentRequirements{*requirements})
	if err != nil {
		log.Printf("x402: failed to encode payment challenge: %v", err)
		return &Outcome{
			Status: http.StatusInternalServerError,
			Body:   ErrorBody{Error: "Service misconfigured"},
		}
	}

	return &Outcome{
		Status:  http.StatusPaymentRequired,
		Headers: ChallengeHeaders(g.Config, svc.Price, challenge),
		Body: ChallengeBody{
			Error:   "Payment Required",
			Message: fmt.Sprintf("This service costs %s %s per request", svc.Price, g.Config.Asset),
			Service: ServiceInfo{ID: svc.ID, Name: svc.Name, Price: json.Number(svc.Price)},
		},
	}
}

// reject is the proof-present-but-not-valid 402. It carries the same
// challenge headers as deny so an automated client can construct a correct
// retry without another round trip.
func (g *Gate) reject(svc *catalog.ServiceDescriptor, requirements *types.PaymentRequirements, reason string) *Outcome {
	headers := map[string]string{}
	if challenge, err := EncodeChallenge([]types.PaymentRequirements{*requirements}); err == nil {
		headers = ChallengeHeaders(g.Config, svc.Price, challenge)
	}

	return &Outcome{
		Status:  http.StatusPaymentRequired,
		Headers: headers,
		Body:    ErrorBody{Error: reason},
	}
}

// settle produces the receipt for an admitted, successfully handled request
// and appends it to the ledger. Receipt creation is held until after handler
// success; a 500 never mints a receipt.
func (g *Gate) settle(ctx context.Context, svc *catalog.ServiceDescriptor, requirements *types.PaymentRequirements, payload *types.PaymentPayload, verification *types.VerifyResponse) *types.PaymentReceipt {
	status := types.ReceiptStatusPending
	if payload.TxHash != "" {
		status = types.ReceiptStatusCompleted
	}

	receipt := &types.PaymentReceipt{
		ID:        uuid.NewString(),
		ServiceID: svc.ID,
		Resource:  requirements.Resource,
		Amount:    requirements.MaxAmountRequired,
		Asset:     requirements.Asset,
		Payer:     verification.Payer,
		PayTo:     requirements.PayTo,
		TxHash:    payload.TxHash,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	if err := g.Ledger.Record(ctx, receipt); err != nil {
		// The handler already ran; surfacing a 500 here would deliver
		// without charging. Log and return the receipt to the caller.
		log.Printf("x402: failed to record receipt %s: %v", receipt.ID, err)
	}
	return receipt
}
