// Package mcp exposes the paid service catalog as MCP tools. Payment rides
// in the request's _meta field instead of an HTTP header; the gating flow
// and state machine are the same Gate the HTTP API uses.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentmesh/agentpay/pkg/catalog"
	"github.com/agentmesh/agentpay/pkg/types"
	"github.com/agentmesh/agentpay/pkg/x402"
)

// Meta keys on MCP requests and results.
const (
	// PaymentMetaKey carries the client's payment proof: either the base64
	// header form or the decoded payload object.
	PaymentMetaKey = "x402/payment"
	// PaymentRequiredMetaKey carries the challenge on a denied call.
	PaymentRequiredMetaKey = "x402/payment-required"
	// PaymentResponseMetaKey carries the receipt block on a paid call.
	PaymentResponseMetaKey = "x402/payment-response"
)

// ExecuteArgs is the input for every service tool.
type ExecuteArgs struct {
	Input map[string]any `json:"input,omitempty" jsonschema:"service-call input payload forwarded to the service handler"`
}

// NewServer builds an MCP server with one paid tool per catalog service.
func NewServer(gate *x402.Gate, cat catalog.Catalog) (*sdk.Server, error) {
	server := sdk.NewServer(&sdk.Implementation{
		Name:    "agentpay",
		Version: "0.1.0",
	}, nil)

	services, err := cat.ListServices(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	for _, svc := range services {
		tool := &sdk.Tool{
			Name:        "execute_" + svc.ID,
			Description: fmt.Sprintf("%s (%s): %s. Costs %s %s per call.", svc.Name, svc.ID, svc.Description, svc.Price, gate.Config.Asset),
		}
		sdk.AddTool(server, tool, GatedToolHandler(gate, svc.ID))
	}

	return server, nil
}

// GatedToolHandler wraps one service behind the payment gate. The handler
// never returns a Go error for payment problems; those surface as IsError
// results with structured meta, matching how HTTP clients get 402 bodies.
func GatedToolHandler(gate *x402.Gate, serviceID string) func(context.Context, *sdk.CallToolRequest, ExecuteArgs) (*sdk.CallToolResult, map[string]any, error) {
	return func(ctx context.Context, req *sdk.CallToolRequest, args ExecuteArgs) (*sdk.CallToolResult, map[string]any, error) {
		var input json.RawMessage
		if args.Input != nil {
			raw, err := json.Marshal(args.Input)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to encode input: %w", err)
			}
			input = raw
		}

		header := paymentHeaderFromMeta(req.Params.Meta)
		resource := "mcp://tools/execute_" + serviceID

		outcome := gate.Handle(ctx, serviceID, resource, header, input)
		if outcome.Status != http.StatusOK {
			return errorResult(outcome), nil, nil
		}

		body, ok := outcome.Body.(x402.SuccessBody)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected gate response type %T", outcome.Body)
		}

		resultMap, _ := body.Result.(map[string]any)
		resultJSON, err := json.Marshal(body.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode result: %w", err)
		}

		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: string(resultJSON)}},
			Meta:    sdk.Meta{PaymentResponseMetaKey: body.Payment},
		}, resultMap, nil
	}
}

// paymentHeaderFromMeta normalizes the _meta payment value to the base64
// header form the gate decodes. Strings pass through; objects are
// re-encoded.
func paymentHeaderFromMeta(meta sdk.Meta) string {
	if meta == nil {
		return ""
	}
	value, ok := meta[PaymentMetaKey]
	if !ok {
		return ""
	}

	switch p := value.(type) {
	case string:
		return p
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return base64.StdEncoding.EncodeToString(raw)
	}
}

// errorResult converts a deny/reject/failure outcome into an MCP error
// result. Denied calls attach the requirements so an agent can pay and
// retry without a second discovery step.
func errorResult(outcome *x402.Outcome) *sdk.CallToolResult {
	bodyJSON, _ := json.Marshal(outcome.Body)

	result := &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: string(bodyJSON)}},
	}

	if encoded, ok := outcome.Headers[x402.HeaderPaymentRequired]; ok {
		if requirements, err := types.DecodeRequirementsFromBase64(encoded); err == nil {
			result.Meta = sdk.Meta{PaymentRequiredMetaKey: map[string]any{
				"error":   "Payment required to access this tool",
				"accepts": requirements,
			}}
		}
	}
	return result
}
