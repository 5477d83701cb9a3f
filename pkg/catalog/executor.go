package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Executor runs the underlying resource handler for a service. Implementations
// must invoke the handler at most once per call; the payment gate relies on
// that to keep admission and execution one-to-one.
type Executor interface {
	Execute(ctx context.Context, serviceID string, input json.RawMessage) (any, error)
}

// inputSchemas constrains the shape of the caller-supplied input per service.
// Inputs are validated before execution; payloads carrying wrong types are
// rejected rather than best-effort coerced.
var inputSchemas = map[string]string{
	"svc-001": `{
		"type": "object",
		"properties": {"prompt": {"type": "string"}},
		"additionalProperties": true
	}`,
	"svc-002": `{
		"type": "object",
		"properties": {"prompt": {"type": "string"}},
		"additionalProperties": true
	}`,
	"svc-003": `{
		"type": "object",
		"properties": {
			"text": {"type": "string"},
			"targetLang": {"type": "string"}
		},
		"additionalProperties": true
	}`,
}

// DemoExecutor produces mock outputs for the demo services. Latency simulates
// upstream model processing time; leave it zero in tests.
type DemoExecutor struct {
	Latency time.Duration

	schemas map[string]*gojsonschema.Schema
}

// NewDemoExecutor compiles the per-service input schemas up front so schema
// errors surface at startup rather than on the first paid request.
func NewDemoExecutor(latency time.Duration) (*DemoExecutor, error) {
	schemas := make(map[string]*gojsonschema.Schema, len(inputSchemas))
	for id, raw := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid input schema for %s: %w", id, err)
		}
		schemas[id] = schema
	}
	return &DemoExecutor{Latency: latency, schemas: schemas}, nil
}

func (e *DemoExecutor) Execute(ctx context.Context, serviceID string, input json.RawMessage) (any, error) {
	args, err := e.decodeInput(serviceID, input)
	if err != nil {
		return nil, err
	}

	if e.Latency > 0 {
		select {
		case <-time.After(e.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch serviceID {
	case "svc-001":
		prompt := stringArg(args, "prompt", "default")
		return map[string]any{
			"type":    "text",
			"content": fmt.Sprintf("Generated text for prompt: %q", prompt),
			"tokens":  150,
			"model":   "gpt-4",
		}, nil
	case "svc-002":
		return map[string]any{
			"type":       "image",
			"url":        "https://placeholder.co/512x512?text=Generated+Image",
			"dimensions": map[string]int{"width": 512, "height": 512},
			"model":      "sdxl",
		}, nil
	case "svc-003":
		return map[string]any{
			"type":       "translation",
			"original":   stringArg(args, "text", "Hello"),
			"translated": "Hola",
			"sourceLang": "en",
			"targetLang": stringArg(args, "targetLang", "es"),
		}, nil
	default:
		return map[string]any{"message": "Service executed successfully"}, nil
	}
}

// decodeInput validates the raw input against the service's schema and
// unmarshals it. Empty input is treated as an empty argument map.
func (e *DemoExecutor) decodeInput(serviceID string, input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return map[string]any{}, nil
	}

	if schema, ok := e.schemas[serviceID]; ok {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(input))
		if err != nil {
			return nil, fmt.Errorf("input is not valid JSON: %w", err)
		}
		if !result.Valid() {
			return nil, fmt.Errorf("input rejected by schema: %s", result.Errors()[0])
		}
	}

	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	return args, nil
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

var _ Executor = (*DemoExecutor)(nil)
