package x402

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/agentpay/pkg/catalog"
	"github.com/agentmesh/agentpay/pkg/idempotency"
	"github.com/agentmesh/agentpay/pkg/ledger"
	"github.com/agentmesh/agentpay/pkg/types"
)

// countingExecutor records invocations and returns a fixed result or error.
type countingExecutor struct {
	calls  atomic.Int64
	result any
	err    error
}

func (e *countingExecutor) Execute(_ context.Context, _ string, _ json.RawMessage) (any, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func newTestGate(executor catalog.Executor) (*Gate, *ledger.MemoryStore) {
	store := ledger.NewMemoryStore()
	gate := &Gate{
		Config:   testConfig(),
		Catalog:  catalog.NewMemoryCatalog(catalog.DefaultServices()...),
		Executor: executor,
		Verifier: StubVerifier{},
		Ledger:   store,
		Proofs:   idempotency.NewMemoryStore(time.Minute),
	}
	return gate, store
}

func proofHeader(signature string, extra string) string {
	raw := fmt.Sprintf(`{"signature":%q%s}`, signature, extra)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestGateUnknownService(t *testing.T) {
	executor := &countingExecutor{}
	gate, _ := newTestGate(executor)

	// proof header presence must not matter for an unknown id
	for _, header := range []string{"", proofHeader("sig123", "")} {
		outcome := gate.Handle(context.Background(), "svc-999", "/api/services/svc-999", header, nil)
		assert.Equal(t, http.StatusNotFound, outcome.Status)
	}
	assert.EqualValues(t, 0, executor.calls.Load())
}

func TestGateDeniesWithoutProof(t *testing.T) {
	executor := &countingExecutor{result: map[string]any{"type": "text"}}
	gate, store := newTestGate(executor)

	outcome := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", "", nil)

	require.Equal(t, http.StatusPaymentRequired, outcome.Status)
	assert.EqualValues(t, 0, executor.calls.Load(), "handler must not run on deny")

	body, ok := outcome.Body.(ChallengeBody)
	require.True(t, ok, "deny body should be a ChallengeBody")
	assert.Equal(t, "Payment Required", body.Error)
	assert.Contains(t, body.Message, "0.01")
	assert.Equal(t, "svc-001", body.Service.ID)

	challenge := outcome.Headers[HeaderPaymentRequired]
	require.NotEmpty(t, challenge)
	requirements, err := types.DecodeRequirementsFromBase64(challenge)
	require.NoError(t, err)
	require.Len(t, requirements, 1)
	assert.Equal(t, "1000000", requirements[0].MaxAmountRequired)

	assert.Equal(t, "0.01", outcome.Headers[HeaderPrice])
	assert.Equal(t, "MOVE", outcome.Headers[HeaderAsset])
	assert.Equal(t, "movement-testnet", outcome.Headers[HeaderNetwork])

	receipts, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, receipts, "deny must not settle")
}

func TestGateRejectsMalformedProof(t *testing.T) {
	executor := &countingExecutor{}
	gate, _ := newTestGate(executor)

	outcome := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", "*** garbage ***", nil)
	assert.Equal(t, http.StatusBadRequest, outcome.Status)
	assert.EqualValues(t, 0, executor.calls.Load())
}

func TestGateRejectsEmptySignature(t *testing.T) {
	executor := &countingExecutor{}
	gate, _ := newTestGate(executor)

	for _, raw := range []string{`{"signature":""}`, `{"input":{"prompt":"hi"}}`} {
		header := base64.StdEncoding.EncodeToString([]byte(raw))
		outcome := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", header, nil)
		assert.Equal(t, http.StatusPaymentRequired, outcome.Status)
	}
	assert.EqualValues(t, 0, executor.calls.Load())
}

func TestGateAdmitsValidProof(t *testing.T) {
	executor := &countingExecutor{result: map[string]any{"type": "text", "content": "ok"}}
	gate, store := newTestGate(executor)

	header := proofHeader("sig123", `,"txHash":"0xfeed","input":{"prompt":"hi"}`)
	outcome := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", header, nil)

	require.Equal(t, http.StatusOK, outcome.Status)
	assert.EqualValues(t, 1, executor.calls.Load())

	body, ok := outcome.Body.(SuccessBody)
	require.True(t, ok)
	assert.True(t, body.Success)
	assert.Equal(t, executor.result, body.Result)
	assert.Equal(t, json.Number("0.01"), body.Payment.Amount)
	assert.Equal(t, "MOVE", body.Payment.Asset)
	assert.Equal(t, "0xfeed", body.Payment.TxHash)
	assert.Equal(t, types.ReceiptStatusCompleted, body.Payment.Status)

	require.NotNil(t, outcome.Receipt)
	assert.Equal(t, "1000000", outcome.Receipt.Amount)
	assert.Equal(t, "svc-001", outcome.Receipt.ServiceID)

	receipts, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, outcome.Receipt.ID, receipts[0].ID)
}

func TestGatePendingWithoutTxHash(t *testing.T) {
	executor := &countingExecutor{result: map[string]any{"type": "text"}}
	gate, _ := newTestGate(executor)

	outcome := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", proofHeader("sig123", ""), nil)

	require.Equal(t, http.StatusOK, outcome.Status)
	body := outcome.Body.(SuccessBody)
	assert.Equal(t, types.ReceiptStatusPending, body.Payment.Status)
	assert.Empty(t, body.Payment.TxHash)
}

func TestGateHandlerFailure(t *testing.T) {
	executor := &countingExecutor{err: errors.New("upstream model unavailable")}
	gate, store := newTestGate(executor)

	header := proofHeader("sig123", "")
	outcome := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", header, nil)

	require.Equal(t, http.StatusInternalServerError, outcome.Status)
	assert.Equal(t, ErrorBody{Error: "Service execution failed"}, outcome.Body)
	assert.Nil(t, outcome.Receipt)

	receipts, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, receipts, "handler failure must not mint a receipt")

	// the proof mark was released, so the same proof may retry
	executor.err = nil
	executor.result = map[string]any{"type": "text"}
	retry := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", header, nil)
	assert.Equal(t, http.StatusOK, retry.Status)
}

func TestGateRejectsReplayedProof(t *testing.T) {
	executor := &countingExecutor{result: map[string]any{"type": "text"}}
	gate, _ := newTestGate(executor)

	header := proofHeader("sig-replay", "")
	first := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", header, nil)
	require.Equal(t, http.StatusOK, first.Status)

	second := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", header, nil)
	assert.Equal(t, http.StatusPaymentRequired, second.Status)
	assert.EqualValues(t, 1, executor.calls.Load(), "replayed proof must not re-run the handler")
}

// Two concurrent requests with independent proofs must both admit; the gate
// does not serialize unrelated requests.
func TestGateConcurrentIndependentProofs(t *testing.T) {
	executor := &countingExecutor{result: map[string]any{"type": "text"}}
	gate, _ := newTestGate(executor)

	var wg sync.WaitGroup
	statuses := make([]int, 2)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			header := proofHeader(fmt.Sprintf("sig-%d", i), "")
			outcome := gate.Handle(context.Background(), "svc-001", "/api/services/svc-001", header, nil)
			statuses[i] = outcome.Status
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, statuses)
	assert.EqualValues(t, 2, executor.calls.Load())
}

// A cancelled caller context must not cancel the handler after admission.
func TestGateDetachesContextAfterAdmission(t *testing.T) {
	ran := make(chan struct{}, 1)
	executor := executorFunc(func(ctx context.Context, _ string, _ json.RawMessage) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			ran <- struct{}{}
			return map[string]any{"type": "text"}, nil
		}
	})
	gate, _ := newTestGate(executor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := gate.Handle(ctx, "svc-001", "/api/services/svc-001", proofHeader("sig123", ""), nil)
	require.Equal(t, http.StatusOK, outcome.Status)
	select {
	case <-ran:
	default:
		t.Fatal("handler did not run")
	}
}

type executorFunc func(ctx context.Context, serviceID string, input json.RawMessage) (any, error)

func (f executorFunc) Execute(ctx context.Context, serviceID string, input json.RawMessage) (any, error) {
	return f(ctx, serviceID, input)
}
