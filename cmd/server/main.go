package main

import (
	"log"
	"os"
	"time"

	"github.com/agentmesh/agentpay/pkg/api"
	"github.com/agentmesh/agentpay/pkg/catalog"
	"github.com/agentmesh/agentpay/pkg/facilitatorclient"
	"github.com/agentmesh/agentpay/pkg/idempotency"
	"github.com/agentmesh/agentpay/pkg/ledger"
	"github.com/agentmesh/agentpay/pkg/x402"
)

func main() {
	cfg := &x402.Config{
		Network:           envOr("AGENTPAY_NETWORK", "movement-testnet"),
		PayTo:             envOr("AGENTPAY_PAY_TO", "0x0000000000000000000000000000000000000000"),
		Asset:             envOr("AGENTPAY_ASSET", "MOVE"),
		AssetDecimals:     8,
		MaxTimeoutSeconds: x402.DefaultMaxTimeoutSeconds,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid payment configuration: %v", err)
	}

	cat := catalog.NewMemoryCatalog(catalog.DefaultServices()...)
	executor, err := catalog.NewDemoExecutor(100 * time.Millisecond)
	if err != nil {
		log.Fatalf("failed to build service executor: %v", err)
	}

	store, err := openLedger()
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}

	gate := &x402.Gate{
		Config:   cfg,
		Catalog:  cat,
		Executor: executor,
		Verifier: buildVerifier(),
		Ledger:   store,
		Proofs:   idempotency.NewMemoryStore(15 * time.Minute),
	}

	router := api.NewRouter(&api.Server{Gate: gate, Catalog: cat, Ledger: store})

	addr := envOr("AGENTPAY_ADDR", ":8080")
	log.Printf("agentpay listening on %s (network=%s asset=%s)", addr, cfg.Network, cfg.Asset)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// openLedger uses SQLite when AGENTPAY_LEDGER_DB points at a file, and falls
// back to the in-memory store otherwise.
func openLedger() (ledger.Store, error) {
	if path := os.Getenv("AGENTPAY_LEDGER_DB"); path != "" {
		return ledger.OpenSQLiteStore(path)
	}
	return ledger.NewMemoryStore(), nil
}

// buildVerifier uses the facilitator when FACILITATOR_URL is set and the
// signature-presence stub otherwise.
func buildVerifier() x402.ProofVerifier {
	if url := os.Getenv("FACILITATOR_URL"); url != "" {
		return &x402.FacilitatorVerifier{
			Client: facilitatorclient.NewClient(facilitatorclient.Config{URL: url}),
		}
	}
	return x402.StubVerifier{}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
