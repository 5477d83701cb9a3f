// Package api exposes the payment-gated service marketplace over HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentmesh/agentpay/pkg/catalog"
	"github.com/agentmesh/agentpay/pkg/ledger"
	"github.com/agentmesh/agentpay/pkg/x402"
)

// Server bundles the router's dependencies.
type Server struct {
	Gate    *x402.Gate
	Catalog catalog.Catalog
	Ledger  ledger.Store
}

// NewRouter builds the Gin engine with all routes registered.
func NewRouter(s *Server) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/api/services", s.listServices)
	r.GET("/api/services/:serviceId", s.handleService)
	r.POST("/api/services/:serviceId", s.handleService)
	r.GET("/api/receipts", s.listReceipts)

	return r
}

func (s *Server) listServices(c *gin.Context) {
	services, err := s.Catalog.ListServices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list services"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

// handleService is the gated resource endpoint. The gate owns the whole
// decision; this handler only adapts HTTP in and out.
func (s *Server) handleService(c *gin.Context) {
	serviceID := c.Param("serviceId")
	resource := "/api/services/" + serviceID

	payment := c.GetHeader(x402.HeaderPayment)
	if payment == "" {
		payment = c.GetHeader(x402.HeaderPaymentSignature)
	}

	outcome := s.Gate.Handle(c.Request.Context(), serviceID, resource, payment, requestInput(c))

	for key, value := range outcome.Headers {
		c.Header(key, value)
	}
	c.JSON(outcome.Status, outcome.Body)
}

func (s *Server) listReceipts(c *gin.Context) {
	receipts, err := s.Ledger.List(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list receipts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

// requestInput extracts the input field from a POST body, tolerating an
// absent or unparseable body the way the original endpoint did.
func requestInput(c *gin.Context) json.RawMessage {
	if c.Request.Method != http.MethodPost || c.Request.Body == nil {
		return nil
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || len(raw) == 0 {
		return nil
	}

	var body struct {
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body.Input
}
