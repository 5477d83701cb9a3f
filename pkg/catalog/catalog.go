package catalog

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a service id is not in the catalog.
var ErrNotFound = errors.New("catalog: service not found")

// ServiceDescriptor is the static configuration of one purchasable service.
// Price is a decimal string in the asset's major unit (e.g. "0.01"); the
// payment layer converts it to smallest units, so it must stay a string to
// avoid float drift.
type ServiceDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// Catalog looks up purchasable services. Read-only from the payment gate's
// point of view.
type Catalog interface {
	GetService(ctx context.Context, id string) (*ServiceDescriptor, error)
	ListServices(ctx context.Context) ([]ServiceDescriptor, error)
}

// MemoryCatalog is an in-memory Catalog keyed by service id.
type MemoryCatalog struct {
	mu       sync.RWMutex
	services map[string]ServiceDescriptor
	order    []string
}

// NewMemoryCatalog creates a catalog seeded with the given services.
func NewMemoryCatalog(services ...ServiceDescriptor) *MemoryCatalog {
	c := &MemoryCatalog{services: make(map[string]ServiceDescriptor)}
	for _, svc := range services {
		c.services[svc.ID] = svc
		c.order = append(c.order, svc.ID)
	}
	return c
}

// DefaultServices returns the demo service catalog.
func DefaultServices() []ServiceDescriptor {
	return []ServiceDescriptor{
		{ID: "svc-001", Name: "GPT-4 Text Generation", Price: "0.01", Description: "AI text generation"},
		{ID: "svc-002", Name: "Image Generation (SDXL)", Price: "0.05", Description: "AI image generation"},
		{ID: "svc-003", Name: "Real-time Translation", Price: "0.002", Description: "Multi-language translation"},
	}
}

func (c *MemoryCatalog) GetService(_ context.Context, id string) (*ServiceDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	svc, ok := c.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &svc, nil
}

func (c *MemoryCatalog) ListServices(_ context.Context) ([]ServiceDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ServiceDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.services[id])
	}
	return out, nil
}

var _ Catalog = (*MemoryCatalog)(nil)
