package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartprice/internal/domain"
)

type Catalog struct {
	mu       sync.RWMutex
	products map[uuid.UUID]domain.Product
}

func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{products: map[uuid.UUID]domain.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *Catalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) Delete(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *Catalog) GetProduct(_ context.Context, id uuid.UUID) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.NewNotFound("product", id.String())
	}
	return p, nil
}
