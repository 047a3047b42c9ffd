package catalog

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"golang.org/x/sync/singleflight"
)

type ProductLookup interface {
	GetByID(ctx context.Context, productID string) (*domain.Product, error)
}

// Coalescing collapses concurrent lookups of the same product into a single
// catalog read. Nothing is kept once the read returns.
type Coalescing struct {
	next ProductLookup
	sfg  singleflight.Group
}

func NewCoalescing(next ProductLookup) *Coalescing {
	return &Coalescing{next: next}
}

func (c *Coalescing) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	v, err, _ := c.sfg.Do(productID, func() (interface{}, error) {
		return c.next.GetByID(ctx, productID)
	})
	if err != nil {
		return nil, err
	}

	product, ok := v.(*domain.Product)
	if !ok {
		return nil, fmt.Errorf("unexpected lookup result %T", v)
	}
	// callers may mutate their copy
	cp := *product
	return &cp, nil
}
