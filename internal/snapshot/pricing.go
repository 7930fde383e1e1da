package snapshot

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// ProductPrice implements ports.PriceLookup over the tenant's active
// snapshot. Returns nil when the product id is not in the products
// category; a product present without a price comes back with Price nil,
// which is exactly what the price guardrail checks for.
func (s *Service) ProductPrice(ctx context.Context, tenantID, productID string) (*domain.Product, error) {
	active, err := s.store.Active(ctx, tenantID)
	if err != nil {
		if err == domain.ErrSnapshotNotFound {
			return nil, nil
		}
		return nil, err
	}

	for _, item := range active.Data.Products {
		if item.ID() != productID {
			continue
		}
		var product domain.Product
		if err := mapstructure.Decode(map[string]any(item), &product); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", productID, err)
		}
		return &product, nil
	}
	return nil, nil
}
