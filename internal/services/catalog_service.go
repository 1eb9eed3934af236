package services

import (
	"context"
	"errors"

	"github.com/digitalstore/api/internal/domain"
	"github.com/digitalstore/api/internal/repositories"
)

// CatalogService serves the public storefront catalog.
type CatalogService struct {
	products repositories.ProductRepository
}

// NewCatalogService constructs the service.
func NewCatalogService(products repositories.ProductRepository) (*CatalogService, error) {
	if products == nil {
		return nil, errors.New("services: product repository is required")
	}
	return &CatalogService{products: products}, nil
}

// ActiveProducts returns the purchasable catalog in display order.
func (s *CatalogService) ActiveProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.ListActive(ctx)
}
