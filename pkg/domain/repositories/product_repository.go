package repositories

import "github.com/vsinha/stockalloc/pkg/domain/entities"

// ProductRepository provides access to the per-run product snapshot
type ProductRepository interface {
	GetProduct(id entities.ProductID) (*entities.Product, error)
	// GetAllProducts returns products ordered by id
	GetAllProducts() ([]*entities.Product, error)
	LoadProducts(products []*entities.Product) error
}
