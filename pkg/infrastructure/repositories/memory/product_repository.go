package memory

import (
	"fmt"
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
	"github.com/vsinha/stockalloc/pkg/domain/repositories"
)

// ProductRepository provides in-memory product snapshot storage
type ProductRepository struct {
	products map[entities.ProductID]*entities.Product
}

// NewProductRepository creates a new in-memory product repository
func NewProductRepository(expectedProducts int) *ProductRepository {
	return &ProductRepository{
		products: make(map[entities.ProductID]*entities.Product, expectedProducts),
	}
}

// Verify interface compliance
var _ repositories.ProductRepository = (*ProductRepository)(nil)

// LoadProducts loads products into the repository
func (r *ProductRepository) LoadProducts(products []*entities.Product) error {
	for _, product := range products {
		if err := r.SaveProduct(product); err != nil {
			return err
		}
	}
	return nil
}

// SaveProduct adds a product; ids must be unique
func (r *ProductRepository) SaveProduct(product *entities.Product) error {
	if product == nil {
		return fmt.Errorf("product cannot be nil")
	}
	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("duplicate product id: %s", product.ID)
	}
	r.products[product.ID] = product
	return nil
}

// GetProduct returns a product by id
func (r *ProductRepository) GetProduct(id entities.ProductID) (*entities.Product, error) {
	product, exists := r.products[id]
	if !exists {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	return product, nil
}

// GetAllProducts returns all products ordered by id
func (r *ProductRepository) GetAllProducts() ([]*entities.Product, error) {
	products := make([]*entities.Product, 0, len(r.products))
	for _, product := range r.products {
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].ID < products[j].ID
	})
	return products, nil
}
