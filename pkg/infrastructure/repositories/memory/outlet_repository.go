package memory

import (
	"fmt"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
	"github.com/vsinha/stockalloc/pkg/domain/repositories"
)

// OutletRepository provides in-memory outlet roster storage
type OutletRepository struct {
	outlets    []entities.Outlet
	outletsMap map[entities.OutletID]int
}

// NewOutletRepository creates a new in-memory outlet repository
func NewOutletRepository(expectedOutlets int) *OutletRepository {
	return &OutletRepository{
		outlets:    make([]entities.Outlet, 0, expectedOutlets),
		outletsMap: make(map[entities.OutletID]int, expectedOutlets),
	}
}

// Verify interface compliance
var _ repositories.OutletRepository = (*OutletRepository)(nil)

// LoadOutlets loads outlets into the repository
func (r *OutletRepository) LoadOutlets(outlets []*entities.Outlet) error {
	for _, outlet := range outlets {
		if err := r.SaveOutlet(outlet); err != nil {
			return err
		}
	}
	return nil
}

// SaveOutlet adds an outlet; ids must be unique
func (r *OutletRepository) SaveOutlet(outlet *entities.Outlet) error {
	if outlet == nil {
		return fmt.Errorf("outlet cannot be nil")
	}
	if _, exists := r.outletsMap[outlet.ID]; exists {
		return fmt.Errorf("duplicate outlet id: %s", outlet.ID)
	}
	r.outletsMap[outlet.ID] = len(r.outlets)
	r.outlets = append(r.outlets, *outlet)
	return nil
}

// GetOutlet returns an outlet by id
func (r *OutletRepository) GetOutlet(id entities.OutletID) (*entities.Outlet, error) {
	index, exists := r.outletsMap[id]
	if !exists {
		return nil, fmt.Errorf("outlet not found: %s", id)
	}
	return &r.outlets[index], nil
}

// GetAllOutlets returns all outlets in load order
func (r *OutletRepository) GetAllOutlets() ([]*entities.Outlet, error) {
	outlets := make([]*entities.Outlet, 0, len(r.outlets))
	for i := range r.outlets {
		outlets = append(outlets, &r.outlets[i])
	}
	return outlets, nil
}
