package repositories

import "github.com/vsinha/stockalloc/pkg/domain/entities"

// OutletRepository provides access to the outlet roster
type OutletRepository interface {
	GetOutlet(id entities.OutletID) (*entities.Outlet, error)
	GetAllOutlets() ([]*entities.Outlet, error)
	LoadOutlets(outlets []*entities.Outlet) error
}
