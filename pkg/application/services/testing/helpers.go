package testing

import (
	"fmt"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
	"github.com/vsinha/stockalloc/pkg/infrastructure/repositories/memory"
)

// Signal is one outlet's stock and demand for a product fixture
type Signal struct {
	Outlet   string
	Stock    entities.Quantity
	Velocity float64
	Turnover float64
}

// MustOutlet is a helper for tests - panics on validation error
func MustOutlet(id string, tier entities.Tier) *entities.Outlet {
	outlet, err := entities.NewOutlet(entities.OutletID(id), "S-"+id, tier, 0)
	if err != nil {
		panic(err)
	}
	return outlet
}

// MustProduct is a helper for tests - panics on validation error
func MustProduct(id string, hubStock entities.Quantity, signals ...Signal) *entities.Product {
	product, err := entities.NewProduct(entities.ProductID(id), hubStock)
	if err != nil {
		panic(err)
	}
	for _, s := range signals {
		product.SetOutletSignals(entities.OutletID(s.Outlet), s.Stock, s.Velocity, s.Turnover)
	}
	return product
}

// Repositories bundles the in-memory repositories a planning run reads
type Repositories struct {
	Outlets   *memory.OutletRepository
	Products  *memory.ProductRepository
	PackRules *memory.PackRuleRepository
}

// BuildRepositories loads fixtures into fresh in-memory repositories
func BuildRepositories(outlets []*entities.Outlet, products []*entities.Product, rules []entities.ScopedPackRule) Repositories {
	repos := Repositories{
		Outlets:   memory.NewOutletRepository(len(outlets)),
		Products:  memory.NewProductRepository(len(products)),
		PackRules: memory.NewPackRuleRepository(),
	}
	if err := repos.Outlets.LoadOutlets(outlets); err != nil {
		panic(err)
	}
	if err := repos.Products.LoadProducts(products); err != nil {
		panic(err)
	}
	if err := repos.PackRules.LoadRules(rules); err != nil {
		panic(err)
	}
	return repos
}

// BuildTwoStoreScenario creates two tier B stores and three products:
//
//	P1 hub 50, O1 empty and O2 holding 20 with equal velocity (ships 28 / 11 with defaults)
//	P2 hub 100, both stores already above target (no lines)
//	P3 hub 4, entirely consumed by the reserve (no lines)
func BuildTwoStoreScenario() Repositories {
	outlets := []*entities.Outlet{
		MustOutlet("O1", entities.TierB),
		MustOutlet("O2", entities.TierB),
	}
	products := []*entities.Product{
		MustProduct("P1", 50,
			Signal{Outlet: "O1", Stock: 0, Velocity: 5, Turnover: 10},
			Signal{Outlet: "O2", Stock: 20, Velocity: 5, Turnover: 10},
		),
		MustProduct("P2", 100,
			Signal{Outlet: "O1", Stock: 100, Velocity: 1, Turnover: 1},
			Signal{Outlet: "O2", Stock: 100, Velocity: 1, Turnover: 1},
		),
		MustProduct("P3", 4,
			Signal{Outlet: "O1", Stock: 0, Velocity: 10, Turnover: 2},
		),
	}
	return BuildRepositories(outlets, products, nil)
}

// BuildStoreGrid creates outlets O01..Onn spread over tiers A, B and C and
// products with varied demand, for run-level and concurrency tests
func BuildStoreGrid(outletCount, productCount int) Repositories {
	tiers := []entities.Tier{entities.TierA, entities.TierB, entities.TierC}

	outlets := make([]*entities.Outlet, 0, outletCount)
	for i := 0; i < outletCount; i++ {
		outlets = append(outlets, MustOutlet(gridID("O", i), tiers[i%len(tiers)]))
	}

	products := make([]*entities.Product, 0, productCount)
	for p := 0; p < productCount; p++ {
		product := MustProduct(gridID("P", p), entities.Quantity(40+p*15))
		for i, outlet := range outlets {
			stock := entities.Quantity((i*3 + p) % 9)
			velocity := float64((i+p)%5) + 0.5
			product.SetOutletSignals(outlet.ID, stock, velocity, 4)
		}
		if p%4 == 0 {
			product.IsNew = true
		}
		products = append(products, product)
	}
	return BuildRepositories(outlets, products, nil)
}

func gridID(prefix string, i int) string {
	return fmt.Sprintf("%s%02d", prefix, i+1)
}
