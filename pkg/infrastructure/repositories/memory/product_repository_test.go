package memory

import (
	"strings"
	"testing"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

func TestProductRepository_GetAllProducts_SortedByID(t *testing.T) {
	repo := NewProductRepository(3)

	var products []*entities.Product
	for _, id := range []entities.ProductID{"SKU-3", "SKU-1", "SKU-2"} {
		p, err := entities.NewProduct(id, 100)
		if err != nil {
			t.Fatalf("Failed to create product: %v", err)
		}
		products = append(products, p)
	}

	if err := repo.LoadProducts(products); err != nil {
		t.Fatalf("Failed to load products: %v", err)
	}

	all, err := repo.GetAllProducts()
	if err != nil {
		t.Fatalf("Failed to get products: %v", err)
	}

	for i, want := range []entities.ProductID{"SKU-1", "SKU-2", "SKU-3"} {
		if all[i].ID != want {
			t.Errorf("Expected product %d to be %s, got %s", i, want, all[i].ID)
		}
	}
}

func TestProductRepository_Duplicate(t *testing.T) {
	repo := NewProductRepository(1)
	p, _ := entities.NewProduct("SKU-1", 10)

	if err := repo.SaveProduct(p); err != nil {
		t.Fatalf("Failed to save product: %v", err)
	}

	err := repo.SaveProduct(p)
	if err == nil || !strings.Contains(err.Error(), "duplicate product id") {
		t.Errorf("Expected duplicate product error, got: %v", err)
	}

	if _, err := repo.GetProduct("SKU-9"); err == nil {
		t.Error("Expected error for missing product")
	}
}

func TestPackRuleRepository_LookupNormalizesKeys(t *testing.T) {
	repo := NewPackRuleRepository()

	err := repo.LoadRules([]entities.ScopedPackRule{
		{Scope: entities.ScopeBrand, Key: "  Lost Mary ", Pack: entities.PackRule{PackSize: 10}},
		{Scope: entities.ScopeCategory, Key: "Drinks", Pack: entities.PackRule{PackSize: 24}},
	})
	if err != nil {
		t.Fatalf("Failed to load rules: %v", err)
	}

	rule, ok := repo.Lookup(entities.ScopeBrand, "LOST MARY")
	if !ok {
		t.Fatal("Expected brand rule to be found")
	}
	if rule.Pack.PackSize != 10 {
		t.Errorf("Expected pack size 10, got %d", rule.Pack.PackSize)
	}

	if _, ok := repo.Lookup(entities.ScopeSupplier, "drinks"); ok {
		t.Error("Expected scopes to be kept apart")
	}

	all, _ := repo.GetAllRules()
	if len(all) != 2 || all[0].Scope != entities.ScopeBrand {
		t.Errorf("Expected brand rule first, got %+v", all)
	}
}

func TestPackRuleRepository_RejectsInvalidRules(t *testing.T) {
	repo := NewPackRuleRepository()

	tests := []entities.ScopedPackRule{
		{Scope: entities.ScopeBrand, Key: " ", Pack: entities.PackRule{PackSize: 10}},
		{Scope: entities.ScopeBrand, Key: "acme", Pack: entities.PackRule{PackSize: -1}},
		{Scope: entities.ScopeBrand, Key: "acme", Carton: &entities.CartonRule{CartonSize: -4}},
	}

	for _, rule := range tests {
		if err := repo.SaveRule(rule); err == nil {
			t.Errorf("Expected error for rule %+v", rule)
		}
	}
}
