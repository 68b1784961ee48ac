package entities

import (
	"math"
	"testing"
)

func TestProduct_Validation(t *testing.T) {
	validProduct, err := NewProduct("SKU-1", 100)
	if err != nil {
		t.Fatalf("Expected valid product creation to succeed: %v", err)
	}
	if validProduct.HubStock != 100 {
		t.Errorf("Expected hub stock 100, got %d", validProduct.HubStock)
	}

	testCases := []struct {
		name        string
		mutate      func(p *Product)
		expectError string
	}{
		{"empty id", func(p *Product) { p.ID = "" }, "product id cannot be empty"},
		{"negative hub stock", func(p *Product) { p.HubStock = -1 }, "hub stock cannot be negative, got -1"},
		{
			"negative outlet stock",
			func(p *Product) { p.OutletStocks["S1"] = -3 },
			"stock at outlet S1 cannot be negative, got -3",
		},
		{
			"negative velocity",
			func(p *Product) { p.SalesVelocity["S1"] = -0.5 },
			"sales velocity at outlet S1 cannot be negative, got -0.5",
		},
		{
			"infinite velocity",
			func(p *Product) { p.SalesVelocity["S1"] = math.Inf(1) },
			"sales velocity at outlet S1 must be finite, got +Inf",
		},
		{
			"NaN velocity",
			func(p *Product) { p.SalesVelocity["S1"] = math.NaN() },
			"sales velocity at outlet S1 must be finite, got NaN",
		},
		{
			"infinite turnover",
			func(p *Product) { p.TurnoverRate["S1"] = math.Inf(-1) },
			"turnover rate at outlet S1 must be finite, got -Inf",
		},
		{
			"negative pack size",
			func(p *Product) { p.PackRule = &PackRule{PackSize: -10} },
			"product SKU-1: pack size cannot be negative, got -10",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := NewProduct("SKU-1", 10)
			tc.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error %q, got %q", tc.expectError, err.Error())
			}
		})
	}
}

func TestProduct_Signals(t *testing.T) {
	p, _ := NewProduct("SKU-1", 10)
	p.SetOutletSignals("S1", 4, 2.5, 12)
	p.SetOutletSignals("S2", 0, 1, 0)

	if got := p.StockAt("S1"); got != 4 {
		t.Errorf("Expected stock 4, got %d", got)
	}
	if got := p.StockAt("UNKNOWN"); got != 0 {
		t.Errorf("Expected stock 0 for unknown outlet, got %d", got)
	}
	if got := p.VelocityAt("S1"); got != 2.5 {
		t.Errorf("Expected velocity 2.5, got %g", got)
	}
	if turnover, ok := p.TurnoverAt("S1"); !ok || turnover != 12 {
		t.Errorf("Expected turnover 12, got %g (ok=%t)", turnover, ok)
	}
	if _, ok := p.TurnoverAt("S2"); ok {
		t.Error("Expected no product-level turnover for S2")
	}
}

func TestProduct_TagsAndExclusions(t *testing.T) {
	p, _ := NewProduct("SKU-1", 10)
	p.AddTag("seasonal")
	p.AddTag("clearance")
	p.Exclude("S9")

	if !p.HasTag("seasonal") {
		t.Error("Expected seasonal tag")
	}
	tags := p.SortedTags()
	if len(tags) != 2 || tags[0] != "clearance" || tags[1] != "seasonal" {
		t.Errorf("Expected sorted tags [clearance seasonal], got %v", tags)
	}
	if !p.IsExcluded("S9") || p.IsExcluded("S1") {
		t.Error("Expected only S9 to be excluded")
	}
}
