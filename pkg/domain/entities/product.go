package entities

import (
	"fmt"
	"math"
	"sort"
)

// ProductID represents a unique product (SKU) identifier
type ProductID string

// OutletID represents a unique destination store identifier
type OutletID string

// Quantity represents an integer quantity of sellable units
type Quantity int64

// Product is the per-run snapshot of one SKU: hub stock plus the per-outlet
// stock and demand signals the allocation engine consumes.
type Product struct {
	ID       ProductID
	Name     string
	Brand    string
	Supplier string
	Category string

	HubStock      Quantity
	OutletStocks  map[OutletID]Quantity
	SalesVelocity map[OutletID]float64
	TurnoverRate  map[OutletID]float64
	Tags          map[string]struct{}

	IsNew             bool
	RestockedRecently bool

	// ExcludedOutlets never receive this product, regardless of demand.
	ExcludedOutlets map[OutletID]struct{}

	PackRule   *PackRule
	CartonRule *CartonRule
}

// NewProduct creates a validated Product with empty signal maps
func NewProduct(id ProductID, hubStock Quantity) (*Product, error) {
	p := &Product{
		ID:            id,
		HubStock:      hubStock,
		OutletStocks:  make(map[OutletID]Quantity),
		SalesVelocity: make(map[OutletID]float64),
		TurnoverRate:  make(map[OutletID]float64),
		Tags:          make(map[string]struct{}),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the snapshot for values the engine cannot work with
func (p *Product) Validate() error {
	if string(p.ID) == "" {
		return fmt.Errorf("product id cannot be empty")
	}
	if p.HubStock < 0 {
		return fmt.Errorf("hub stock cannot be negative, got %d", p.HubStock)
	}
	for outlet, stock := range p.OutletStocks {
		if stock < 0 {
			return fmt.Errorf("stock at outlet %s cannot be negative, got %d", outlet, stock)
		}
	}
	for outlet, v := range p.SalesVelocity {
		if !isFinite(v) {
			return fmt.Errorf("sales velocity at outlet %s must be finite, got %g", outlet, v)
		}
		if v < 0 {
			return fmt.Errorf("sales velocity at outlet %s cannot be negative, got %g", outlet, v)
		}
	}
	for outlet, t := range p.TurnoverRate {
		if !isFinite(t) {
			return fmt.Errorf("turnover rate at outlet %s must be finite, got %g", outlet, t)
		}
		if t < 0 {
			return fmt.Errorf("turnover rate at outlet %s cannot be negative, got %g", outlet, t)
		}
	}
	if p.PackRule != nil {
		if err := p.PackRule.Validate(); err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
	}
	if p.CartonRule != nil {
		if err := p.CartonRule.Validate(); err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// StockAt returns the current stock of the product at an outlet (0 when unknown)
func (p *Product) StockAt(outlet OutletID) Quantity {
	return p.OutletStocks[outlet]
}

// VelocityAt returns the sales velocity at an outlet (0 when unknown)
func (p *Product) VelocityAt(outlet OutletID) float64 {
	return p.SalesVelocity[outlet]
}

// TurnoverAt returns the product-level turnover rate for an outlet, if one was supplied
func (p *Product) TurnoverAt(outlet OutletID) (float64, bool) {
	t, ok := p.TurnoverRate[outlet]
	return t, ok
}

// HasTag reports whether the product carries the given tag
func (p *Product) HasTag(tag string) bool {
	_, ok := p.Tags[tag]
	return ok
}

// AddTag adds a tag to the product
func (p *Product) AddTag(tag string) {
	if p.Tags == nil {
		p.Tags = make(map[string]struct{})
	}
	p.Tags[tag] = struct{}{}
}

// SortedTags returns the product tags in lexical order
func (p *Product) SortedTags() []string {
	tags := make([]string, 0, len(p.Tags))
	for tag := range p.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// IsExcluded reports whether the product must never ship to the outlet
func (p *Product) IsExcluded(outlet OutletID) bool {
	_, ok := p.ExcludedOutlets[outlet]
	return ok
}

// Exclude marks an outlet as never receiving this product
func (p *Product) Exclude(outlet OutletID) {
	if p.ExcludedOutlets == nil {
		p.ExcludedOutlets = make(map[OutletID]struct{})
	}
	p.ExcludedOutlets[outlet] = struct{}{}
}

// SetOutletSignals records stock and demand signals for one outlet
func (p *Product) SetOutletSignals(outlet OutletID, stock Quantity, velocity, turnover float64) {
	if p.OutletStocks == nil {
		p.OutletStocks = make(map[OutletID]Quantity)
	}
	if p.SalesVelocity == nil {
		p.SalesVelocity = make(map[OutletID]float64)
	}
	p.OutletStocks[outlet] = stock
	p.SalesVelocity[outlet] = velocity
	if turnover > 0 {
		if p.TurnoverRate == nil {
			p.TurnoverRate = make(map[OutletID]float64)
		}
		p.TurnoverRate[outlet] = turnover
	}
}
