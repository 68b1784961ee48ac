package entities

import (
	"fmt"
	"strings"
)

// Tier classifies outlets for differentiated caps and seed quantities
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// DefaultTier is assumed for outlets without an explicit classification
const DefaultTier = TierB

// ParseTier parses a tier label case-insensitively. An empty label yields DefaultTier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DefaultTier, nil
	case "A":
		return TierA, nil
	case "B":
		return TierB, nil
	case "C":
		return TierC, nil
	default:
		return "", fmt.Errorf("invalid tier: %q (expected A, B or C)", s)
	}
}

// Rank orders tiers A < B < C; unknown tiers sort last
func (t Tier) Rank() int {
	switch t {
	case TierA:
		return 0
	case TierB, "":
		return 1
	case TierC:
		return 2
	default:
		return 3
	}
}

// OrDefault returns DefaultTier for the zero value
func (t Tier) OrDefault() Tier {
	if t == "" {
		return DefaultTier
	}
	return t
}

// Outlet represents a destination retail store
type Outlet struct {
	ID        OutletID
	StoreCode string
	Tier      Tier
	// TurnoverRate is the fallback used when the product snapshot has none for this outlet
	TurnoverRate float64
}

// NewOutlet creates a validated Outlet
func NewOutlet(id OutletID, storeCode string, tier Tier, turnoverRate float64) (*Outlet, error) {
	if string(id) == "" {
		return nil, fmt.Errorf("outlet id cannot be empty")
	}
	if !isFinite(turnoverRate) {
		return nil, fmt.Errorf("turnover rate must be finite, got %g", turnoverRate)
	}
	if turnoverRate < 0 {
		return nil, fmt.Errorf("turnover rate cannot be negative, got %g", turnoverRate)
	}
	tier = tier.OrDefault()
	if tier.Rank() > 2 {
		return nil, fmt.Errorf("invalid tier: %q", tier)
	}
	return &Outlet{
		ID:           id,
		StoreCode:    storeCode,
		Tier:         tier,
		TurnoverRate: turnoverRate,
	}, nil
}
