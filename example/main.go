package main

import (
	"context"
	"fmt"

	"github.com/vsinha/stockalloc/pkg/application/services/allocation"
	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

func main() {
	ctx := context.Background()

	// Three stores across the tiers
	outlets := []*entities.Outlet{
		mustOutlet("CBD", "S001", entities.TierA),
		mustOutlet("MALL", "S002", entities.TierB),
		mustOutlet("SUBURB", "S003", entities.TierC),
	}

	// A fast-moving drink sold in six-packs
	product, err := entities.NewProduct("COLA-330", 120)
	if err != nil {
		panic(err)
	}
	product.Name = "Cola 330ml"
	product.Brand = "Fizz"
	product.PackRule = &entities.PackRule{PackSize: 6, RoundingMode: entities.RoundNearest}
	product.SetOutletSignals("CBD", 4, 12, 6)
	product.SetOutletSignals("MALL", 10, 6, 4)
	product.SetOutletSignals("SUBURB", 0, 2, 2)

	cfg := allocation.DefaultRunConfig()

	fmt.Println("🚚 Allocating hub stock...")
	fmt.Printf("Product: %s, hub stock %d, reserve %.0f%%\n",
		product.ID, product.HubStock, cfg.Reserve.Percent*100)
	fmt.Println()

	lines, trace, err := allocation.Allocate(ctx, product, outlets, cfg)
	if err != nil {
		fmt.Printf("❌ Allocation failed: %v\n", err)
		return
	}

	fmt.Println("📦 Allocation Lines:")
	for _, line := range lines {
		fmt.Printf("  %-8s %4d units (share %.2f)\n", line.OutletID, line.Quantity, line.Proportion)
	}
	fmt.Printf("  Total: %d units\n", entities.TotalQuantity(lines))
	fmt.Println()

	fmt.Println("🔍 Decision Trace:")
	for _, e := range trace {
		target := string(e.OutletID)
		if e.IsProductLevel() {
			target = "*"
		}
		fmt.Printf("  %-8s %-22s %d -> %d %s\n", target, e.Reason, e.CandidateQty, e.FinalQty, e.Detail)
	}
}

func mustOutlet(id entities.OutletID, storeCode string, tier entities.Tier) *entities.Outlet {
	outlet, err := entities.NewOutlet(id, storeCode, tier, 0)
	if err != nil {
		panic(err)
	}
	return outlet
}
