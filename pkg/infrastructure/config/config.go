// Package config loads allocation.RunConfig from defaults, an optional YAML
// file, STOCKALLOC_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/stockalloc/pkg/application/services/allocation"
	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// EnvPrefix prefixes every environment override, e.g. STOCKALLOC_RESERVE_PERCENT
const EnvPrefix = "STOCKALLOC"

// File is the on-disk shape of a run configuration
type File struct {
	Mode        string          `yaml:"mode" mapstructure:"mode"`
	Workers     int             `yaml:"workers" mapstructure:"workers"`
	Reserve     ReserveFile     `yaml:"reserve" mapstructure:"reserve"`
	Caps        CapsFile        `yaml:"caps" mapstructure:"caps"`
	Seeding     SeedingFile     `yaml:"seeding" mapstructure:"seeding"`
	Weighting   WeightingFile   `yaml:"weighting" mapstructure:"weighting"`
	TopK        TopKFile        `yaml:"top_k" mapstructure:"top_k"`
	Pack        PackFile        `yaml:"pack" mapstructure:"pack"`
	Smoothing   SmoothingFile   `yaml:"smoothing" mapstructure:"smoothing"`
	LineLimits  LineLimitsFile  `yaml:"line_limits" mapstructure:"line_limits"`
	StockOnly   StockOnlyFile   `yaml:"stock_only" mapstructure:"stock_only"`
	Eligibility EligibilityFile `yaml:"eligibility" mapstructure:"eligibility"`
}

type ReserveFile struct {
	Percent    float64           `yaml:"percent" mapstructure:"percent"`
	MinUnits   entities.Quantity `yaml:"min_units" mapstructure:"min_units"`
	FloorUnits entities.Quantity `yaml:"floor_units" mapstructure:"floor_units"`
}

type CapsFile struct {
	GlobalMaxPerProduct entities.Quantity            `yaml:"global_max_per_product" mapstructure:"global_max_per_product"`
	TierCaps            map[string]entities.Quantity `yaml:"tier_caps" mapstructure:"tier_caps"`
	MinCapPerOutlet     entities.Quantity            `yaml:"min_cap_per_outlet" mapstructure:"min_cap_per_outlet"`
}

type SeedingFile struct {
	Enabled               bool                         `yaml:"enabled" mapstructure:"enabled"`
	HighStockThreshold    entities.Quantity            `yaml:"high_stock_threshold" mapstructure:"high_stock_threshold"`
	VelocitySeedThreshold float64                      `yaml:"velocity_seed_threshold" mapstructure:"velocity_seed_threshold"`
	SeedQtyDefault        entities.Quantity            `yaml:"seed_qty_default" mapstructure:"seed_qty_default"`
	SeedQtyHighStock      entities.Quantity            `yaml:"seed_qty_high_stock" mapstructure:"seed_qty_high_stock"`
	SeedQtyByTier         map[string]entities.Quantity `yaml:"seed_qty_by_tier" mapstructure:"seed_qty_by_tier"`
	DisableTopKOnSeed     bool                         `yaml:"disable_top_k_on_seed" mapstructure:"disable_top_k_on_seed"`
}

type WeightingFile struct {
	Method          string  `yaml:"method" mapstructure:"method"`
	Gamma           float64 `yaml:"gamma" mapstructure:"gamma"`
	Epsilon         float64 `yaml:"epsilon" mapstructure:"epsilon"`
	Tau             float64 `yaml:"tau" mapstructure:"tau"`
	TurnoverDivisor float64 `yaml:"turnover_divisor" mapstructure:"turnover_divisor"`
}

type TopKTierFile struct {
	MinHubStock entities.Quantity `yaml:"min_hub_stock" mapstructure:"min_hub_stock"`
	K           int               `yaml:"k" mapstructure:"k"`
}

type TopKFile struct {
	Static  int            `yaml:"static" mapstructure:"static"`
	Dynamic bool           `yaml:"dynamic" mapstructure:"dynamic"`
	Tiers   []TopKTierFile `yaml:"tiers" mapstructure:"tiers"`
}

type PackFile struct {
	Priority   string                       `yaml:"priority" mapstructure:"priority"`
	BrandHints map[string]entities.Quantity `yaml:"brand_hints" mapstructure:"brand_hints"`
}

type SmoothingFile struct {
	NoSendIfAtLeast        entities.Quantity `yaml:"no_send_if_at_least" mapstructure:"no_send_if_at_least"`
	HighDestFactor         float64           `yaml:"high_dest_factor" mapstructure:"high_dest_factor"`
	SingletonKillThreshold entities.Quantity `yaml:"singleton_kill_threshold" mapstructure:"singleton_kill_threshold"`
	SnapMultiple           entities.Quantity `yaml:"snap_multiple" mapstructure:"snap_multiple"`
	SnapDelta              entities.Quantity `yaml:"snap_delta" mapstructure:"snap_delta"`
	PreservePacks          bool              `yaml:"preserve_packs" mapstructure:"preserve_packs"`
	MinLineQty             entities.Quantity `yaml:"min_line_qty" mapstructure:"min_line_qty"`
}

type LineLimitsFile struct {
	MaxLinesPerStore int `yaml:"max_lines_per_store" mapstructure:"max_lines_per_store"`
	MaxSkusPerStore  int `yaml:"max_skus_per_store" mapstructure:"max_skus_per_store"`
}

type StockOnlyFile struct {
	LowStockFloor entities.Quantity `yaml:"low_stock_floor" mapstructure:"low_stock_floor"`
	ZeroStockQty  entities.Quantity `yaml:"zero_stock_qty" mapstructure:"zero_stock_qty"`
	LowStockTopUp entities.Quantity `yaml:"low_stock_top_up" mapstructure:"low_stock_top_up"`
	TargetStock   entities.Quantity `yaml:"target_stock" mapstructure:"target_stock"`
}

type EligibilityFile struct {
	ExcludedOutlets []string `yaml:"excluded_outlets" mapstructure:"excluded_outlets"`
	IncludedTiers   []string `yaml:"included_tiers" mapstructure:"included_tiers"`
}

// FromRunConfig converts a run configuration to its file shape
func FromRunConfig(cfg allocation.RunConfig) File {
	f := File{
		Mode:    string(cfg.Mode),
		Workers: cfg.Workers,
		Reserve: ReserveFile{
			Percent:    cfg.Reserve.Percent,
			MinUnits:   cfg.Reserve.MinUnits,
			FloorUnits: cfg.Reserve.FloorUnits,
		},
		Caps: CapsFile{
			GlobalMaxPerProduct: cfg.Caps.GlobalMaxPerProduct,
			TierCaps:            tierMapOut(cfg.Caps.TierCaps),
			MinCapPerOutlet:     cfg.Caps.MinCapPerOutlet,
		},
		Seeding: SeedingFile{
			Enabled:               cfg.Seeding.Enabled,
			HighStockThreshold:    cfg.Seeding.HighStockThreshold,
			VelocitySeedThreshold: cfg.Seeding.VelocitySeedThreshold,
			SeedQtyDefault:        cfg.Seeding.SeedQtyDefault,
			SeedQtyHighStock:      cfg.Seeding.SeedQtyHighStock,
			SeedQtyByTier:         tierMapOut(cfg.Seeding.SeedQtyByTier),
			DisableTopKOnSeed:     cfg.Seeding.DisableTopKOnSeed,
		},
		Weighting: WeightingFile{
			Method:          string(cfg.Weighting.Method),
			Gamma:           cfg.Weighting.Gamma,
			Epsilon:         cfg.Weighting.Epsilon,
			Tau:             cfg.Weighting.Tau,
			TurnoverDivisor: cfg.Weighting.TurnoverDivisor,
		},
		TopK: TopKFile{
			Static:  cfg.TopK.Static,
			Dynamic: cfg.TopK.Dynamic,
		},
		Pack: PackFile{
			Priority:   string(cfg.Pack.Priority),
			BrandHints: make(map[string]entities.Quantity, len(cfg.Pack.BrandHints)),
		},
		Smoothing: SmoothingFile{
			NoSendIfAtLeast:        cfg.Smoothing.NoSendIfAtLeast,
			HighDestFactor:         cfg.Smoothing.HighDestFactor,
			SingletonKillThreshold: cfg.Smoothing.SingletonKillThreshold,
			SnapMultiple:           cfg.Smoothing.SnapMultiple,
			SnapDelta:              cfg.Smoothing.SnapDelta,
			PreservePacks:          cfg.Smoothing.PreservePacks,
			MinLineQty:             cfg.Smoothing.MinLineQty,
		},
		LineLimits: LineLimitsFile{
			MaxLinesPerStore: cfg.LineLimits.MaxLinesPerStore,
			MaxSkusPerStore:  cfg.LineLimits.MaxSkusPerStore,
		},
		StockOnly: StockOnlyFile{
			LowStockFloor: cfg.StockOnly.LowStockFloor,
			ZeroStockQty:  cfg.StockOnly.ZeroStockQty,
			LowStockTopUp: cfg.StockOnly.LowStockTopUp,
			TargetStock:   cfg.StockOnly.TargetStock,
		},
		Eligibility: EligibilityFile{
			ExcludedOutlets: []string{},
			IncludedTiers:   []string{},
		},
	}
	for _, tier := range cfg.TopK.Tiers {
		f.TopK.Tiers = append(f.TopK.Tiers, TopKTierFile{MinHubStock: tier.MinHubStock, K: tier.K})
	}
	for brand, size := range cfg.Pack.BrandHints {
		f.Pack.BrandHints[brand] = size
	}
	for _, id := range cfg.Eligibility.ExcludedOutlets {
		f.Eligibility.ExcludedOutlets = append(f.Eligibility.ExcludedOutlets, string(id))
	}
	for _, tier := range cfg.Eligibility.IncludedTiers {
		f.Eligibility.IncludedTiers = append(f.Eligibility.IncludedTiers, string(tier))
	}
	return f
}

// RunConfig converts the file shape back, parsing tier labels
func (f File) RunConfig() (allocation.RunConfig, error) {
	tierCaps, err := tierMapIn("caps.tier_caps", f.Caps.TierCaps)
	if err != nil {
		return allocation.RunConfig{}, err
	}
	seedByTier, err := tierMapIn("seeding.seed_qty_by_tier", f.Seeding.SeedQtyByTier)
	if err != nil {
		return allocation.RunConfig{}, err
	}

	cfg := allocation.RunConfig{
		Mode:    allocation.Mode(strings.ToLower(strings.TrimSpace(f.Mode))),
		Workers: f.Workers,
		Reserve: allocation.ReserveConfig{
			Percent:    f.Reserve.Percent,
			MinUnits:   f.Reserve.MinUnits,
			FloorUnits: f.Reserve.FloorUnits,
		},
		Caps: allocation.CapConfig{
			GlobalMaxPerProduct: f.Caps.GlobalMaxPerProduct,
			TierCaps:            tierCaps,
			MinCapPerOutlet:     f.Caps.MinCapPerOutlet,
		},
		Seeding: allocation.SeedingConfig{
			Enabled:               f.Seeding.Enabled,
			HighStockThreshold:    f.Seeding.HighStockThreshold,
			VelocitySeedThreshold: f.Seeding.VelocitySeedThreshold,
			SeedQtyDefault:        f.Seeding.SeedQtyDefault,
			SeedQtyHighStock:      f.Seeding.SeedQtyHighStock,
			SeedQtyByTier:         seedByTier,
			DisableTopKOnSeed:     f.Seeding.DisableTopKOnSeed,
		},
		Weighting: allocation.WeightingConfig{
			Method:          allocation.WeightMethod(strings.ToLower(strings.TrimSpace(f.Weighting.Method))),
			Gamma:           f.Weighting.Gamma,
			Epsilon:         f.Weighting.Epsilon,
			Tau:             f.Weighting.Tau,
			TurnoverDivisor: f.Weighting.TurnoverDivisor,
		},
		TopK: allocation.TopKConfig{
			Static:  f.TopK.Static,
			Dynamic: f.TopK.Dynamic,
		},
		Pack: allocation.PackConfig{
			Priority:   allocation.PackPriority(strings.ToLower(strings.TrimSpace(f.Pack.Priority))),
			BrandHints: make(map[string]entities.Quantity, len(f.Pack.BrandHints)),
		},
		Smoothing: allocation.SmoothingConfig{
			NoSendIfAtLeast:        f.Smoothing.NoSendIfAtLeast,
			HighDestFactor:         f.Smoothing.HighDestFactor,
			SingletonKillThreshold: f.Smoothing.SingletonKillThreshold,
			SnapMultiple:           f.Smoothing.SnapMultiple,
			SnapDelta:              f.Smoothing.SnapDelta,
			PreservePacks:          f.Smoothing.PreservePacks,
			MinLineQty:             f.Smoothing.MinLineQty,
		},
		LineLimits: allocation.LineLimitConfig{
			MaxLinesPerStore: f.LineLimits.MaxLinesPerStore,
			MaxSkusPerStore:  f.LineLimits.MaxSkusPerStore,
		},
		StockOnly: allocation.StockOnlyConfig{
			LowStockFloor: f.StockOnly.LowStockFloor,
			ZeroStockQty:  f.StockOnly.ZeroStockQty,
			LowStockTopUp: f.StockOnly.LowStockTopUp,
			TargetStock:   f.StockOnly.TargetStock,
		},
	}
	for _, tier := range f.TopK.Tiers {
		cfg.TopK.Tiers = append(cfg.TopK.Tiers, allocation.TopKTier{MinHubStock: tier.MinHubStock, K: tier.K})
	}
	for brand, size := range f.Pack.BrandHints {
		cfg.Pack.BrandHints[brand] = size
	}
	for _, id := range f.Eligibility.ExcludedOutlets {
		if id = strings.TrimSpace(id); id != "" {
			cfg.Eligibility.ExcludedOutlets = append(cfg.Eligibility.ExcludedOutlets, entities.OutletID(id))
		}
	}
	for _, label := range f.Eligibility.IncludedTiers {
		tier, err := entities.ParseTier(label)
		if err != nil {
			return allocation.RunConfig{}, fmt.Errorf("eligibility.included_tiers: %w", err)
		}
		cfg.Eligibility.IncludedTiers = append(cfg.Eligibility.IncludedTiers, tier)
	}
	return cfg, nil
}

// Load builds a validated run configuration. path may be empty; flags may be nil.
// Only the mode and workers flags are bound.
func Load(path string, flags *pflag.FlagSet) (allocation.RunConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(FromRunConfig(allocation.DefaultRunConfig()))
	if err != nil {
		return allocation.RunConfig{}, fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return allocation.RunConfig{}, fmt.Errorf("failed to register default config: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return allocation.RunConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, name := range []string{"mode", "workers"} {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(name, flag); err != nil {
					return allocation.RunConfig{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var file File
	if err := v.Unmarshal(&file); err != nil {
		return allocation.RunConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg, err := file.RunConfig()
	if err != nil {
		return allocation.RunConfig{}, fmt.Errorf("%w: %v", allocation.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return allocation.RunConfig{}, err
	}
	return cfg, nil
}

// Write dumps cfg as YAML, e.g. to record the effective configuration of a run
func Write(w io.Writer, cfg allocation.RunConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromRunConfig(cfg)); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func tierMapOut(in map[entities.Tier]entities.Quantity) map[string]entities.Quantity {
	out := make(map[string]entities.Quantity, len(in))
	for tier, qty := range in {
		out[string(tier)] = qty
	}
	return out
}

func tierMapIn(field string, in map[string]entities.Quantity) (map[entities.Tier]entities.Quantity, error) {
	out := make(map[entities.Tier]entities.Quantity, len(in))
	for label, qty := range in {
		tier, err := entities.ParseTier(label)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out[tier] = qty
	}
	return out, nil
}
