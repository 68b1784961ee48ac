package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/vsinha/stockalloc/pkg/application/dto"
	"github.com/vsinha/stockalloc/pkg/application/services/allocation"
	"github.com/vsinha/stockalloc/pkg/application/services/orchestration"
	"github.com/vsinha/stockalloc/pkg/infrastructure/config"
	"github.com/vsinha/stockalloc/pkg/infrastructure/events"
	"github.com/vsinha/stockalloc/pkg/infrastructure/metrics"
	"github.com/vsinha/stockalloc/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/stockalloc/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/stockalloc/pkg/interfaces/cli/output"
)

// Files written next to the results when an output directory is set
const (
	ConfigFile  = "config.yaml"
	MetricsFile = "metrics.prom"
)

// Config holds configuration for the allocate command
type Config struct {
	ScenarioDir   string
	OutletsFile   string
	ProductsFile  string
	StockFile     string
	PackRulesFile string
	ConfigFile    string
	OutputDir     string
	Format        string
	Trace         bool
	Verbose       bool
	Help          bool
	// Flags carries the parsed command line so --mode and --workers override
	// the config file. May be nil.
	Flags *pflag.FlagSet
	Out   io.Writer
}

// AllocateCommand runs one allocation plan from CSV inputs
type AllocateCommand struct {
	config Config
}

// NewAllocateCommand creates a new allocate command with the given configuration
func NewAllocateCommand(config Config) *AllocateCommand {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	return &AllocateCommand{
		config: config,
	}
}

// Execute runs the allocate command. A cancelled run still writes its partial
// results before the cancellation error is returned.
func (c *AllocateCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}

	if err := c.validateInputs(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	files, err := c.resolveInputFiles()
	if err != nil {
		return fmt.Errorf("failed to resolve input files: %w", err)
	}

	log := logr.FromContextOrDiscard(ctx)
	if c.config.Verbose {
		c.printHeader(files)
	}

	cfg, err := config.Load(files["Config"], c.config.Flags)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if c.config.Verbose {
		fmt.Fprintln(c.config.Out, "📂 Loading data from CSV files...")
	}
	snapshot, err := c.loadSnapshot(files)
	if err != nil {
		return err
	}
	log.V(1).Info("snapshot loaded",
		"outlets", len(snapshot.Outlets),
		"products", len(snapshot.Products),
		"packRules", len(snapshot.PackRules))

	if c.config.Verbose {
		fmt.Fprintf(c.config.Out, "✅ Data loaded successfully:\n")
		fmt.Fprintf(c.config.Out, "  Outlets: %d\n", len(snapshot.Outlets))
		fmt.Fprintf(c.config.Out, "  Products: %d\n", len(snapshot.Products))
		fmt.Fprintf(c.config.Out, "  Pack Rules: %d\n", len(snapshot.PackRules))
		fmt.Fprintln(c.config.Out)
	}

	outletRepo := memory.NewOutletRepository(len(snapshot.Outlets))
	if err := outletRepo.LoadOutlets(snapshot.Outlets); err != nil {
		return fmt.Errorf("failed to load outlets into repository: %w", err)
	}
	productRepo := memory.NewProductRepository(len(snapshot.Products))
	if err := productRepo.LoadProducts(snapshot.Products); err != nil {
		return fmt.Errorf("failed to load products into repository: %w", err)
	}
	ruleRepo := memory.NewPackRuleRepository()
	if err := ruleRepo.LoadRules(snapshot.PackRules); err != nil {
		return fmt.Errorf("failed to load pack rules into repository: %w", err)
	}

	registry := prometheus.NewRegistry()
	counters, err := metrics.NewRunPerfCounters(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	eventStore := events.NewInMemoryEventStore(log)

	orchestrator := orchestration.NewPlanningOrchestrator(
		outletRepo,
		productRepo,
		orchestration.WithPackRules(ruleRepo),
		orchestration.WithEventStore(eventStore),
		orchestration.WithObserver(counters),
	)

	if c.config.Verbose {
		fmt.Fprintf(c.config.Out, "🔄 Allocating stock (%s mode, %d workers)...\n", cfg.Mode, cfg.Workers)
	}
	result, runErr := orchestrator.Run(ctx, cfg)
	if result == nil {
		return fmt.Errorf("error running allocation: %w", runErr)
	}
	if c.config.Verbose && runErr == nil {
		fmt.Fprintf(c.config.Out, "✅ Allocation completed in %v\n\n", result.Duration)
	}

	outputConfig := output.Config{
		Format:     c.config.Format,
		OutputDir:  c.config.OutputDir,
		Verbose:    c.config.Verbose,
		Trace:      c.config.Trace,
		InputFiles: files,
		Out:        c.config.Out,
	}
	if err := output.Generate(result, outputConfig); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}

	if c.config.OutputDir != "" {
		if err := c.writeRunArtifacts(cfg, registry); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("error running allocation: %w", runErr)
	}

	if c.config.Verbose {
		c.printEventSummary(eventStore, result)
		fmt.Fprintln(c.config.Out, "🏁 Allocation plan complete!")
	}
	return nil
}

func (c *AllocateCommand) loadSnapshot(files map[string]string) (*csv.Snapshot, error) {
	loader := csv.NewLoader()
	if c.config.ScenarioDir != "" {
		snapshot, err := loader.LoadScenario(c.config.ScenarioDir)
		if err != nil {
			return nil, fmt.Errorf("error loading scenario: %w", err)
		}
		if c.config.PackRulesFile != "" {
			if snapshot.PackRules, err = loader.LoadPackRules(c.config.PackRulesFile); err != nil {
				return nil, fmt.Errorf("error loading pack rules: %w", err)
			}
		}
		return snapshot, nil
	}

	outlets, err := loader.LoadOutlets(files["Outlets"])
	if err != nil {
		return nil, fmt.Errorf("error loading outlets: %w", err)
	}
	products, err := loader.LoadProducts(files["Products"])
	if err != nil {
		return nil, fmt.Errorf("error loading products: %w", err)
	}
	if err := loader.LoadOutletStock(files["Stock"], products); err != nil {
		return nil, fmt.Errorf("error loading outlet stock: %w", err)
	}
	snapshot := &csv.Snapshot{Outlets: outlets, Products: products}
	if path := files["PackRules"]; path != "" {
		rules, err := loader.LoadPackRules(path)
		if err != nil {
			return nil, fmt.Errorf("error loading pack rules: %w", err)
		}
		snapshot.PackRules = rules
	}
	return snapshot, nil
}

// writeRunArtifacts records the effective configuration and final counter
// values alongside the results
func (c *AllocateCommand) writeRunArtifacts(cfg allocation.RunConfig, registry *prometheus.Registry) error {
	if err := os.MkdirAll(c.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	configPath := filepath.Join(c.config.OutputDir, ConfigFile)
	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", configPath, err)
	}
	if err := config.Write(f, cfg); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", configPath, err)
	}

	metricsPath := filepath.Join(c.config.OutputDir, MetricsFile)
	if err := prometheus.WriteToTextfile(metricsPath, registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	if c.config.Verbose {
		fmt.Fprintf(c.config.Out, "💾 Effective config saved to: %s\n", configPath)
		fmt.Fprintf(c.config.Out, "💾 Metrics saved to: %s\n", metricsPath)
	}
	return nil
}

func (c *AllocateCommand) printEventSummary(store *events.InMemoryEventStore, result *dto.RunResult) {
	recorded, err := store.ReadEvents(events.RunStream(result.RunID), 0)
	if err != nil {
		return
	}
	fmt.Fprintf(c.config.Out, "📝 %d run events recorded\n", len(recorded))
}

// validateInputs validates the command configuration
func (c *AllocateCommand) validateInputs() error {
	if c.config.ScenarioDir == "" &&
		(c.config.OutletsFile == "" || c.config.ProductsFile == "" || c.config.StockFile == "") {
		return errors.New("must specify either --scenario directory or --outlets, --products and --stock files")
	}
	switch c.config.Format {
	case "", "text", "json", "yaml", "csv":
	default:
		return fmt.Errorf("unsupported output format: %s", c.config.Format)
	}
	return nil
}

// resolveInputFiles determines the actual file paths to use. Pack rules and
// config are optional; an empty path means not provided.
func (c *AllocateCommand) resolveInputFiles() (map[string]string, error) {
	files := map[string]string{}
	optional := map[string]bool{"PackRules": true, "Config": true}

	if c.config.ScenarioDir != "" {
		files["Outlets"] = filepath.Join(c.config.ScenarioDir, csv.OutletsFile)
		files["Products"] = filepath.Join(c.config.ScenarioDir, csv.ProductsFile)
		files["Stock"] = filepath.Join(c.config.ScenarioDir, csv.OutletStockFile)
		files["PackRules"] = filepath.Join(c.config.ScenarioDir, csv.PackRulesFile)
		files["Config"] = filepath.Join(c.config.ScenarioDir, ConfigFile)
	} else {
		files["Outlets"] = c.config.OutletsFile
		files["Products"] = c.config.ProductsFile
		files["Stock"] = c.config.StockFile
		files["PackRules"] = c.config.PackRulesFile
	}
	if c.config.ConfigFile != "" {
		files["Config"] = c.config.ConfigFile
		optional["Config"] = false
	}
	if c.config.PackRulesFile != "" {
		files["PackRules"] = c.config.PackRulesFile
		optional["PackRules"] = false
	}

	for name, path := range files {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if optional[name] {
				files[name] = ""
				continue
			}
			return nil, fmt.Errorf("%s file not found: %s", name, path)
		}
	}
	return files, nil
}

// printHeader prints the command header information
func (c *AllocateCommand) printHeader(files map[string]string) {
	w := c.config.Out
	fmt.Fprintf(w, "🚀 Stock Allocation CLI\n")
	fmt.Fprintf(w, "Input files:\n")
	for _, name := range []string{"Outlets", "Products", "Stock", "PackRules", "Config"} {
		if files[name] != "" {
			fmt.Fprintf(w, "  %s: %s\n", name, files[name])
		}
	}
	fmt.Fprintf(w, "Output format: %s\n", c.config.Format)
	if c.config.OutputDir != "" {
		fmt.Fprintf(w, "Output directory: %s\n", c.config.OutputDir)
	}
	fmt.Fprintln(w)
}

// showHelp displays the help message
func (c *AllocateCommand) showHelp() {
	fmt.Fprintf(c.config.Out, `Stock Allocation CLI - distribute hub stock across retail outlets

USAGE:
    stockalloc --scenario <directory>                       # Use scenario directory with CSV files
    stockalloc --outlets <file> --products <file> --stock <file>

OPTIONS:
    --scenario <dir>     Path to scenario directory containing CSV files
    --outlets <file>     Path to outlets CSV file
    --products <file>    Path to products CSV file
    --stock <file>       Path to outlet stock CSV file
    --pack-rules <file>  Path to brand/supplier/category pack rules CSV file (optional)
    --config <file>      Path to run config YAML (optional)
    --mode <mode>        Allocation mode: velocity, stock_only
    --workers <n>        Number of products allocated concurrently
    --output <dir>       Output directory for results (optional)
    --format <fmt>       Output format: text, json, yaml, csv (default: text)
    --trace              Include the per-outlet decision trace
    --verbose            Enable verbose output
    --help               Show this help message

Config values can also be set with STOCKALLOC_ environment variables,
e.g. STOCKALLOC_RESERVE_PERCENT=0.2.

SCENARIO DIRECTORY STRUCTURE:
    scenario_name/
    ├── outlets.csv       # Outlet roster and tiers
    ├── products.csv      # Products, hub stock and pack settings
    ├── outlet_stock.csv  # Per-outlet stock and sales velocity
    ├── pack_rules.csv    # Pack rules by brand, supplier or category (optional)
    └── config.yaml       # Run configuration (optional)

CSV FILE FORMATS:

outlets.csv:
    outlet_id,store_code,tier,turnover_rate
    O1,S001,A,4.5

products.csv:
    product_id,name,brand,supplier,category,hub_stock,is_new,restocked_recently,tags,pack_size,outer_multiple,rounding_mode,enforce_outer,carton_size,carton_mandatory,excluded_outlets
    SKU-1,Cola 330ml,Fizz,ACME,drinks,240,false,false,promo,6,,nearest,false,,false,

outlet_stock.csv:
    product_id,outlet_id,stock,sales_velocity,turnover_rate
    SKU-1,O1,4,12.5,

pack_rules.csv:
    scope,key,pack_size,outer_multiple,rounding_mode,enforce_outer,carton_size,carton_mandatory
    brand,Fizz,6,,nearest,false,24,false

EXAMPLES:
    # Run a scenario
    stockalloc --scenario examples/basic --verbose

    # Stock-only mode with four workers
    stockalloc --scenario examples/basic --mode stock_only --workers 4

    # CSV lines and decision trace written to a directory
    stockalloc --scenario examples/basic --format csv --trace --output results/
`)
}
