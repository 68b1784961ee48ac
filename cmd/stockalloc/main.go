package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/vsinha/stockalloc/pkg/infrastructure/logging"
	"github.com/vsinha/stockalloc/pkg/interfaces/cli/commands"
)

func main() {
	flags := pflag.NewFlagSet("stockalloc", pflag.ExitOnError)

	// Command line flags
	var (
		scenarioDir = flags.String(
			"scenario",
			"",
			"Path to scenario directory containing CSV files",
		)
		outletsFile   = flags.String("outlets", "", "Path to outlets CSV file")
		productsFile  = flags.String("products", "", "Path to products CSV file")
		stockFile     = flags.String("stock", "", "Path to outlet stock CSV file")
		packRulesFile = flags.String("pack-rules", "", "Path to pack rules CSV file (optional)")
		configFile    = flags.String("config", "", "Path to run config YAML (optional)")
		outputDir     = flags.String("output", "", "Output directory for results (optional)")
		format        = flags.String("format", "text", "Output format: text, json, yaml, csv")
		trace         = flags.Bool("trace", false, "Include the decision trace")
		verbose       = flags.Bool("verbose", false, "Enable verbose output")
		help          = flags.BoolP("help", "h", false, "Show help message")
	)
	flags.String("mode", "velocity", "Allocation mode: velocity, stock_only")
	flags.Int("workers", 1, "Number of products allocated concurrently")

	_ = flags.Parse(os.Args[1:])

	log, flush := logging.New(os.Stderr, *verbose)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logr.NewContext(ctx, log)

	// Create command configuration
	config := commands.Config{
		ScenarioDir:   *scenarioDir,
		OutletsFile:   *outletsFile,
		ProductsFile:  *productsFile,
		StockFile:     *stockFile,
		PackRulesFile: *packRulesFile,
		ConfigFile:    *configFile,
		OutputDir:     *outputDir,
		Format:        *format,
		Trace:         *trace,
		Verbose:       *verbose,
		Help:          *help,
		Flags:         flags,
		Out:           os.Stdout,
	}

	// Create and execute command
	cmd := commands.NewAllocateCommand(config)

	if err := cmd.Execute(ctx); err != nil {
		log.Error(err, "allocation failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		flush()
		os.Exit(1)
	}
}
