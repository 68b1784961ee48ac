package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vsinha/stockalloc/pkg/application/dto"
	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// Output file names written when an output directory is set
const (
	TextFile        = "allocation_results.txt"
	JSONFile        = "allocation_results.json"
	YAMLFile        = "allocation_results.yaml"
	AllocationsFile = "allocations.csv"
	TraceFile       = "decision_trace.csv"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	// Trace includes every product's decision trace
	Trace      bool
	InputFiles map[string]string
	// Out receives console output; defaults to os.Stdout
	Out io.Writer
}

func (c Config) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Generate creates output in the specified format
func Generate(result *dto.RunResult, config Config) error {
	switch config.Format {
	case "text", "":
		return generateTextOutput(result, config)
	case "json":
		return generateEncodedOutput(result, config, JSONFile, func(w io.Writer, v any) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		})
	case "yaml":
		return generateEncodedOutput(result, config, YAMLFile, func(w io.Writer, v any) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		})
	case "csv":
		return generateCSVOutput(result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput creates human-readable text output
func generateTextOutput(result *dto.RunResult, config Config) error {
	w := config.out()
	if err := writeText(w, result, config.Trace); err != nil {
		return err
	}

	if config.OutputDir == "" {
		return nil
	}
	filename, err := createOutputFile(config.OutputDir, TextFile, func(f io.Writer) error {
		return writeText(f, result, config.Trace)
	})
	if err != nil {
		return err
	}
	if config.Verbose {
		fmt.Fprintf(w, "💾 Results saved to: %s\n", filename)
	}
	return nil
}

func writeText(w io.Writer, result *dto.RunResult, trace bool) error {
	s := result.Summary
	fmt.Fprintf(w, "📊 Allocation Results Summary\n")
	fmt.Fprintf(w, "=============================\n\n")

	fmt.Fprintf(w, "Run: %s (%s)\n", result.RunID, result.Mode)
	fmt.Fprintf(w, "Products: %d processed, %d with lines, %d skipped, %d failed\n",
		s.ProductsProcessed, s.ProductsWithLines, s.ProductsSkipped, s.ProductsFailed)
	fmt.Fprintf(w, "Lines: %d\n", s.TotalLines)
	fmt.Fprintf(w, "Units: %d\n", s.TotalUnits)
	fmt.Fprintf(w, "Outlets Touched: %d\n", s.OutletsTouched)
	fmt.Fprintf(w, "Run Time: %v\n", result.Duration)
	if result.Cancelled {
		fmt.Fprintf(w, "Status: cancelled, results are partial\n")
	}
	fmt.Fprintln(w)

	if s.TotalLines > 0 {
		fmt.Fprintf(w, "📦 Allocation Lines:\n")
		fmt.Fprintf(w, "%-15s %-10s %-8s %-12s %-10s %-6s %-6s\n",
			"Product", "Outlet", "Qty", "Demand", "Share", "Capped", "Seed")
		fmt.Fprintf(w, "%-15s %-10s %-8s %-12s %-10s %-6s %-6s\n",
			"---------------", "----------", "--------", "------------", "----------", "------", "------")

		for _, line := range result.AllLines() {
			fmt.Fprintf(w, "%-15s %-10s %-8d %-12.2f %-10.4f %-6t %-6t\n",
				line.ProductID,
				line.OutletID,
				line.Quantity,
				line.DemandScore,
				line.Proportion,
				line.Capped,
				line.Seed)
		}
		fmt.Fprintln(w)
	}

	if trace {
		fmt.Fprintf(w, "🔍 Decision Trace:\n")
		for _, p := range result.Products {
			fmt.Fprintf(w, "%s (hub %d, reserve %d, allocatable %d)\n",
				p.ProductID, p.HubStock, p.Reserve, p.Allocatable)
			for _, e := range p.Trace {
				target := string(e.OutletID)
				if e.IsProductLevel() {
					target = "*"
				}
				fmt.Fprintf(w, "  %-10s %-24s candidate=%-6d final=%-6d %s\n",
					target, e.Reason, e.CandidateQty, e.FinalQty, e.Detail)
			}
		}
		fmt.Fprintln(w)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "⚠️  Warnings:\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// generateEncodedOutput writes JSON or YAML to stdout, or to a file when an
// output directory is set
func generateEncodedOutput(result *dto.RunResult, config Config, name string, encode func(io.Writer, any) error) error {
	view := result
	if !config.Trace {
		view = withoutTrace(result)
	}

	if config.OutputDir == "" {
		if err := encode(config.out(), view); err != nil {
			return fmt.Errorf("failed to encode %s: %w", config.Format, err)
		}
		return nil
	}

	filename, err := createOutputFile(config.OutputDir, name, func(f io.Writer) error {
		return encode(f, view)
	})
	if err != nil {
		return err
	}
	if config.Verbose {
		fmt.Fprintf(config.out(), "💾 %s results saved to: %s\n", config.Format, filename)
	}
	return nil
}

// generateCSVOutput writes allocation lines, and the decision trace when
// requested. Without an output directory the lines go to stdout.
func generateCSVOutput(result *dto.RunResult, config Config) error {
	if config.OutputDir == "" {
		return writeAllocationsCSV(config.out(), result)
	}

	allocFile, err := createOutputFile(config.OutputDir, AllocationsFile, func(f io.Writer) error {
		return writeAllocationsCSV(f, result)
	})
	if err != nil {
		return fmt.Errorf("failed to write allocations CSV: %w", err)
	}

	traceFile := ""
	if config.Trace {
		traceFile, err = createOutputFile(config.OutputDir, TraceFile, func(f io.Writer) error {
			return writeTraceCSV(f, result)
		})
		if err != nil {
			return fmt.Errorf("failed to write decision trace CSV: %w", err)
		}
	}

	if config.Verbose {
		fmt.Fprintf(config.out(), "💾 CSV results saved to:\n")
		fmt.Fprintf(config.out(), "  Allocations: %s\n", allocFile)
		if traceFile != "" {
			fmt.Fprintf(config.out(), "  Decision Trace: %s\n", traceFile)
		}
	}
	return nil
}

func writeAllocationsCSV(w io.Writer, result *dto.RunResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"product_id", "outlet_id", "quantity", "demand_score", "proportion", "capped", "seed"}); err != nil {
		return err
	}
	for _, line := range result.AllLines() {
		record := []string{
			string(line.ProductID),
			string(line.OutletID),
			formatQty(line.Quantity),
			strconv.FormatFloat(line.DemandScore, 'f', 4, 64),
			strconv.FormatFloat(line.Proportion, 'f', 6, 64),
			strconv.FormatBool(line.Capped),
			strconv.FormatBool(line.Seed),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTraceCSV(w io.Writer, result *dto.RunResult) error {
	cw := csv.NewWriter(w)
	header := []string{
		"product_id", "outlet_id", "reason", "stock", "hub_stock", "reserve", "allocatable",
		"demand", "proportion", "candidate_qty", "final_qty", "cap_limit", "near_miss", "detail",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range result.Products {
		for _, e := range p.Trace {
			record := []string{
				string(e.ProductID),
				string(e.OutletID),
				e.Reason.String(),
				formatQty(e.Stock),
				formatQty(e.HubStock),
				formatQty(e.Reserve),
				formatQty(e.Allocatable),
				strconv.FormatFloat(e.Demand, 'f', 4, 64),
				strconv.FormatFloat(e.Proportion, 'f', 6, 64),
				formatQty(e.CandidateQty),
				formatQty(e.FinalQty),
				formatCap(e.CapLimit),
				strconv.FormatBool(e.NearMiss),
				e.Detail,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func createOutputFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := filepath.Join(dir, name)
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", filename, err)
	}
	return filename, nil
}

func withoutTrace(result *dto.RunResult) *dto.RunResult {
	view := *result
	view.Products = make([]dto.ProductResult, len(result.Products))
	for i, p := range result.Products {
		p.Trace = nil
		view.Products[i] = p
	}
	return &view
}

func formatQty(q entities.Quantity) string {
	return strconv.FormatInt(int64(q), 10)
}

// formatCap leaves unlimited caps blank
func formatCap(q entities.Quantity) string {
	if q <= 0 || q == entities.Quantity(1<<63-1) {
		return ""
	}
	return formatQty(q)
}
