package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// Scenario file names inside a scenario directory
const (
	OutletsFile     = "outlets.csv"
	ProductsFile    = "products.csv"
	OutletStockFile = "outlet_stock.csv"
	PackRulesFile   = "pack_rules.csv"
)

var (
	outletsHeader     = []string{"outlet_id", "store_code", "tier", "turnover_rate"}
	productsHeader    = []string{"product_id", "name", "brand", "supplier", "category", "hub_stock", "is_new", "restocked_recently", "tags", "pack_size", "outer_multiple", "rounding_mode", "enforce_outer", "carton_size", "carton_mandatory", "excluded_outlets"}
	outletStockHeader = []string{"product_id", "outlet_id", "stock", "sales_velocity", "turnover_rate"}
	packRulesHeader   = []string{"scope", "key", "pack_size", "outer_multiple", "rounding_mode", "enforce_outer", "carton_size", "carton_mandatory"}
)

// Snapshot is everything one planning run reads from disk
type Snapshot struct {
	Outlets   []*entities.Outlet
	Products  []*entities.Product
	PackRules []entities.ScopedPackRule
}

// Loader handles loading allocation snapshots from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadScenario loads outlets, products and outlet stock from a directory.
// pack_rules.csv is optional.
func (l *Loader) LoadScenario(dir string) (*Snapshot, error) {
	outlets, err := l.LoadOutlets(filepath.Join(dir, OutletsFile))
	if err != nil {
		return nil, err
	}
	products, err := l.LoadProducts(filepath.Join(dir, ProductsFile))
	if err != nil {
		return nil, err
	}
	if err := l.LoadOutletStock(filepath.Join(dir, OutletStockFile), products); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{Outlets: outlets, Products: products}
	rulesPath := filepath.Join(dir, PackRulesFile)
	if _, err := os.Stat(rulesPath); err == nil {
		rules, err := l.LoadPackRules(rulesPath)
		if err != nil {
			return nil, err
		}
		snapshot.PackRules = rules
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat pack rules file %s: %w", rulesPath, err)
	}
	return snapshot, nil
}

// LoadOutlets loads the outlet roster from a CSV file
func (l *Loader) LoadOutlets(filename string) ([]*entities.Outlet, error) {
	records, err := readRecords(filename, "outlets", outletsHeader)
	if err != nil {
		return nil, err
	}

	var outlets []*entities.Outlet
	for i, record := range records {
		outlet, err := parseOutlet(record)
		if err != nil {
			return nil, fmt.Errorf("outlets CSV row %d: %w", i+2, err)
		}
		outlets = append(outlets, outlet)
	}
	return outlets, nil
}

// LoadProducts loads product snapshots (hub stock and attributes) from a CSV file
func (l *Loader) LoadProducts(filename string) ([]*entities.Product, error) {
	records, err := readRecords(filename, "products", productsHeader)
	if err != nil {
		return nil, err
	}

	var products []*entities.Product
	for i, record := range records {
		product, err := parseProduct(record)
		if err != nil {
			return nil, fmt.Errorf("products CSV row %d: %w", i+2, err)
		}
		products = append(products, product)
	}
	return products, nil
}

// LoadOutletStock applies per-outlet stock and demand signals to already loaded products
func (l *Loader) LoadOutletStock(filename string, products []*entities.Product) error {
	records, err := readRecords(filename, "outlet stock", outletStockHeader)
	if err != nil {
		return err
	}

	byID := make(map[entities.ProductID]*entities.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for i, record := range records {
		product, ok := byID[entities.ProductID(strings.TrimSpace(record[0]))]
		if !ok {
			return fmt.Errorf("outlet stock CSV row %d: unknown product: %s", i+2, record[0])
		}
		outletID := entities.OutletID(strings.TrimSpace(record[1]))
		if outletID == "" {
			return fmt.Errorf("outlet stock CSV row %d: outlet_id cannot be empty", i+2)
		}

		stock, err := parseQuantity("stock", record[2])
		if err != nil {
			return fmt.Errorf("outlet stock CSV row %d: %w", i+2, err)
		}
		velocity, err := parseFloat("sales_velocity", record[3])
		if err != nil {
			return fmt.Errorf("outlet stock CSV row %d: %w", i+2, err)
		}
		turnover, err := parseFloat("turnover_rate", record[4])
		if err != nil {
			return fmt.Errorf("outlet stock CSV row %d: %w", i+2, err)
		}
		if stock < 0 || velocity < 0 || turnover < 0 {
			return fmt.Errorf("outlet stock CSV row %d: values cannot be negative", i+2)
		}

		product.SetOutletSignals(outletID, stock, velocity, turnover)
	}
	return nil
}

// LoadPackRules loads brand, supplier, category and product pack rules from a CSV file
func (l *Loader) LoadPackRules(filename string) ([]entities.ScopedPackRule, error) {
	records, err := readRecords(filename, "pack rules", packRulesHeader)
	if err != nil {
		return nil, err
	}

	var rules []entities.ScopedPackRule
	for i, record := range records {
		scope, err := entities.ParseRuleScope(record[0])
		if err != nil {
			return nil, fmt.Errorf("pack rules CSV row %d: %w", i+2, err)
		}
		key := strings.TrimSpace(record[1])
		if key == "" {
			return nil, fmt.Errorf("pack rules CSV row %d: key cannot be empty", i+2)
		}
		pack, carton, err := parsePackColumns(record[2:])
		if err != nil {
			return nil, fmt.Errorf("pack rules CSV row %d: %w", i+2, err)
		}

		rule := entities.ScopedPackRule{Scope: scope, Key: key, Carton: carton}
		if pack != nil {
			rule.Pack = *pack
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func readRecords(filename, kind string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", kind)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", kind, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", kind, i+2, len(expectedHeader), len(record))
		}
	}
	return records[1:], nil
}

// Helper functions for parsing CSV records

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		name := strings.ToLower(strings.TrimSpace(actual[i]))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name != col {
			return false
		}
	}

	return true
}

func parseOutlet(record []string) (*entities.Outlet, error) {
	tier, err := entities.ParseTier(record[2])
	if err != nil {
		return nil, err
	}

	turnover := 0.0
	if strings.TrimSpace(record[3]) != "" {
		turnover, err = parseFloat("turnover_rate", record[3])
		if err != nil {
			return nil, err
		}
	}

	return entities.NewOutlet(
		entities.OutletID(strings.TrimSpace(record[0])),
		strings.TrimSpace(record[1]),
		tier,
		turnover,
	)
}

func parseProduct(record []string) (*entities.Product, error) {
	hubStock, err := parseQuantity("hub_stock", record[5])
	if err != nil {
		return nil, err
	}

	product, err := entities.NewProduct(entities.ProductID(strings.TrimSpace(record[0])), hubStock)
	if err != nil {
		return nil, err
	}
	product.Name = strings.TrimSpace(record[1])
	product.Brand = strings.TrimSpace(record[2])
	product.Supplier = strings.TrimSpace(record[3])
	product.Category = strings.TrimSpace(record[4])

	if product.IsNew, err = parseBool("is_new", record[6]); err != nil {
		return nil, err
	}
	if product.RestockedRecently, err = parseBool("restocked_recently", record[7]); err != nil {
		return nil, err
	}
	for _, tag := range splitList(record[8]) {
		product.AddTag(tag)
	}

	pack, carton, err := parsePackColumns(record[9:15])
	if err != nil {
		return nil, err
	}
	product.PackRule = pack
	product.CartonRule = carton

	for _, outlet := range splitList(record[15]) {
		product.Exclude(entities.OutletID(outlet))
	}

	if err := product.Validate(); err != nil {
		return nil, err
	}
	return product, nil
}

// parsePackColumns reads pack_size, outer_multiple, rounding_mode, enforce_outer,
// carton_size, carton_mandatory. Blank sizes leave the rule unset.
func parsePackColumns(cols []string) (*entities.PackRule, *entities.CartonRule, error) {
	packSize, err := parseOptionalQuantity("pack_size", cols[0])
	if err != nil {
		return nil, nil, err
	}
	outer, err := parseOptionalQuantity("outer_multiple", cols[1])
	if err != nil {
		return nil, nil, err
	}
	mode, err := entities.ParseRoundingMode(cols[2])
	if err != nil {
		return nil, nil, err
	}
	enforceOuter, err := parseBool("enforce_outer", cols[3])
	if err != nil {
		return nil, nil, err
	}
	cartonSize, err := parseOptionalQuantity("carton_size", cols[4])
	if err != nil {
		return nil, nil, err
	}
	cartonMandatory, err := parseBool("carton_mandatory", cols[5])
	if err != nil {
		return nil, nil, err
	}

	var pack *entities.PackRule
	if packSize > 0 || outer > 0 {
		pack = &entities.PackRule{
			PackSize:      packSize,
			OuterMultiple: outer,
			RoundingMode:  mode,
			EnforceOuter:  enforceOuter,
		}
		if err := pack.Validate(); err != nil {
			return nil, nil, err
		}
	}

	var carton *entities.CartonRule
	if cartonSize > 0 {
		carton = &entities.CartonRule{CartonSize: cartonSize, Mandatory: cartonMandatory}
	}
	return pack, carton, nil
}

func parseQuantity(field, s string) (entities.Quantity, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", field, s)
	}
	return entities.Quantity(v), nil
}

func parseOptionalQuantity(field, s string) (entities.Quantity, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	q, err := parseQuantity(field, s)
	if err != nil {
		return 0, err
	}
	if q < 0 {
		return 0, fmt.Errorf("invalid %s: %s (cannot be negative)", field, s)
	}
	return q, nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", field, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: %s (must be a finite number)", field, s)
	}
	return v, nil
}

func parseBool(field, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "no", "n", "0":
		return false, nil
	case "true", "yes", "y", "1":
		return true, nil
	default:
		return false, fmt.Errorf("invalid %s: %s (expected true or false)", field, s)
	}
}

// splitList splits a semicolon separated cell, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
