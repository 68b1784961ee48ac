package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/stockalloc/pkg/infrastructure/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "outlets.csv", `outlet_id,store_code,tier,turnover_rate
O1,S-O1,B,
O2,S-O2,B,
`)
	writeFile(t, dir, "products.csv", `product_id,name,brand,supplier,category,hub_stock,is_new,restocked_recently,tags,pack_size,outer_multiple,rounding_mode,enforce_outer,carton_size,carton_mandatory,excluded_outlets
P1,Cola 330ml,Fizz,ACME,drinks,50,false,false,,,,,,,,
P2,Lemonade,Fizz,ACME,drinks,100,false,false,,,,,,,,
P3,Water,Clear,ACME,drinks,4,false,false,,,,,,,,
`)
	writeFile(t, dir, "outlet_stock.csv", `product_id,outlet_id,stock,sales_velocity,turnover_rate
P1,O1,0,5,10
P1,O2,20,5,10
P2,O1,100,1,1
P2,O2,100,1,1
P3,O1,0,10,2
`)
	return dir
}

func TestAllocateCommand_ScenarioCSV(t *testing.T) {
	var out bytes.Buffer
	cmd := NewAllocateCommand(Config{ScenarioDir: writeScenario(t), Format: "csv", Out: &out})

	require.NoError(t, cmd.Execute(context.Background()))

	rows := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, rows, 3)
	assert.True(t, strings.HasPrefix(rows[1], "P1,O1,28,"), rows[1])
	assert.True(t, strings.HasPrefix(rows[2], "P1,O2,11,"), rows[2])
}

func TestAllocateCommand_OutputDirArtifacts(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "results")
	var out bytes.Buffer
	cmd := NewAllocateCommand(Config{
		ScenarioDir: writeScenario(t),
		Format:      "json",
		OutputDir:   outDir,
		Trace:       true,
		Out:         &out,
	})

	require.NoError(t, cmd.Execute(context.Background()))
	assert.Empty(t, out.String())

	assert.FileExists(t, filepath.Join(outDir, "allocation_results.json"))

	metrics, err := os.ReadFile(filepath.Join(outDir, MetricsFile))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "stockalloc_lines_total 2")
	assert.Contains(t, string(metrics), "stockalloc_units_total 39")

	data, err := os.ReadFile(filepath.Join(outDir, ConfigFile))
	require.NoError(t, err)
	var written config.File
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, "velocity", written.Mode)
	assert.Equal(t, 1, written.Workers)
}

func TestAllocateCommand_ConfigAndFlags(t *testing.T) {
	dir := writeScenario(t)
	writeFile(t, dir, ConfigFile, "mode: stock_only\nworkers: 2\n")

	flags := pflag.NewFlagSet("stockalloc", pflag.ContinueOnError)
	flags.String("mode", "velocity", "")
	flags.Int("workers", 1, "")
	require.NoError(t, flags.Parse([]string{"--workers", "3"}))

	outDir := t.TempDir()
	cmd := NewAllocateCommand(Config{
		ScenarioDir: dir,
		Format:      "yaml",
		OutputDir:   outDir,
		Flags:       flags,
		Out:         &bytes.Buffer{},
	})
	require.NoError(t, cmd.Execute(context.Background()))

	data, err := os.ReadFile(filepath.Join(outDir, ConfigFile))
	require.NoError(t, err)
	var written config.File
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, "stock_only", written.Mode)
	assert.Equal(t, 3, written.Workers)

	results, err := os.ReadFile(filepath.Join(outDir, "allocation_results.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(results), "mode: stock_only")
}

func TestAllocateCommand_IndividualFiles(t *testing.T) {
	dir := writeScenario(t)
	rules := writeFile(t, t.TempDir(), "rules.csv", `scope,key,pack_size,outer_multiple,rounding_mode,enforce_outer,carton_size,carton_mandatory
brand,Fizz,6,,floor,false,,
`)

	var out bytes.Buffer
	cmd := NewAllocateCommand(Config{
		OutletsFile:   filepath.Join(dir, "outlets.csv"),
		ProductsFile:  filepath.Join(dir, "products.csv"),
		StockFile:     filepath.Join(dir, "outlet_stock.csv"),
		PackRulesFile: rules,
		Format:        "text",
		Verbose:       true,
		Out:           &out,
	})
	require.NoError(t, cmd.Execute(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Pack Rules: 1")
	assert.Contains(t, text, "run events recorded")
	assert.Contains(t, text, "Allocation plan complete!")
}

func TestAllocateCommand_Errors(t *testing.T) {
	scenario := writeScenario(t)

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "no inputs",
			config:  Config{},
			wantErr: "must specify either --scenario",
		},
		{
			name:    "bad format",
			config:  Config{ScenarioDir: scenario, Format: "xml"},
			wantErr: "unsupported output format: xml",
		},
		{
			name:    "missing scenario files",
			config:  Config{ScenarioDir: t.TempDir()},
			wantErr: "file not found",
		},
		{
			name:    "missing config file",
			config:  Config{ScenarioDir: scenario, ConfigFile: filepath.Join(scenario, "nope.yaml")},
			wantErr: "Config file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Out = &bytes.Buffer{}
			err := NewAllocateCommand(tt.config).Execute(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAllocateCommand_InvalidConfigFile(t *testing.T) {
	dir := writeScenario(t)
	writeFile(t, dir, ConfigFile, "reserve:\n  percent: 1.5\n")

	err := NewAllocateCommand(Config{ScenarioDir: dir, Out: &bytes.Buffer{}}).Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading config")
}

func TestAllocateCommand_CancelledRunStillWritesResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := NewAllocateCommand(Config{ScenarioDir: writeScenario(t), Out: &out}).Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), "Status: cancelled, results are partial")
}

func TestAllocateCommand_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewAllocateCommand(Config{Help: true, Out: &out}).Execute(context.Background()))
	assert.Contains(t, out.String(), "--scenario <dir>")
}
