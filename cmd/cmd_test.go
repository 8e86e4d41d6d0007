package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivortex/lead-scraper/internal/config"
	"github.com/shivortex/lead-scraper/internal/export"
	"github.com/shivortex/lead-scraper/internal/ingest"
)

const sheet = `name,category,address,city,phone,email,source_url
Acme Plumbing,plumbers,1 Main St,Austin,+1 512-555-0100,info@acme.example,https://dir.example/acme
ACME plumbing ,,1  main st,Austin,,,https://dir.example/acme-2
Bright Sparks,electricians,2 Side Rd,Austin,,sales@mailinator.com,https://dir.example/bright
,plumbers,4 Nowhere Ln,Austin,,,https://dir.example/x
`

// testConfig points cfg at a fresh SQLite store and lock file under a temp
// dir and returns that dir.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := cfg
	cfg = &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "leads.db")},
		Server: config.ServerConfig{Port: 8000},
		Ingest: config.IngestConfig{
			CollectorTimeoutSecs: 5,
			LockFile:             filepath.Join(dir, "ingest.lock"),
			SeedsFile:            filepath.Join(dir, "seeds.yaml"),
		},
		Fetch: config.FetchConfig{
			UserAgent:         "lead-scraper-test",
			TimeoutSecs:       5,
			MaxRetries:        1,
			RequestsPerSecond: 100,
			Burst:             10,
		},
		Overpass: config.OverpassConfig{BaseURL: "http://127.0.0.1:1/api/interpreter"},
	}
	t.Cleanup(func() { cfg = prev })
	return dir
}

// writeSeeds writes a seeds file importing a local CSV sheet.
func writeSeeds(t *testing.T, dir string) string {
	t.Helper()
	sheetPath := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(sheetPath, []byte(sheet), 0o644))

	seeds := "seeds:\n  - collector: file\n    url: " + sheetPath + "\n"
	seedsPath := filepath.Join(dir, "seeds.yaml")
	require.NoError(t, os.WriteFile(seedsPath, []byte(seeds), 0o644))
	return seedsPath
}

func runCommand(t *testing.T, cmd *cobra.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, nil)
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "ingest", "migrate", "export"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lead-scraper", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		flag string
		def  string
	}{
		{serveCmd, "port", "0"},
		{serveCmd, "ingest-every", "0s"},
		{serveCmd, "seeds", ""},
		{ingestCmd, "seeds", ""},
		{ingestCmd, "every", "0s"},
		{exportCmd, "format", "csv"},
		{exportCmd, "out", ""},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name()+"/"+tt.flag, func(t *testing.T) {
			f := tt.cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestMigrateCommand(t *testing.T) {
	dir := testConfig(t)

	out, err := runCommand(t, migrateCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite store is up to date")

	_, err = os.Stat(filepath.Join(dir, "leads.db"))
	assert.NoError(t, err)
}

func TestMigrateCommand_InvalidConfig(t *testing.T) {
	testConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := runCommand(t, migrateCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestIngestCommand_RunOnce(t *testing.T) {
	dir := testConfig(t)
	ingestSeeds = writeSeeds(t, dir)
	t.Cleanup(func() { ingestSeeds = "" })

	out, err := runCommand(t, ingestCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "attempted: 4  created: 2  updated: 1  skipped: 1")
	assert.Contains(t, out, "file "+filepath.Join(dir, "leads.csv")+": ok")
}

func TestIngestCommand_MissingSeeds(t *testing.T) {
	testConfig(t)

	_, err := runCommand(t, ingestCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read seeds")
}

func TestExportCommand(t *testing.T) {
	dir := testConfig(t)
	ingestSeeds = writeSeeds(t, dir)
	t.Cleanup(func() { ingestSeeds = "" })
	_, err := runCommand(t, ingestCmd)
	require.NoError(t, err)

	exportFormat = "csv"
	exportOut = filepath.Join(dir, "out")
	t.Cleanup(func() { exportFormat, exportOut = "csv", "" })

	out, err := runCommand(t, exportCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 leads to "+filepath.Join(dir, "out.csv"))

	f, err := os.Open(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, export.Columns, records[0])
	// The disposable address is dropped; the merge keeps the first phone.
	assert.Equal(t, "", records[2][7])
	assert.Equal(t, "+1 512-555-0100", records[1][6])
}

func TestExportCommand_UnknownFormat(t *testing.T) {
	testConfig(t)
	exportFormat = "pdf"
	t.Cleanup(func() { exportFormat = "csv" })

	_, err := runCommand(t, exportCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestExportPath(t *testing.T) {
	assert.Equal(t, "leads.xlsx", exportPath("", export.XLSX))
	assert.Equal(t, "out/leads.geojson", exportPath("out/leads", export.GeoJSON))
	assert.Equal(t, "out/custom.txt", exportPath("out/custom.txt", export.CSV))
}

func TestSeedsPath(t *testing.T) {
	testConfig(t)
	assert.Equal(t, "flag.yaml", seedsPath("flag.yaml"))
	assert.Equal(t, cfg.Ingest.SeedsFile, seedsPath(""))
}

func TestIngestRunner_LockHeldSkipsRun(t *testing.T) {
	dir := testConfig(t)
	seeds := writeSeeds(t, dir)

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	held := ingest.NewRunLock(cfg.Ingest.LockFile)
	require.NoError(t, held.TryLock())
	defer held.Unlock() //nolint:errcheck

	r := &ingestRunner{store: st, registry: buildRegistry(), seedsPath: seeds, lockPath: cfg.Ingest.LockFile}
	report, err := r.run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)

	_, total, err := st.Query(context.Background(), nil, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
