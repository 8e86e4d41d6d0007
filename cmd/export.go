package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shivortex/lead-scraper/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored lead to a file",
	Long:  "Exports the lead store as csv, json, xlsx, geojson or shp. Shapefiles include only leads with coordinates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		out := exportPath(exportOut, format)

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := export.ToFile(cmd.Context(), st, format, out)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d leads to %s", res.Written, res.Path)
		if res.Skipped > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d without coordinates skipped)", res.Skipped)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

// exportPath defaults the output to leads.<format> and appends the format
// extension when out has none.
func exportPath(out string, f export.Format) string {
	if out == "" {
		return "leads." + string(f)
	}
	if filepath.Ext(out) == "" && !strings.HasSuffix(out, string(filepath.Separator)) {
		return out + "." + string(f)
	}
	return out
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, json, xlsx, geojson, shp")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default leads.<format>)")
	rootCmd.AddCommand(exportCmd)
}
