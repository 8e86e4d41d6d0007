// Package export writes stored leads to flat files and GIS formats.
package export

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/scorer"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	CSV       Format = "csv"
	JSON      Format = "json"
	XLSX      Format = "xlsx"
	GeoJSON   Format = "geojson"
	Shapefile Format = "shp"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{CSV, JSON, XLSX, GeoJSON, Shapefile}
}

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Formats(), f) {
		return "", eris.Errorf("export: unknown format %q (known: %v)", s, Formats())
	}
	return f, nil
}

// Source iterates stored leads in id order. store.Store implements it.
type Source interface {
	Each(ctx context.Context, fn func(model.Lead) error) error
}

// Columns is the tabular export header. The quality columns are computed at
// export time by scorer.Quality.
var Columns = []string{
	"id", "name", "category", "address", "city", "website",
	"phone", "email", "latitude", "longitude", "source_url",
	"quality_score", "quality_tier",
}

// row renders a lead as strings in Columns order. Absent values are empty.
func row(l model.Lead) []string {
	q := scorer.Quality(l)
	return []string{
		strconv.FormatInt(l.ID, 10),
		model.Deref(l.Name),
		model.Deref(l.Category),
		model.Deref(l.Address),
		model.Deref(l.City),
		model.Deref(l.Website),
		model.Deref(l.Phone),
		model.Deref(l.Email),
		formatFloat(l.Latitude),
		formatFloat(l.Longitude),
		model.Deref(l.SourceURL),
		strconv.FormatFloat(q.Score, 'f', -1, 64),
		q.Tier,
	}
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Result summarizes an export.
type Result struct {
	Format  Format
	Path    string
	Written int
	// Skipped counts leads a geometry-only format could not represent.
	Skipped int
}

// ToFile exports every lead from src to path in format f. For Shapefile the
// .shp, .shx and .dbf files share path's base name.
func ToFile(ctx context.Context, src Source, f Format, path string) (*Result, error) {
	res := &Result{Format: f, Path: path}
	log := zap.L().With(zap.String("component", "export"), zap.String("format", string(f)))

	if f == Shapefile {
		written, skipped, err := WriteShapefile(ctx, src, path)
		if err != nil {
			return nil, err
		}
		res.Written, res.Skipped = written, skipped
		log.Info("export: complete", zap.String("path", path), zap.Int("written", written), zap.Int("skipped", skipped))
		return res, nil
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s", path)
	}

	var n int
	switch f {
	case CSV:
		n, err = WriteCSV(ctx, src, out)
	case JSON:
		n, err = WriteJSON(ctx, src, out)
	case XLSX:
		n, err = WriteXLSX(ctx, src, out)
	case GeoJSON:
		n, err = WriteGeoJSON(ctx, src, out)
	default:
		err = eris.Errorf("export: unknown format %q", f)
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = eris.Wrapf(closeErr, "export: close %s", path)
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	res.Written = n
	log.Info("export: complete", zap.String("path", path), zap.Int("written", n))
	return res, nil
}

// collect gathers every lead from src; XLSX and GeoJSON need the full set
// before encoding.
func collect(ctx context.Context, src Source) ([]model.Lead, error) {
	var leads []model.Lead
	err := src.Each(ctx, func(l model.Lead) error {
		leads = append(leads, l)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "export: read leads")
	}
	return leads, nil
}
