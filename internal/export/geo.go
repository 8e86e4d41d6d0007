package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/scorer"
)

// properties returns the non-geometry attributes of a lead. Absent values
// are JSON null.
func properties(l model.Lead) map[string]any {
	q := scorer.Quality(l)
	return map[string]any{
		"id":            l.ID,
		"name":          l.Name,
		"category":      l.Category,
		"address":       l.Address,
		"city":          l.City,
		"website":       l.Website,
		"phone":         l.Phone,
		"email":         l.Email,
		"source_url":    l.SourceURL,
		"quality_score": q.Score,
		"quality_tier":  q.Tier,
	}
}

// point returns the WGS84 point of a lead, or nil when it has no
// coordinates.
func point(l model.Lead) *geom.Point {
	if l.Latitude == nil || l.Longitude == nil {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{*l.Longitude, *l.Latitude}).SetSRID(4326)
}

// WriteGeoJSON writes leads as a FeatureCollection. Leads without
// coordinates become features with a null geometry.
func WriteGeoJSON(ctx context.Context, src Source, w io.Writer) (int, error) {
	leads, err := collect(ctx, src)
	if err != nil {
		return 0, err
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(leads))}
	for _, l := range leads {
		feat := &geojson.Feature{
			ID:         strconv.FormatInt(l.ID, 10),
			Properties: properties(l),
		}
		if p := point(l); p != nil {
			feat.Geometry = p
		}
		fc.Features = append(fc.Features, feat)
	}

	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return 0, eris.Wrap(err, "geojson: encode")
	}
	return len(leads), nil
}

// dbfTextSize is the widest DBF character field.
const dbfTextSize = 254

// shpFields are the DBF attribute columns; names are limited to ten bytes.
var shpFields = []shp.Field{
	shp.NumberField("id", 18),
	shp.StringField("name", dbfTextSize),
	shp.StringField("category", dbfTextSize),
	shp.StringField("address", dbfTextSize),
	shp.StringField("city", dbfTextSize),
	shp.StringField("website", dbfTextSize),
	shp.StringField("phone", 32),
	shp.StringField("email", dbfTextSize),
	shp.StringField("source_url", dbfTextSize),
	shp.FloatField("quality", 6, 1),
	shp.StringField("tier", 8),
}

// WriteShapefile writes leads with coordinates as a point shapefile at path
// (.shp, .shx and .dbf). Leads without coordinates are counted as skipped.
func WriteShapefile(ctx context.Context, src Source, path string) (written, skipped int, err error) {
	base := strings.TrimSuffix(path, ".shp")

	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "shp: create %s", base)
	}
	if err := w.SetFields(shpFields); err != nil {
		w.Close()
		return 0, 0, eris.Wrap(err, "shp: set fields")
	}

	err = src.Each(ctx, func(l model.Lead) error {
		p := point(l)
		if p == nil {
			skipped++
			return nil
		}
		q := scorer.Quality(l)

		idx := int(w.Write(&shp.Point{X: p.X(), Y: p.Y()}))
		values := []any{
			int(l.ID),
			l.Name, l.Category, l.Address, l.City, l.Website, l.Phone, l.Email, l.SourceURL,
			q.Score, q.Tier,
		}
		for i, v := range values {
			if s, ok := v.(*string); ok {
				v = truncate(model.Deref(s), int(shpFields[i].Size))
			}
			if err := w.WriteAttribute(idx, i, v); err != nil {
				return eris.Wrapf(err, "shp: write attribute %d of lead %d", i, l.ID)
			}
		}
		written++
		return nil
	})
	w.Close()
	if err != nil {
		return written, skipped, eris.Wrap(err, "shp: export")
	}

	// go-shp names the attribute table "<base>dbf"; move it next to the
	// other two files.
	if _, statErr := os.Stat(base + "dbf"); statErr == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return written, skipped, eris.Wrap(err, "shp: rename dbf")
		}
	}
	return written, skipped, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
