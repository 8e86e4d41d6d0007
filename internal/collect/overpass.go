package collect

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shivortex/lead-scraper/internal/fetcher"
	"github.com/shivortex/lead-scraper/internal/model"
)

// FormPoster sends a form-encoded POST and returns the response body.
type FormPoster interface {
	PostForm(ctx context.Context, url string, form url.Values) (io.ReadCloser, error)
}

// categoryTags maps lead categories to the OSM tags that identify them.
var categoryTags = map[string][]string{
	"accountants":  {"office=accountant"},
	"cafes":        {"amenity=cafe"},
	"consultants":  {"office=consulting", "office=company"},
	"dentists":     {"amenity=dentist", "healthcare=dentist"},
	"doctors":      {"amenity=doctors", "amenity=clinic", "healthcare=doctor"},
	"electricians": {"craft=electrician", "shop=electrical"},
	"gyms":         {"leisure=fitness_centre"},
	"hotels":       {"tourism=hotel"},
	"lawyers":      {"office=lawyer"},
	"plumbers":     {"craft=plumber", "shop=plumbing"},
	"restaurants":  {"amenity=restaurant"},
	"salons":       {"shop=hairdresser", "shop=beauty"},
}

// Tags that describe what a feature is, in priority order.
var kindTags = []string{"amenity", "shop", "office", "craft", "healthcare", "leisure", "tourism"}

type osmElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *osmCenter        `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type osmCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OverpassCollector queries OpenStreetMap through the Overpass API.
type OverpassCollector struct {
	post    FormPoster
	baseURL string
}

// NewOverpassCollector creates an Overpass collector posting to baseURL.
func NewOverpassCollector(p FormPoster, baseURL string) *OverpassCollector {
	return &OverpassCollector{post: p, baseURL: baseURL}
}

// Name implements Collector.
func (c *OverpassCollector) Name() string { return "overpass" }

// Collect implements Collector. The query is params["query"] verbatim, or is
// built from the seed category within the named city (or params["bbox"] as
// "south,west,north,east").
func (c *OverpassCollector) Collect(_ context.Context, seed Seed) (*Stream, error) {
	query, err := overpassQuery(seed)
	if err != nil {
		return nil, Unavailable(c.Name(), seed, err)
	}

	return NewStream(c.Name(), seed, func(ctx context.Context, yield func(model.RawListing) bool, skip func()) error {
		body, err := c.post.PostForm(ctx, c.baseURL, url.Values{"data": {query}})
		if err != nil {
			return eris.Wrap(err, "overpass: query")
		}
		defer body.Close() //nolint:errcheck

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		items, errs := fetcher.StreamJSONArrayField[osmElement](ctx, body, "elements")
		for it := range items {
			if it.Err != nil || it.Value.ID == 0 || it.Value.Type == "" {
				skip()
				continue
			}
			if !yield(osmListing(it.Value, seed)) {
				return nil
			}
		}
		return <-errs
	}), nil
}

func overpassQuery(seed Seed) (string, error) {
	if q := strings.TrimSpace(seed.Param("query", "")); q != "" {
		return q, nil
	}

	cat := strings.ToLower(strings.TrimSpace(seed.Category))
	if cat == "" {
		return "", eris.New("overpass: seed needs a category or a query")
	}
	tags, ok := categoryTags[cat]
	if !ok {
		if strings.Contains(cat, "=") {
			tags = []string{cat}
		} else {
			tags = []string{"amenity=" + cat}
		}
	}

	var scope, header string
	switch {
	case seed.Param("bbox", "") != "":
		bbox, err := parseBBox(seed.Params["bbox"])
		if err != nil {
			return "", err
		}
		scope = "(" + bbox + ")"
	case strings.TrimSpace(seed.City) != "":
		header = fmt.Sprintf("area[\"name\"=%s][\"boundary\"=\"administrative\"]->.a;\n", quoteOSM(strings.TrimSpace(seed.City)))
		scope = "(area.a)"
	default:
		return "", eris.New("overpass: seed needs a city or a bbox")
	}

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n")
	b.WriteString(header)
	b.WriteString("(\n")
	for _, t := range tags {
		k, v, _ := strings.Cut(t, "=")
		fmt.Fprintf(&b, "  nwr[%s=%s]%s;\n", quoteOSM(k), quoteOSM(v), scope)
	}
	b.WriteString(");\nout center tags;")
	return b.String(), nil
}

func parseBBox(s string) (string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return "", eris.Errorf("overpass: bbox %q must be south,west,north,east", s)
	}
	out := make([]string, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", eris.Wrapf(err, "overpass: bbox %q", s)
		}
		out[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(out, ","), nil
}

func quoteOSM(s string) string {
	return strconv.Quote(s)
}

func osmListing(e osmElement, seed Seed) model.RawListing {
	tag := func(keys ...string) *string {
		for _, k := range keys {
			if v := text(e.Tags[k]); v != nil {
				return v
			}
		}
		return nil
	}

	l := model.RawListing{
		Name:      tag("name"),
		City:      tag("addr:city"),
		Phone:     tag("phone", "contact:phone"),
		Email:     tag("email", "contact:email"),
		Website:   tag("website", "contact:website", "url"),
		SourceURL: model.Str(fmt.Sprintf("https://www.openstreetmap.org/%s/%d", e.Type, e.ID)),
	}

	street := strings.TrimSpace(strings.Join([]string{e.Tags["addr:housenumber"], e.Tags["addr:street"]}, " "))
	l.Address = text(street)

	for _, k := range kindTags {
		if v := strings.TrimSpace(e.Tags[k]); v != "" && v != "yes" {
			l.Category = text(strings.ReplaceAll(v, "_", " "))
			break
		}
	}
	if l.Category == nil {
		l.Category = text(seed.Category)
	}
	if l.City == nil {
		l.City = text(seed.City)
	}

	switch {
	case e.Lat != nil && e.Lon != nil:
		l.Latitude, l.Longitude = e.Lat, e.Lon
	case e.Center != nil:
		l.Latitude, l.Longitude = model.Float(e.Center.Lat), model.Float(e.Center.Lon)
	}
	return l
}
