package collect

import (
	"context"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/shivortex/lead-scraper/internal/fetcher"
	"github.com/shivortex/lead-scraper/internal/model"
)

// Opener resolves a location to a readable stream.
type Opener interface {
	Open(ctx context.Context, loc string) (io.ReadCloser, error)
}

// Column aliases, by normalized header name.
var (
	nameCols      = []string{"name", "business_name", "company", "company_name", "title"}
	categoryCols  = []string{"category", "type", "business_type", "industry"}
	addressCols   = []string{"address", "street", "street_address", "address_line_1"}
	cityCols      = []string{"city", "town", "locality"}
	websiteCols   = []string{"website", "url", "web", "homepage"}
	phoneCols     = []string{"phone", "phone_number", "telephone", "tel", "mobile"}
	emailCols     = []string{"email", "e_mail", "email_address"}
	latitudeCols  = []string{"latitude", "lat"}
	longitudeCols = []string{"longitude", "lon", "lng", "long"}
	sourceCols    = []string{"source_url", "source", "link"}
)

// FileCollector imports listing sheets (CSV or XLSX) from a path or an
// http(s)/ftp URL.
type FileCollector struct {
	open Opener
}

// NewFileCollector creates a file collector reading through o.
func NewFileCollector(o Opener) *FileCollector {
	return &FileCollector{open: o}
}

// Name implements Collector.
func (c *FileCollector) Name() string { return "file" }

// Collect implements Collector. Params: format (csv, tsv or xlsx, default
// from the extension), delimiter and strict_quotes for CSV, sheet and
// header_row (0-based) for XLSX.
func (c *FileCollector) Collect(_ context.Context, seed Seed) (*Stream, error) {
	if strings.TrimSpace(seed.URL) == "" {
		return nil, Unavailable(c.Name(), seed, eris.New("file: seed needs a url or path"))
	}
	format := strings.ToLower(seed.Param("format", formatOf(seed.URL)))

	var csvOpts fetcher.CSVOptions
	var xlsxOpts fetcher.XLSXOptions
	switch format {
	case "csv", "tsv":
		if format == "tsv" {
			csvOpts.Delimiter = '\t'
		}
		if d := seed.Param("delimiter", ""); d != "" {
			r, size := utf8.DecodeRuneInString(d)
			if size != len(d) {
				return nil, Unavailable(c.Name(), seed, eris.Errorf("file: delimiter %q must be one character", d))
			}
			csvOpts.Delimiter = r
		}
		csvOpts.StrictQuotes = seed.Param("strict_quotes", "") == "true"
	case "xlsx":
		xlsxOpts.SheetName = seed.Param("sheet", "")
		if v := seed.Param("header_row", ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, Unavailable(c.Name(), seed, eris.Errorf("file: invalid header_row %q", v))
			}
			xlsxOpts.HeaderRow = n
		}
	default:
		return nil, Unavailable(c.Name(), seed, eris.Errorf("file: unsupported format %q", format))
	}

	return NewStream(c.Name(), seed, func(ctx context.Context, yield func(model.RawListing) bool, skip func()) error {
		body, err := c.open.Open(ctx, seed.URL)
		if err != nil {
			return eris.Wrap(err, "file: open")
		}
		defer body.Close() //nolint:errcheck

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var records <-chan fetcher.Record
		var errs <-chan error
		if format == "xlsx" {
			records, errs = fetcher.StreamXLSX(ctx, body, xlsxOpts)
		} else {
			records, errs = fetcher.StreamCSV(ctx, body, csvOpts)
		}

		checked := false
		for rec := range records {
			if rec.Err != nil {
				skip()
				continue
			}
			if !checked {
				if !hasColumn(rec.Fields, nameCols) {
					return eris.Errorf("file: no name column (expected one of %v)", nameCols)
				}
				checked = true
			}
			if !yield(recordListing(rec, seed)) {
				return nil
			}
		}
		return <-errs
	}), nil
}

func formatOf(loc string) string {
	p := loc
	if u, err := url.Parse(loc); err == nil && u.Scheme != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".xlsx":
		return "xlsx"
	case ".tsv":
		return "tsv"
	default:
		return "csv"
	}
}

func hasColumn(fields map[string]string, names []string) bool {
	for _, n := range names {
		if _, ok := fields[n]; ok {
			return true
		}
	}
	return false
}

func recordListing(rec fetcher.Record, seed Seed) model.RawListing {
	l := model.RawListing{
		Name:      text(rec.Get(nameCols...)),
		Category:  text(rec.Get(categoryCols...)),
		Address:   text(rec.Get(addressCols...)),
		City:      text(rec.Get(cityCols...)),
		Website:   text(rec.Get(websiteCols...)),
		Phone:     text(rec.Get(phoneCols...)),
		Email:     text(rec.Get(emailCols...)),
		Latitude:  parseFloat(rec.Get(latitudeCols...)),
		Longitude: parseFloat(rec.Get(longitudeCols...)),
		SourceURL: text(rec.Get(sourceCols...)),
	}
	if l.Category == nil {
		l.Category = text(seed.Category)
	}
	if l.City == nil {
		l.City = text(seed.City)
	}
	if l.SourceURL == nil {
		l.SourceURL = model.Str(seed.URL)
	}
	return l
}
