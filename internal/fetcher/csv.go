package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is one data row of a tabular listing sheet, keyed by normalized
// header name. Err is set instead of Fields when the row could not be parsed;
// the stream continues past it.
type Record struct {
	Line   int
	Fields map[string]string
	Err    error
}

// Get returns the first non-empty value among the given column names.
func (r Record) Get(names ...string) string {
	for _, n := range names {
		if v := r.Fields[n]; v != "" {
			return v
		}
	}
	return ""
}

// NormalizeHeader lowercases a column title and joins its words with
// underscores, so "Phone Number" and "phone-number" both become
// "phone_number".
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.' || r == '\t'
	}), "_")
}

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
	// StrictQuotes rejects bare quotes in unquoted fields.
	StrictQuotes bool
}

// StreamCSV reads a CSV listing sheet whose first row is the header and sends
// each following row as a Record. Malformed rows are sent with Err set.
// Errors that stop the stream are sent on the error channel. Both channels
// are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = !opts.StrictQuotes
		reader.FieldsPerRecord = -1 // allow ragged rows
		reader.TrimLeadingSpace = true

		header, err := reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}
		cols := normalizeHeaders(header)

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			row, err := reader.Read()
			if err == io.EOF {
				return
			}
			var rec Record
			var perr *csv.ParseError
			switch {
			case errors.As(err, &perr):
				rec = Record{Line: perr.Line, Err: eris.Wrap(err, "csv: malformed row")}
			case err != nil:
				errCh <- eris.Wrap(err, "csv: read row")
				return
			default:
				line, _ := reader.FieldPos(0)
				rec = Record{Line: line, Fields: zipRow(cols, row)}
			}

			select {
			case recCh <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}

func normalizeHeaders(header []string) []string {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = NormalizeHeader(h)
	}
	return cols
}

// zipRow pairs cells with column names. Cells beyond the header are dropped
// and missing cells read as empty.
func zipRow(cols, row []string) map[string]string {
	fields := make(map[string]string, len(cols))
	for i, c := range cols {
		if c == "" || i >= len(row) {
			continue
		}
		if _, dup := fields[c]; dup {
			continue
		}
		fields[c] = strings.TrimSpace(row[i])
	}
	return fields
}
